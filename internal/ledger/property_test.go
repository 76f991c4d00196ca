package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"stock-portfolio-ledger/internal/apperr"
	"stock-portfolio-ledger/internal/models"
	"stock-portfolio-ledger/internal/store"
)

// Random BUY/SELL sequences keep balance, holdings and cached value in step with a
// simple model, and a rejected trade never changes anything.
func TestProperty_TradeSequencesPreserveInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		db, closeDB := openTestDB(t)
		defer closeDB()
		s := NewService(zap.NewNop(), testLedgerConfig, store.New(db))
		ctx := context.Background()

		start := rapid.Int64Range(0, 5000).Draw(t, "start")
		user := mustUser(t, s, "prop", decimal.NewFromInt(start).String())
		stock := mustStock(t, s, "PROP", "100")
		portfolio := mustPortfolio(t, s, user.ID, "main")

		balance := decimal.NewFromInt(start)
		var held int64
		var committed int64

		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			side := rapid.SampledFrom([]models.TransactionType{models.TransactionBuy, models.TransactionSell}).Draw(t, "side")
			qty := rapid.Int64Range(1, 20).Draw(t, "qty")
			price := decimal.NewFromInt(rapid.Int64Range(1, 200).Draw(t, "price"))
			total := price.Mul(decimal.NewFromInt(qty))

			cmd, err := NewTradeCommand(side, user.ID, portfolio.ID, stock.ID, qty, price, "")
			if err != nil {
				t.Fatalf("building command: %v", err)
			}
			res, err := s.ProcessTrade(ctx, cmd)

			switch {
			case side == models.TransactionBuy && total.GreaterThan(balance):
				if !errors.Is(err, apperr.ErrInsufficientFunds) {
					t.Fatalf("buy of %s with balance %s: got %v, want insufficient funds", total, balance, err)
				}
			case side == models.TransactionSell && qty > held:
				if !errors.Is(err, apperr.ErrInsufficientHoldings) {
					t.Fatalf("sell of %d holding %d: got %v, want insufficient holdings", qty, held, err)
				}
			default:
				if err != nil {
					t.Fatalf("step %d: unexpected error %v", i, err)
				}
				if side == models.TransactionBuy {
					balance = balance.Sub(total)
					held += qty
				} else {
					balance = balance.Add(total)
					held -= qty
				}
				committed++
				if !res.UpdatedBalance.Equal(balance) {
					t.Fatalf("result balance %s, want %s", res.UpdatedBalance, balance)
				}
				if !res.Transaction.TotalAmount.Equal(total) {
					t.Fatalf("total amount %s, want %s", res.Transaction.TotalAmount, total)
				}
			}

			var u models.User
			if err := db.First(&u, user.ID).Error; err != nil {
				t.Fatalf("reading user: %v", err)
			}
			if u.Balance.IsNegative() || !u.Balance.Equal(balance) {
				t.Fatalf("stored balance %s, want %s", u.Balance, balance)
			}

			v, err := s.ValuatePortfolio(ctx, portfolio.ID)
			if err != nil {
				t.Fatalf("valuating: %v", err)
			}
			if got := v.Quantities()[stock.ID]; got != held || held < 0 {
				t.Fatalf("held %d, want %d", got, held)
			}

			var p models.Portfolio
			if err := db.First(&p, portfolio.ID).Error; err != nil {
				t.Fatalf("reading portfolio: %v", err)
			}
			if want := decimal.NewFromInt(100 * held); !p.TotalValue.Equal(want) {
				t.Fatalf("cached total value %s, want %s", p.TotalValue, want)
			}

			var n int64
			if err := db.Model(&models.Transaction{}).Count(&n).Error; err != nil {
				t.Fatalf("counting: %v", err)
			}
			if n != committed {
				t.Fatalf("%d transactions stored, want %d", n, committed)
			}
		}
	})
}
