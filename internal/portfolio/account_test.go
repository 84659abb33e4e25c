package portfolio

import (
	"math"
	"testing"

	"github.com/MelonMars/ABMMarket/internal/execution"
)

func TestMarketFillBuySellPnL(t *testing.T) {
	account := NewAccount(10_000)

	if err := account.MarketFill("ACME", execution.Buy, 10, 150); err != nil {
		t.Fatalf("unexpected buy error: %v", err)
	}
	if err := account.MarketFill("ACME", execution.Buy, 10, 160); err != nil {
		t.Fatalf("unexpected second buy error: %v", err)
	}

	snap := account.Snapshot(map[string]float64{"ACME": 170})
	pos := snap.Positions["ACME"]
	if pos.Shares != 20 {
		t.Fatalf("expected 20 shares, got %d", pos.Shares)
	}
	if math.Abs(pos.AvgCost-155) > 1e-9 {
		t.Fatalf("expected avg cost 155, got %.4f", pos.AvgCost)
	}
	if math.Abs(snap.Equity-10_300) > 1e-9 {
		t.Fatalf("expected equity 10300, got %.4f", snap.Equity)
	}

	if err := account.MarketFill("ACME", execution.Sell, 10, 170); err != nil {
		t.Fatalf("unexpected sell error: %v", err)
	}
	if realized := account.RealizedPnL(); math.Abs(realized-150) > 1e-9 {
		t.Fatalf("expected realized pnl 150, got %.4f", realized)
	}
	if account.Position("ACME") != 10 {
		t.Fatalf("expected 10 shares left, got %d", account.Position("ACME"))
	}

	if err := account.MarketFill("ACME", execution.Sell, 10, 170); err != nil {
		t.Fatalf("unexpected final sell error: %v", err)
	}
	if account.Position("ACME") != 0 {
		t.Fatalf("expected flat position, got %d", account.Position("ACME"))
	}
	if len(account.Snapshot(nil).Positions) != 0 {
		t.Fatalf("zero position should be removed from the book")
	}
}

func TestMarketFillInsufficientCash(t *testing.T) {
	account := NewAccount(100)
	if err := account.MarketFill("ACME", execution.Buy, 1, 200); err == nil {
		t.Fatalf("expected cash error")
	}
	if account.Cash() != 100 {
		t.Fatalf("rejected buy must not move cash")
	}
}

func TestMarketFillInsufficientShares(t *testing.T) {
	account := NewAccount(10_000)
	if err := account.MarketFill("ACME", execution.Sell, 1, 150); err == nil {
		t.Fatalf("expected insufficient shares error")
	}
	if err := account.MarketFill("ACME", execution.Buy, 2, 150); err != nil {
		t.Fatalf("unexpected buy error: %v", err)
	}
	if err := account.MarketFill("ACME", execution.Sell, 3, 150); err == nil {
		t.Fatalf("expected oversell to fail")
	}
}

func TestMarketFillRejectsBadArgs(t *testing.T) {
	account := NewAccount(10_000)
	if err := account.MarketFill("ACME", execution.Buy, 0, 150); err == nil {
		t.Fatalf("expected error for zero shares")
	}
	if err := account.MarketFill("ACME", execution.Buy, 1, 0); err == nil {
		t.Fatalf("expected error for zero price")
	}
	if err := account.MarketFill("ACME", "SHORT", 1, 150); err == nil {
		t.Fatalf("expected error for unknown side")
	}
}

func TestEquity(t *testing.T) {
	account := NewAccount(1_000)
	if err := account.MarketFill("ACME", execution.Buy, 4, 100); err != nil {
		t.Fatalf("unexpected buy error: %v", err)
	}

	got := account.Equity(map[string]float64{"ACME": 110})
	if math.Abs(got-1_040) > 1e-9 {
		t.Fatalf("expected equity 1040, got %.4f", got)
	}
	if got := account.Equity(nil); math.Abs(got-600) > 1e-9 {
		t.Fatalf("unmarked holdings value at zero, expected 600, got %.4f", got)
	}
}

func TestSnapshotBalances(t *testing.T) {
	account := NewAccount(5_000)
	if err := account.MarketFill("WIDG", execution.Buy, 3, 700); err != nil {
		t.Fatalf("unexpected buy error: %v", err)
	}

	snap := account.Snapshot(map[string]float64{"WIDG": 710})
	if math.Abs(snap.Cash+snap.Positions["WIDG"].MarketValue-snap.Equity) > 1e-6 {
		t.Fatalf("equity did not balance")
	}
	if math.Abs(snap.Positions["WIDG"].Unrealized-30) > 1e-9 {
		t.Fatalf("expected unrealized 30, got %.4f", snap.Positions["WIDG"].Unrealized)
	}
}
