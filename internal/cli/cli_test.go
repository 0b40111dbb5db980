package cli

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tradesim/internal/trading"
)

// runCLI executes the root command against an isolated config directory with
// the synthetic feed, returning stdout.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TRADESIM_FEED_PROVIDER", "synthetic")

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", dir}, args...))
	err := root.Execute()
	return stdout.String(), err
}

func TestVersionJSON(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["version"] != Version {
		t.Errorf("version = %q, want %q", got["version"], Version)
	}
}

func TestPositionCalc(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantPnL float64
		wantLiq float64
	}{
		{
			name:    "long gains",
			args:    []string{"--direction", "long", "--leverage", "5", "--entry", "100", "--notional", "10", "--price", "110"},
			wantPnL: 500,
			wantLiq: 80,
		},
		{
			name:    "short loses",
			args:    []string{"--direction", "short", "--leverage", "2", "--entry", "100", "--notional", "5", "--price", "120"},
			wantPnL: -200,
			wantLiq: 150,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"position", "calc", "--json"}, tt.args...)
			out, err := runCLI(t, t.TempDir(), args...)
			if err != nil {
				t.Fatalf("position calc failed: %v", err)
			}
			var got struct {
				Risk trading.PositionRisk `json:"risk"`
			}
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("invalid JSON %q: %v", out, err)
			}
			if math.Abs(got.Risk.UnrealizedPnL-tt.wantPnL) > 1e-9 {
				t.Errorf("pnl = %v, want %v", got.Risk.UnrealizedPnL, tt.wantPnL)
			}
			if math.Abs(got.Risk.LiquidationPrice-tt.wantLiq) > 1e-9 {
				t.Errorf("liquidation = %v, want %v", got.Risk.LiquidationPrice, tt.wantLiq)
			}
		})
	}
}

func TestPositionCalc_RejectsLowLeverage(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "position", "calc", "--leverage", "0.5", "--entry", "100", "--notional", "1", "--price", "100")
	if err == nil {
		t.Fatal("expected leverage below 1 to be rejected")
	}
}

func TestSnapshotImportAndPortfolio(t *testing.T) {
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "snap.yaml")
	content := `
snapshots:
  - mode: daily
    account: {owner: alice, cash_balance: 9800, asset_balance: 0, starting_balance: 10000}
    positions:
      - {id: p-1, direction: long, leverage: 5, entry_price: 100, notional_amount: 10, margin: 200, is_open: true}
  - mode: daily
    account: {owner: bob, cash_balance: 10000, asset_balance: 0}
`
	if err := os.WriteFile(snapPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := runCLI(t, dir, "snapshot", "import", snapPath); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	out, err := runCLI(t, dir, "portfolio", "--owner", "alice", "--price", "110", "--json")
	if err != nil {
		t.Fatalf("portfolio failed: %v", err)
	}
	var p trading.Portfolio
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	// 9800 cash + 200 margin + 500 unrealized
	if math.Abs(p.TotalValue-10500) > 1e-9 {
		t.Errorf("total value = %v, want 10500", p.TotalValue)
	}
	if math.Abs(p.ProfitLoss-500) > 1e-9 {
		t.Errorf("profit/loss = %v, want 500", p.ProfitLoss)
	}

	out, err = runCLI(t, dir, "leaderboard", "--price", "110", "--json")
	if err != nil {
		t.Fatalf("leaderboard failed: %v", err)
	}
	var board []trading.LeaderboardEntry
	if err := json.Unmarshal([]byte(out), &board); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	// The leaderboard values cash and spot holdings only.
	if len(board) != 2 || board[0].Player != "bob" || board[0].Rank != 1 {
		t.Errorf("leaderboard = %+v", board)
	}
}

func TestPortfolio_UnknownAccount(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "portfolio", "--owner", "nobody", "--price", "10")
	if err == nil {
		t.Fatal("expected an error for a missing account")
	}
}

func TestTrendlineCommand(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "trendline", "--json", "--line", "0,0,30,40", "--line", "0,0,3,4")
	if err != nil {
		t.Fatalf("trendline failed: %v", err)
	}
	var got []struct {
		Line *struct {
			ID string `json:"id"`
		} `json:"trendline"`
		Rejected string `json:"rejected"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results", len(got))
	}
	if got[0].Line == nil || !strings.HasPrefix(got[0].Line.ID, "trendline-") {
		t.Errorf("first drag should be kept: %+v", got[0])
	}
	if got[1].Line != nil || got[1].Rejected == "" {
		t.Errorf("second drag should be discarded: %+v", got[1])
	}
}

func TestWatch_SinglePoll(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "watch", "--count", "1", "--json")
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	var tick struct {
		Price    float64 `json:"price"`
		ResetsIn string  `json:"resets_in"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &tick); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if tick.Price <= 0 {
		t.Errorf("price = %v, want positive synthetic quote", tick.Price)
	}
	if tick.ResetsIn == "" {
		t.Error("missing reset countdown")
	}
}

func TestWatch_ReportsUnavailableStore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADESIM_DB_PATH", filepath.Join(dir, "missing", "nested", "tradesim.db"))

	out, err := runCLI(t, dir, "watch", "--count", "1", "--json")
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	var tick struct {
		Price     float64         `json:"price"`
		Portfolio json.RawMessage `json:"portfolio"`
		Error     string          `json:"error"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &tick); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if tick.Price <= 0 {
		t.Errorf("price = %v, want the quote even without a store", tick.Price)
	}
	if tick.Error != "store unavailable" {
		t.Errorf("error = %q, want store unavailable", tick.Error)
	}
	if tick.Portfolio != nil {
		t.Errorf("portfolio = %s, want none", tick.Portfolio)
	}
}

func TestHistory_RejectsNonPositiveDays(t *testing.T) {
	if _, err := runCLI(t, t.TempDir(), "history", "--days", "0"); err == nil {
		t.Fatal("expected an error for --days 0")
	}
}

func TestConfiguredStartingBalance(t *testing.T) {
	t.Setenv("TRADESIM_STARTING_BALANCE", "2500")
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "snap.yaml")
	content := `
snapshots:
  - mode: daily
    account: {owner: carol, cash_balance: 3000, asset_balance: 0}
  - mode: daily
    account: {owner: dan, cash_balance: 9000, asset_balance: 0, starting_balance: 10000}
`
	if err := os.WriteFile(snapPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, dir, "snapshot", "import", snapPath); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	out, err := runCLI(t, dir, "portfolio", "--owner", "carol", "--price", "10", "--json")
	if err != nil {
		t.Fatalf("portfolio failed: %v", err)
	}
	var p trading.Portfolio
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if p.StartingBalance != 2500 || math.Abs(p.ProfitLoss-500) > 1e-9 {
		t.Errorf("portfolio = %+v, want P&L measured against 2500", p)
	}

	out, err = runCLI(t, dir, "leaderboard", "--price", "10", "--json")
	if err != nil {
		t.Fatalf("leaderboard failed: %v", err)
	}
	var board []trading.LeaderboardEntry
	if err := json.Unmarshal([]byte(out), &board); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(board) != 2 || board[0].Player != "carol" || math.Abs(board[0].ProfitLossPercent-20) > 1e-9 {
		t.Errorf("leaderboard = %+v", board)
	}
	if board[1].StartingBalance != 10000 || math.Abs(board[1].ProfitLossPercent+10) > 1e-9 {
		t.Errorf("dan = %+v", board[1])
	}
}
