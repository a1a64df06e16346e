package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ammPool/internal/asset"
	"ammPool/internal/config"
	"ammPool/internal/model"
	"ammPool/internal/storage"
)

func newDemoApp(t *testing.T) *app {
	t.Helper()
	a, err := newApp(context.Background(), config.Config{Store: config.StoreMemory, Ledger: config.LedgerMemory}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a
}

func TestRunDemo(t *testing.T) {
	ctx := context.Background()
	a := newDemoApp(t)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, runDemo(ctx, cmd, a, a.ledger.(*asset.MemoryLedger)))

	var report struct {
		Pool struct {
			ReserveA    *big.Int `json:"reserve_a"`
			ReserveB    *big.Int `json:"reserve_b"`
			TotalShares *big.Int `json:"total_liquidity_shares"`
		} `json:"pool"`
		Events []json.RawMessage `json:"events"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))

	reserveB, _ := new(big.Int).SetString("90909090909090909090", 10)
	require.Equal(t, 0, report.Pool.ReserveA.Cmp(ether(110)))
	require.Equal(t, 0, report.Pool.ReserveB.Cmp(reserveB))
	require.Equal(t, 0, report.Pool.TotalShares.Cmp(ether(100)))
	// RoleGranted x2, LiquidityAdded, Swap
	require.Len(t, report.Events, 4)

	admin, err := a.access.HasRole(ctx, model.AdminRole, demoDeployer)
	require.NoError(t, err)
	require.True(t, admin)
}

func TestRunDemoTwiceKeepsRoles(t *testing.T) {
	ctx := context.Background()
	a := newDemoApp(t)
	ledger := a.ledger.(*asset.MemoryLedger)

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, runDemo(ctx, cmd, a, ledger))
	require.NoError(t, runDemo(ctx, cmd, a, ledger))

	members, err := a.access.RoleMembers(ctx, model.UpgraderRole)
	require.NoError(t, err)
	require.Len(t, members, 1)
}

func TestRequireDurableLedger(t *testing.T) {
	require.Error(t, (&app{cfg: config.Config{Ledger: config.LedgerMemory}}).requireDurableLedger())
	require.NoError(t, (&app{cfg: config.Config{Ledger: config.LedgerERC20}}).requireDurableLedger())
}

func TestAppendedEventsFileKeepsIncreasingSequence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	cfg := config.Config{Store: config.StoreMemory, Ledger: config.LedgerMemory, EventsOut: path}

	for run := 0; run < 2; run++ {
		a, err := newApp(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		cmd := &cobra.Command{}
		cmd.SetOut(&bytes.Buffer{})
		require.NoError(t, runDemo(ctx, cmd, a, a.ledger.(*asset.MemoryLedger)))
		a.close()
	}

	persisted, err := storage.NewJsonlStorage(path).ReadEvents()
	require.NoError(t, err)
	require.Len(t, persisted, 8)
	for i, event := range persisted {
		require.Equal(t, uint64(i+1), event.Sequence)
	}
}
