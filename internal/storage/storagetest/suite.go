// Package storagetest holds the behavior every storage.Store backend must share.
package storagetest

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/model"
	"ammPool/internal/storage"
)

var (
	assetA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	assetB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	assetC = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	alice  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob    = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("empty", func(t *testing.T) {
		testEmpty(t, newStore(t))
	})
	t.Run("apply", func(t *testing.T) {
		testApply(t, newStore(t))
	})
	t.Run("roles", func(t *testing.T) {
		testRoles(t, newStore(t))
	})
	t.Run("discarded tx", func(t *testing.T) {
		testDiscardedTx(t, newStore(t))
	})
	t.Run("stale pool", func(t *testing.T) {
		testStalePool(t, newStore(t))
	})
	t.Run("racing first write", func(t *testing.T) {
		testRacingFirstWrite(t, newStore(t))
	})
	t.Run("stale position and role", func(t *testing.T) {
		testStalePositionAndRole(t, newStore(t))
	})
	t.Run("unrelated write", func(t *testing.T) {
		testUnrelatedWrite(t, newStore(t))
	})
	t.Run("list pools", func(t *testing.T) {
		testListPools(t, newStore(t))
	})
}

func testListPools(t *testing.T, store storage.Store) {
	lister, ok := store.(storage.Lister)
	if !ok {
		t.Skip("store does not list pools")
	}
	ctx := context.Background()
	ab, _ := model.NewPairKey(assetA, assetB)
	ac, _ := model.NewPairKey(assetA, assetC)
	seedPool(t, store, ab, 10, 20, 14)
	seedPool(t, store, ac, 0, 0, 0)

	pools, err := lister.ListPools(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(pools))
	}
	if pool := pools[ab]; pool.Reserve1 == nil || pool.Reserve1.Int64() != 20 {
		t.Fatalf("pool %s mismatch: %+v", ab, pool)
	}
	if !pools[ac].IsEmpty() {
		t.Fatalf("emptied pool should be listed empty: %+v", pools[ac])
	}
}

func requireConflict(t *testing.T, err error) {
	t.Helper()
	var conflict *model.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func seedPool(t *testing.T, store storage.Store, key model.PairKey, r0, r1, total int64) {
	t.Helper()
	tx := storage.Begin(store)
	tx.PutPool(key, model.Pool{Reserve0: big.NewInt(r0), Reserve1: big.NewInt(r1), TotalShares: big.NewInt(total)})
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// Two writers read the same pool; the second to commit must not overwrite the first.
func testStalePool(t *testing.T, store storage.Store) {
	ctx := context.Background()
	key, _ := model.NewPairKey(assetA, assetB)
	seedPool(t, store, key, 1000, 1000, 1000)

	slow := storage.Begin(store)
	seen, _, err := slow.Pool(ctx, key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	fast := storage.Begin(store)
	pool, _, _ := fast.Pool(ctx, key)
	pool.Reserve0.SetInt64(1100)
	pool.Reserve1.SetInt64(910)
	fast.PutPool(key, pool)
	if err := fast.Commit(ctx); err != nil {
		t.Fatalf("fast commit: %v", err)
	}

	seen.Reserve0.SetInt64(1100)
	seen.Reserve1.SetInt64(909)
	slow.PutPool(key, seen)
	requireConflict(t, slow.Commit(ctx))

	stored, _, _ := store.Pool(ctx, key)
	if stored.Reserve1.Int64() != 910 {
		t.Fatalf("conflicting commit overwrote the pool: %+v", stored)
	}
}

func testRacingFirstWrite(t *testing.T, store storage.Store) {
	ctx := context.Background()
	key, _ := model.NewPairKey(assetA, assetB)

	first := storage.Begin(store)
	second := storage.Begin(store)
	for _, tx := range []*storage.Tx{first, second} {
		if _, ok, err := tx.Pool(ctx, key); err != nil || ok {
			t.Fatalf("expected absent pool, ok=%v err=%v", ok, err)
		}
		if initialized, err := tx.Initialized(ctx); err != nil || initialized {
			t.Fatalf("expected uninitialized, got %v err=%v", initialized, err)
		}
		tx.MarkInitialized()
	}
	first.PutPool(key, model.Pool{Reserve0: big.NewInt(1), Reserve1: big.NewInt(1), TotalShares: big.NewInt(1)})
	second.PutPool(key, model.Pool{Reserve0: big.NewInt(2), Reserve1: big.NewInt(2), TotalShares: big.NewInt(2)})

	if err := first.Commit(ctx); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	requireConflict(t, second.Commit(ctx))

	stored, _, _ := store.Pool(ctx, key)
	if stored.TotalShares.Int64() != 1 {
		t.Fatalf("second writer replaced the pool: %+v", stored)
	}

	// a writer that read the flag after it was set is not in conflict
	late := storage.Begin(store)
	if initialized, _ := late.Initialized(ctx); !initialized {
		t.Fatalf("expected initialized")
	}
	late.SetRole(model.AdminRole, bob, true)
	if err := late.Commit(ctx); err != nil {
		t.Fatalf("unchanged flag must commit: %v", err)
	}
}

func testStalePositionAndRole(t *testing.T, store storage.Store) {
	ctx := context.Background()
	key, _ := model.NewPairKey(assetA, assetB)

	setup := storage.Begin(store)
	setup.PutPosition(key, alice, big.NewInt(100))
	setup.SetRole(model.AdminRole, alice, true)
	if err := setup.Commit(ctx); err != nil {
		t.Fatalf("setup: %v", err)
	}

	withdraw := storage.Begin(store)
	held, _ := withdraw.Position(ctx, key, alice)
	other := storage.Begin(store)
	otherHeld, _ := other.Position(ctx, key, alice)
	other.PutPosition(key, alice, otherHeld.Sub(otherHeld, big.NewInt(100)))
	if err := other.Commit(ctx); err != nil {
		t.Fatalf("other commit: %v", err)
	}
	withdraw.PutPosition(key, alice, held.Sub(held, big.NewInt(60)))
	requireConflict(t, withdraw.Commit(ctx))
	if shares, _ := store.Position(ctx, key, alice); shares.Sign() != 0 {
		t.Fatalf("stale withdrawal resurrected shares: %s", shares)
	}

	grant := storage.Begin(store)
	if ok, _ := grant.HasRole(ctx, model.AdminRole, alice); !ok {
		t.Fatalf("alice should be admin")
	}
	revoke := storage.Begin(store)
	revoke.SetRole(model.AdminRole, alice, false)
	if err := revoke.Commit(ctx); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	grant.SetRole(model.UpgraderRole, bob, true)
	requireConflict(t, grant.Commit(ctx))
	if ok, _ := store.HasRole(ctx, model.UpgraderRole, bob); ok {
		t.Fatalf("grant by a revoked admin was applied")
	}
}

func testUnrelatedWrite(t *testing.T, store storage.Store) {
	ctx := context.Background()
	ab, _ := model.NewPairKey(assetA, assetB)
	ac, _ := model.NewPairKey(assetA, assetC)
	seedPool(t, store, ab, 10, 10, 10)
	seedPool(t, store, ac, 10, 10, 10)

	tx := storage.Begin(store)
	pool, _, _ := tx.Pool(ctx, ab)
	seedPool(t, store, ac, 20, 20, 20)

	pool.Reserve0.SetInt64(11)
	tx.PutPool(ab, pool)
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("write to another pool must not conflict: %v", err)
	}
}

func testEmpty(t *testing.T, store storage.Store) {
	ctx := context.Background()
	key, _ := model.NewPairKey(assetA, assetB)

	if _, ok, err := store.Pool(ctx, key); err != nil || ok {
		t.Fatalf("expected missing pool, ok=%v err=%v", ok, err)
	}
	shares, err := store.Position(ctx, key, alice)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if shares.Sign() != 0 {
		t.Fatalf("expected zero shares, got %s", shares)
	}
	initialized, err := store.Initialized(ctx)
	if err != nil || initialized {
		t.Fatalf("expected uninitialized, got %v err=%v", initialized, err)
	}
}

func testApply(t *testing.T, store storage.Store) {
	ctx := context.Background()
	key, _ := model.NewPairKey(assetA, assetB)
	huge, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)

	tx := storage.Begin(store)
	tx.PutPool(key, model.Pool{Reserve0: huge, Reserve1: big.NewInt(200), TotalShares: big.NewInt(150)})
	tx.PutPosition(key, alice, big.NewInt(100))
	tx.PutPosition(key, bob, big.NewInt(50))
	tx.MarkInitialized()
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	pool, ok, err := store.Pool(ctx, key)
	if err != nil || !ok {
		t.Fatalf("pool missing: ok=%v err=%v", ok, err)
	}
	if pool.Reserve0.Cmp(huge) != 0 || pool.Reserve1.Int64() != 200 || pool.TotalShares.Int64() != 150 {
		t.Fatalf("pool mismatch: %+v", pool)
	}
	if shares, _ := store.Position(ctx, key, bob); shares.Int64() != 50 {
		t.Fatalf("bob shares mismatch: %s", shares)
	}
	if initialized, _ := store.Initialized(ctx); !initialized {
		t.Fatalf("expected initialized")
	}

	tx = storage.Begin(store)
	tx.PutPosition(key, bob, big.NewInt(0))
	tx.PutPool(key, model.Pool{Reserve0: big.NewInt(0), Reserve1: big.NewInt(0), TotalShares: big.NewInt(0)})
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if shares, _ := store.Position(ctx, key, bob); shares.Sign() != 0 {
		t.Fatalf("zero position should be deleted, got %s", shares)
	}
	pool, ok, err = store.Pool(ctx, key)
	if err != nil || !ok {
		t.Fatalf("emptied pool should be retained: ok=%v err=%v", ok, err)
	}
	if !pool.IsEmpty() {
		t.Fatalf("expected empty pool, got %+v", pool)
	}
}

func testRoles(t *testing.T, store storage.Store) {
	ctx := context.Background()

	tx := storage.Begin(store)
	tx.SetRole(model.AdminRole, alice, true)
	tx.SetRole(model.UpgraderRole, alice, true)
	tx.SetRole(model.UpgraderRole, bob, true)
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	members, err := store.RoleMembers(ctx, model.UpgraderRole)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 upgraders, got %v", members)
	}

	tx = storage.Begin(store)
	tx.SetRole(model.UpgraderRole, bob, false)
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if ok, _ := store.HasRole(ctx, model.UpgraderRole, bob); ok {
		t.Fatalf("bob should be revoked")
	}
	if ok, _ := store.HasRole(ctx, model.AdminRole, alice); !ok {
		t.Fatalf("alice should be admin")
	}
	if ok, _ := store.HasRole(ctx, model.AdminRole, bob); ok {
		t.Fatalf("bob should not be admin")
	}
}

func testDiscardedTx(t *testing.T, store storage.Store) {
	ctx := context.Background()
	key, _ := model.NewPairKey(assetA, assetB)

	tx := storage.Begin(store)
	tx.PutPool(key, model.Pool{Reserve0: big.NewInt(1), Reserve1: big.NewInt(1), TotalShares: big.NewInt(1)})
	tx.SetRole(model.AdminRole, bob, true)

	staged, ok, err := tx.Pool(ctx, key)
	if err != nil || !ok || staged.TotalShares.Int64() != 1 {
		t.Fatalf("tx should see its own write: %+v ok=%v err=%v", staged, ok, err)
	}
	if member, _ := tx.HasRole(ctx, model.AdminRole, bob); !member {
		t.Fatalf("tx should see staged role")
	}

	if _, ok, _ := store.Pool(ctx, key); ok {
		t.Fatalf("store should not see uncommitted pool")
	}
	if member, _ := store.HasRole(ctx, model.AdminRole, bob); member {
		t.Fatalf("store should not see uncommitted role")
	}
}
