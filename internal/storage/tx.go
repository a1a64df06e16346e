package storage

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/model"
)

// Tx stages writes over a Store. Reads see staged writes first; nothing reaches the
// store until Commit. Dropping a Tx without committing discards its writes.
// The first store read of each record is kept in the change set, so Commit fails
// with a conflict if another writer changed that record in the meantime.
type Tx struct {
	store   Store
	changes ChangeSet
	done    bool
}

// Begin opens a staged transaction over store.
func Begin(store Store) *Tx {
	return &Tx{store: store, changes: NewChangeSet()}
}

func (t *Tx) Pool(ctx context.Context, key model.PairKey) (model.Pool, bool, error) {
	if pool, ok := t.changes.Pools[key]; ok {
		return pool.Clone(), true, nil
	}
	pool, ok, err := t.store.Pool(ctx, key)
	if err != nil {
		return model.Pool{}, false, fmt.Errorf("read pool %s: %w", key, err)
	}
	if _, seen := t.changes.Read.Pools[key]; !seen {
		var read *model.Pool
		if ok {
			c := pool.Clone()
			read = &c
		}
		t.changes.Read.Pools[key] = read
	}
	if !ok {
		return model.NewPool(), false, nil
	}
	return pool.Clone(), true, nil
}

func (t *Tx) PutPool(key model.PairKey, pool model.Pool) {
	t.changes.Pools[key] = pool.Clone()
}

func (t *Tx) Position(ctx context.Context, key model.PairKey, provider common.Address) (*big.Int, error) {
	if shares, ok := t.changes.Positions[PositionKey{Pair: key, Provider: provider}]; ok {
		return new(big.Int).Set(shares), nil
	}
	shares, err := t.store.Position(ctx, key, provider)
	if err != nil {
		return nil, fmt.Errorf("read position %s/%s: %w", key, provider.Hex(), err)
	}
	pk := PositionKey{Pair: key, Provider: provider}
	if _, seen := t.changes.Read.Positions[pk]; !seen {
		t.changes.Read.Positions[pk] = model.CopyInt(shares)
	}
	return model.CopyInt(shares), nil
}

func (t *Tx) PutPosition(key model.PairKey, provider common.Address, shares *big.Int) {
	t.changes.Positions[PositionKey{Pair: key, Provider: provider}] = model.CopyInt(shares)
}

func (t *Tx) HasRole(ctx context.Context, role model.Role, principal common.Address) (bool, error) {
	rk := RoleKey{Role: role, Principal: principal}
	if member, ok := t.changes.Roles[rk]; ok {
		return member, nil
	}
	member, err := t.store.HasRole(ctx, role, principal)
	if err != nil {
		return false, err
	}
	if _, seen := t.changes.Read.Roles[rk]; !seen {
		t.changes.Read.Roles[rk] = member
	}
	return member, nil
}

func (t *Tx) SetRole(role model.Role, principal common.Address, member bool) {
	t.changes.Roles[RoleKey{Role: role, Principal: principal}] = member
}

// RoleMembers is a listing read; it is not checked at commit.
func (t *Tx) RoleMembers(ctx context.Context, role model.Role) ([]common.Address, error) {
	stored, err := t.store.RoleMembers(ctx, role)
	if err != nil {
		return nil, err
	}
	set := make(map[common.Address]struct{}, len(stored))
	for _, member := range stored {
		set[member] = struct{}{}
	}
	for key, member := range t.changes.Roles {
		if key.Role != role {
			continue
		}
		if member {
			set[key.Principal] = struct{}{}
		} else {
			delete(set, key.Principal)
		}
	}
	return sortedAddresses(set), nil
}

func (t *Tx) Initialized(ctx context.Context) (bool, error) {
	if t.changes.Initialized {
		return true, nil
	}
	initialized, err := t.store.Initialized(ctx)
	if err != nil {
		return false, err
	}
	if t.changes.Read.Initialized == nil {
		t.changes.Read.Initialized = &initialized
	}
	return initialized, nil
}

func (t *Tx) MarkInitialized() {
	t.changes.Initialized = true
}

// Commit applies the staged writes atomically. A Tx can be committed once.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already committed")
	}
	t.done = true
	if t.changes.Empty() {
		return nil
	}
	return t.store.Apply(ctx, t.changes)
}

func sortedAddresses(set map[common.Address]struct{}) []common.Address {
	out := make([]common.Address, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Hex() < out[j].Hex()
	})
	return out
}

// SortAddresses orders addresses by hex form for stable listings.
func SortAddresses(addrs []common.Address) []common.Address {
	set := make(map[common.Address]struct{}, len(addrs))
	for _, addr := range addrs {
		set[addr] = struct{}{}
	}
	return sortedAddresses(set)
}
