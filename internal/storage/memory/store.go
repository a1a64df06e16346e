package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/model"
	"ammPool/internal/storage"
)

// Store keeps all records in process memory.
type Store struct {
	mu          sync.RWMutex
	pools       map[model.PairKey]model.Pool
	positions   map[storage.PositionKey]*big.Int
	roles       map[model.Role]map[common.Address]struct{}
	initialized bool
}

func NewStore() *Store {
	return &Store{
		pools:     make(map[model.PairKey]model.Pool),
		positions: make(map[storage.PositionKey]*big.Int),
		roles:     make(map[model.Role]map[common.Address]struct{}),
	}
}

func (s *Store) Pool(ctx context.Context, key model.PairKey) (model.Pool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.Pool(ctx, key)
}

func (s *Store) Position(ctx context.Context, key model.PairKey, provider common.Address) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.Position(ctx, key, provider)
}

func (s *Store) HasRole(ctx context.Context, role model.Role, principal common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.HasRole(ctx, role, principal)
}

func (s *Store) RoleMembers(ctx context.Context, role model.Role) ([]common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.RoleMembers(ctx, role)
}

func (s *Store) Initialized(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{s}.Initialized(ctx)
}

// view reads the maps without locking; the caller holds s.mu.
type view struct {
	s *Store
}

func (v view) Pool(_ context.Context, key model.PairKey) (model.Pool, bool, error) {
	pool, ok := v.s.pools[key]
	if !ok {
		return model.Pool{}, false, nil
	}
	return pool.Clone(), true, nil
}

func (v view) Position(_ context.Context, key model.PairKey, provider common.Address) (*big.Int, error) {
	return model.CopyInt(v.s.positions[storage.PositionKey{Pair: key, Provider: provider}]), nil
}

func (v view) HasRole(_ context.Context, role model.Role, principal common.Address) (bool, error) {
	_, ok := v.s.roles[role][principal]
	return ok, nil
}

func (v view) RoleMembers(_ context.Context, role model.Role) ([]common.Address, error) {
	members := make([]common.Address, 0, len(v.s.roles[role]))
	for member := range v.s.roles[role] {
		members = append(members, member)
	}
	return storage.SortAddresses(members), nil
}

func (v view) Initialized(context.Context) (bool, error) {
	return v.s.initialized, nil
}

// Pools returns a copy of every pool record.
func (s *Store) Pools() map[model.PairKey]model.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.PairKey]model.Pool, len(s.pools))
	for key, pool := range s.pools {
		out[key] = pool.Clone()
	}
	return out
}

func (s *Store) ListPools(context.Context) (map[model.PairKey]model.Pool, error) {
	return s.Pools(), nil
}

// Positions returns a copy of every non-zero position.
func (s *Store) Positions() []model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Position, 0, len(s.positions))
	for key, shares := range s.positions {
		out = append(out, model.Position{Pair: key.Pair, Provider: key.Provider, Shares: new(big.Int).Set(shares)})
	}
	return out
}

// Apply holds the write lock for the check and the whole change set, so readers never
// see part of it.
func (s *Store) Apply(ctx context.Context, changes storage.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := storage.Verify(ctx, view{s}, changes.Read); err != nil {
		return err
	}

	for key, pool := range changes.Pools {
		s.pools[key] = pool.Clone()
	}
	for key, shares := range changes.Positions {
		if shares == nil || shares.Sign() == 0 {
			delete(s.positions, key)
			continue
		}
		s.positions[key] = new(big.Int).Set(shares)
	}
	for key, member := range changes.Roles {
		members := s.roles[key.Role]
		if member {
			if members == nil {
				members = make(map[common.Address]struct{})
				s.roles[key.Role] = members
			}
			members[key.Principal] = struct{}{}
		} else if members != nil {
			delete(members, key.Principal)
		}
	}
	if changes.Initialized {
		s.initialized = true
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
