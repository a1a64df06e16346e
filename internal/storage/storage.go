package storage

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ammPool/internal/model"
)

// Reader is the read side of the persistent store.
type Reader interface {
	Pool(ctx context.Context, key model.PairKey) (model.Pool, bool, error)
	Position(ctx context.Context, key model.PairKey, provider common.Address) (*big.Int, error)
	HasRole(ctx context.Context, role model.Role, principal common.Address) (bool, error)
	RoleMembers(ctx context.Context, role model.Role) ([]common.Address, error)
	Initialized(ctx context.Context) (bool, error)
}

// Store holds pool, position and role records independently of the logic operating on them.
// Apply must commit every write in the change set or none of them, and must refuse with a
// *model.ConflictError when a record in the change set's Read no longer holds the value read.
type Store interface {
	Reader
	Apply(ctx context.Context, changes ChangeSet) error
	Close() error
}

// Lister is implemented by stores that can enumerate their pool records.
type Lister interface {
	ListPools(ctx context.Context) (map[model.PairKey]model.Pool, error)
}

// EventSink receives emitted events.
type EventSink interface {
	PutEvents(events []model.TypedEvent) error
}

// LogSink receives events in EVM log form.
type LogSink interface {
	PutLogBatch(logs []model.LogRecord) error
}

// PositionKey addresses one provider's position in one pool.
type PositionKey struct {
	Pair     model.PairKey
	Provider common.Address
}

// RoleKey addresses one membership row of the capability table.
type RoleKey struct {
	Role      model.Role
	Principal common.Address
}

// ChangeSet is the set of writes staged by one operation.
// A zero position value deletes the position; a false role value revokes membership.
type ChangeSet struct {
	Pools       map[model.PairKey]model.Pool
	Positions   map[PositionKey]*big.Int
	Roles       map[RoleKey]bool
	Initialized bool

	// Read holds the stored values the writes were computed from.
	Read ReadSet
}

// ReadSet records what an operation saw in the store. A nil pool means the pool was absent;
// a nil Initialized means the flag was never read.
type ReadSet struct {
	Pools       map[model.PairKey]*model.Pool
	Positions   map[PositionKey]*big.Int
	Roles       map[RoleKey]bool
	Initialized *bool
}

// NewChangeSet returns an empty change set.
func NewChangeSet() ChangeSet {
	return ChangeSet{
		Pools:     make(map[model.PairKey]model.Pool),
		Positions: make(map[PositionKey]*big.Int),
		Roles:     make(map[RoleKey]bool),
		Read: ReadSet{
			Pools:     make(map[model.PairKey]*model.Pool),
			Positions: make(map[PositionKey]*big.Int),
			Roles:     make(map[RoleKey]bool),
		},
	}
}

// Empty reports whether the change set writes nothing.
func (c ChangeSet) Empty() bool {
	return len(c.Pools) == 0 && len(c.Positions) == 0 && len(c.Roles) == 0 && !c.Initialized
}
