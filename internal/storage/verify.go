package storage

import (
	"context"
	"fmt"

	"ammPool/internal/model"
)

// Verify re-reads every record in read through r and returns a *model.ConflictError
// naming the first one whose value changed. Backends call it inside their commit,
// with r bound to the same transaction or lock as the writes.
func Verify(ctx context.Context, r Reader, read ReadSet) error {
	for key, want := range read.Pools {
		pool, ok, err := r.Pool(ctx, key)
		if err != nil {
			return fmt.Errorf("verify pool %s: %w", key, err)
		}
		if want == nil {
			if ok {
				return &model.ConflictError{Record: "pool " + key.String()}
			}
			continue
		}
		if !ok || !pool.Equal(*want) {
			return &model.ConflictError{Record: "pool " + key.String()}
		}
	}
	for key, want := range read.Positions {
		shares, err := r.Position(ctx, key.Pair, key.Provider)
		if err != nil {
			return fmt.Errorf("verify position %s/%s: %w", key.Pair, key.Provider.Hex(), err)
		}
		if model.CopyInt(shares).Cmp(model.CopyInt(want)) != 0 {
			return &model.ConflictError{Record: "position " + key.Pair.String() + "/" + key.Provider.Hex()}
		}
	}
	for key, want := range read.Roles {
		member, err := r.HasRole(ctx, key.Role, key.Principal)
		if err != nil {
			return fmt.Errorf("verify role %s: %w", key.Role, err)
		}
		if member != want {
			return &model.ConflictError{Record: "role " + key.Role.String() + "/" + key.Principal.Hex()}
		}
	}
	if read.Initialized != nil {
		initialized, err := r.Initialized(ctx)
		if err != nil {
			return fmt.Errorf("verify initialized: %w", err)
		}
		if initialized != *read.Initialized {
			return &model.ConflictError{Record: "initialized"}
		}
	}
	return nil
}
