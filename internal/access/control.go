package access

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammPool/internal/events"
	"ammPool/internal/model"
	"ammPool/internal/storage"
)

// Control is the role capability table. Membership rows live in the store.
type Control struct {
	mu     sync.Mutex
	store  storage.Store
	events *events.Log
	logger *zap.Logger
}

func New(store storage.Store, eventLog *events.Log, logger *zap.Logger) *Control {
	if logger == nil {
		logger = zap.NewNop()
	}
	if eventLog == nil {
		eventLog = events.NewLog(logger)
	}
	return &Control{store: store, events: eventLog, logger: logger}
}

// Initialize grants Admin and Upgrader to admin. It succeeds once per store.
func (c *Control) Initialize(ctx context.Context, admin common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := storage.Begin(c.store)
	initialized, err := tx.Initialized(ctx)
	if err != nil {
		return fmt.Errorf("read initialized: %w", err)
	}
	if initialized {
		return &model.AlreadyInitializedError{}
	}
	if admin == (common.Address{}) {
		return model.NewValidationError(model.ReasonInvalidAdmin)
	}

	tx.MarkInitialized()
	var granted []model.Role
	for _, role := range model.Roles() {
		ok, err := c.setRole(ctx, tx, role, admin, true)
		if err != nil {
			return err
		}
		if ok {
			granted = append(granted, role)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		var conflict *model.ConflictError
		if errors.As(err, &conflict) {
			if done, readErr := c.store.Initialized(ctx); readErr == nil && done {
				return &model.AlreadyInitializedError{}
			}
		}
		return fmt.Errorf("commit initialize: %w", err)
	}

	for _, role := range granted {
		c.events.Emit(model.EventRoleGranted, model.RoleEvent{Role: role, Account: admin, Sender: admin})
	}
	c.logger.Info("access initialized", zap.String("admin", admin.Hex()))
	return nil
}

func (c *Control) HasRole(ctx context.Context, role model.Role, principal common.Address) (bool, error) {
	return c.store.HasRole(ctx, role, principal)
}

// RoleAdmin returns the role allowed to grant and revoke role. Admin administers every role.
func (c *Control) RoleAdmin(role model.Role) model.Role {
	return model.AdminRole
}

func (c *Control) RoleMembers(ctx context.Context, role model.Role) ([]common.Address, error) {
	return c.store.RoleMembers(ctx, role)
}

// GrantRole requires caller to hold the role's admin role.
func (c *Control) GrantRole(ctx context.Context, caller common.Address, role model.Role, principal common.Address) error {
	return c.change(ctx, caller, role, principal, true)
}

// RevokeRole requires caller to hold the role's admin role.
func (c *Control) RevokeRole(ctx context.Context, caller common.Address, role model.Role, principal common.Address) error {
	return c.change(ctx, caller, role, principal, false)
}

// RenounceRole drops the caller's own membership.
func (c *Control) RenounceRole(ctx context.Context, caller common.Address, role model.Role, principal common.Address) error {
	if caller != principal {
		return &model.AuthorizationError{Principal: caller, Role: role, Reason: model.ReasonRenounceForSelfOnly}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitRole(ctx, storage.Begin(c.store), caller, role, principal, false)
}

// AuthorizeUpgrade returns nil iff principal holds Upgrader.
func (c *Control) AuthorizeUpgrade(ctx context.Context, principal common.Address) error {
	return requireRole(ctx, c.store, model.UpgraderRole, principal)
}

func (c *Control) change(ctx context.Context, caller common.Address, role model.Role, principal common.Address, member bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// the admin check is part of the committed read set, so a revocation racing
	// this change makes the commit fail
	tx := storage.Begin(c.store)
	if err := requireRole(ctx, tx, c.RoleAdmin(role), caller); err != nil {
		c.logger.Warn("role change denied",
			zap.String("caller", caller.Hex()),
			zap.String("role", role.String()),
			zap.Bool("grant", member),
		)
		return err
	}
	return c.commitRole(ctx, tx, caller, role, principal, member)
}

func (c *Control) commitRole(ctx context.Context, tx *storage.Tx, caller common.Address, role model.Role, principal common.Address, member bool) error {
	changed, err := c.setRole(ctx, tx, role, principal, member)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit role change: %w", err)
	}

	name := model.EventRoleGranted
	if !member {
		name = model.EventRoleRevoked
	}
	c.events.Emit(name, model.RoleEvent{Role: role, Account: principal, Sender: caller})
	c.logger.Info("role changed",
		zap.String("event", name),
		zap.String("role", role.String()),
		zap.String("account", principal.Hex()),
		zap.String("sender", caller.Hex()),
	)
	return nil
}

func (c *Control) setRole(ctx context.Context, tx *storage.Tx, role model.Role, principal common.Address, member bool) (bool, error) {
	current, err := tx.HasRole(ctx, role, principal)
	if err != nil {
		return false, fmt.Errorf("read role: %w", err)
	}
	if current == member {
		return false, nil
	}
	tx.SetRole(role, principal, member)
	return true, nil
}

func requireRole(ctx context.Context, r storage.Reader, role model.Role, principal common.Address) error {
	ok, err := r.HasRole(ctx, role, principal)
	if err != nil {
		return fmt.Errorf("read role: %w", err)
	}
	if !ok {
		return &model.AuthorizationError{Principal: principal, Role: role}
	}
	return nil
}
