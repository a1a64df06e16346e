package upgrade

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammPool/internal/storage"
)

// Authorizer answers whether a principal may authorize an upgrade.
type Authorizer interface {
	AuthorizeUpgrade(ctx context.Context, principal common.Address) error
}

// Candidate describes a replacement logic module and the record layouts it expects.
type Candidate struct {
	Name    string           `json:"name" mapstructure:"name"`
	Version string           `json:"version" mapstructure:"version"`
	Layouts []storage.Layout `json:"layouts" mapstructure:"layouts"`
}

// Gate is consulted by an external dispatcher before it switches logic modules.
// It never moves state itself.
type Gate struct {
	auth    Authorizer
	current []storage.Layout
	logger  *zap.Logger
}

func NewGate(auth Authorizer, current []storage.Layout, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if current == nil {
		current = storage.Layouts
	}
	return &Gate{auth: auth, current: current, logger: logger}
}

// Authorize returns nil when principal holds Upgrader and the candidate keeps every
// current record layout as a prefix of its own.
func (g *Gate) Authorize(ctx context.Context, principal common.Address, candidate Candidate) error {
	if err := g.auth.AuthorizeUpgrade(ctx, principal); err != nil {
		g.logger.Warn("upgrade denied",
			zap.String("principal", principal.Hex()),
			zap.String("candidate", candidate.Name),
			zap.Error(err),
		)
		return err
	}
	if err := storage.CheckAppendOnly(g.current, candidate.Layouts); err != nil {
		g.logger.Warn("upgrade rejected",
			zap.String("candidate", candidate.Name),
			zap.String("version", candidate.Version),
			zap.Error(err),
		)
		return fmt.Errorf("candidate %s: %w", candidate.Name, err)
	}
	g.logger.Info("upgrade authorized",
		zap.String("principal", principal.Hex()),
		zap.String("candidate", candidate.Name),
		zap.String("version", candidate.Version),
	)
	return nil
}
