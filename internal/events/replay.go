package events

import (
	"go.uber.org/zap"

	"ammPool/internal/model"
)

// Replay serves events written by other processes. Every call re-reads the history, so
// events appended after startup show up without a restart.
type Replay struct {
	history History
	logger  *zap.Logger
}

func NewReplay(history History, logger *zap.Logger) *Replay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replay{history: history, logger: logger}
}

// Since returns persisted events with a sequence greater than seq. A read failure is
// logged and answered with no events.
func (r *Replay) Since(seq uint64) []model.TypedEvent {
	out := make([]model.TypedEvent, 0)
	persisted, err := r.history.ReadEvents()
	if err != nil {
		r.logger.Warn("read event history failed", zap.Error(err))
		return out
	}
	for _, event := range persisted {
		if event.Sequence > seq {
			out = append(out, event)
		}
	}
	return out
}
