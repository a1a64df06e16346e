package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"ammPool/internal/model"
	"ammPool/internal/storage"
)

// Log records emitted events in order and forwards them to sinks.
// Sink failures are logged; the in-memory record is authoritative.
type Log struct {
	mu      sync.RWMutex
	seq     uint64
	records []model.TypedEvent
	sinks   []storage.EventSink
	logger  *zap.Logger
	now     func() time.Time
}

func NewLog(logger *zap.Logger, sinks ...storage.EventSink) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		sinks:  sinks,
		logger: logger,
		now:    time.Now,
	}
}

// History is a persisted event stream, such as the JSONL events file.
type History interface {
	ReadEvents() ([]model.TypedEvent, error)
}

// Resume continues numbering after the highest sequence in h, so events appended by
// later processes keep increasing. Records already in h are not loaded.
func (l *Log) Resume(h History) error {
	persisted, err := h.ReadEvents()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, event := range persisted {
		if event.Sequence > l.seq {
			l.seq = event.Sequence
		}
	}
	return nil
}

// Emit appends an event and returns it with its sequence number.
func (l *Log) Emit(name string, decoded interface{}) model.TypedEvent {
	l.mu.Lock()
	l.seq++
	event := model.TypedEvent{
		Sequence:  l.seq,
		EventName: name,
		Timestamp: uint64(l.now().Unix()),
		Decoded:   decoded,
	}
	l.records = append(l.records, event)
	sinks := l.sinks
	l.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.PutEvents([]model.TypedEvent{event}); err != nil {
			l.logger.Warn("event sink write failed", zap.String("event", name), zap.Uint64("sequence", event.Sequence), zap.Error(err))
		}
	}
	return event
}

// Since returns events with a sequence greater than seq.
func (l *Log) Since(seq uint64) []model.TypedEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.TypedEvent, 0)
	for _, event := range l.records {
		if event.Sequence > seq {
			out = append(out, event)
		}
	}
	return out
}

// Last returns the most recent event with the given name.
func (l *Log) Last(name string) (model.TypedEvent, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].EventName == name {
			return l.records[i], true
		}
	}
	return model.TypedEvent{}, false
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
