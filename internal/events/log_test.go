package events

import (
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"ammPool/internal/model"
	"ammPool/internal/storage"
)

type recordingSink struct {
	events []model.TypedEvent
	err    error
}

func (s *recordingSink) PutEvents(events []model.TypedEvent) error {
	s.events = append(s.events, events...)
	return s.err
}

func TestLogEmitSequence(t *testing.T) {
	sink := &recordingSink{}
	failing := &recordingSink{err: errors.New("disk full")}
	log := NewLog(zap.NewNop(), sink, failing)

	first := log.Emit(model.EventLiquidityAdded, model.LiquidityAddedEvent{})
	second := log.Emit(model.EventSwap, model.SwapEvent{})
	third := log.Emit(model.EventSwap, model.SwapEvent{})

	if first.Sequence != 1 || second.Sequence != 2 || third.Sequence != 3 {
		t.Fatalf("sequence mismatch: %d %d %d", first.Sequence, second.Sequence, third.Sequence)
	}
	if len(sink.events) != 3 {
		t.Fatalf("sink should receive every event, got %d", len(sink.events))
	}
	if log.Len() != 3 {
		t.Fatalf("failing sink must not drop events, got %d", log.Len())
	}

	since := log.Since(1)
	if len(since) != 2 || since[0].Sequence != 2 {
		t.Fatalf("since mismatch: %+v", since)
	}

	last, ok := log.Last(model.EventSwap)
	if !ok || last.Sequence != 3 {
		t.Fatalf("last swap mismatch: %+v ok=%v", last, ok)
	}
	if _, ok := log.Last(model.EventRoleGranted); ok {
		t.Fatalf("unexpected role event")
	}
}

type staticHistory struct {
	events []model.TypedEvent
	err    error
}

func (h *staticHistory) ReadEvents() ([]model.TypedEvent, error) {
	return h.events, h.err
}

func TestLogResumeContinuesSequence(t *testing.T) {
	history := &staticHistory{events: []model.TypedEvent{{Sequence: 7}, {Sequence: 9}, {Sequence: 8}}}
	log := NewLog(zap.NewNop())
	if err := log.Resume(history); err != nil {
		t.Fatalf("resume: %v", err)
	}

	event := log.Emit(model.EventSwap, model.SwapEvent{})
	if event.Sequence != 10 {
		t.Fatalf("expected sequence 10, got %d", event.Sequence)
	}
	if log.Len() != 1 {
		t.Fatalf("persisted events should not be loaded, got %d", log.Len())
	}

	if err := NewLog(nil).Resume(&staticHistory{err: errors.New("unreadable")}); err == nil {
		t.Fatalf("expected resume error")
	}
}

func TestLogResumeAcrossProcesses(t *testing.T) {
	file := storage.NewJsonlStorage(filepath.Join(t.TempDir(), "events.jsonl"))
	for run := 0; run < 2; run++ {
		log := NewLog(zap.NewNop(), file)
		if err := log.Resume(file); err != nil {
			t.Fatalf("resume: %v", err)
		}
		log.Emit(model.EventLiquidityAdded, model.LiquidityAddedEvent{})
		log.Emit(model.EventSwap, model.SwapEvent{})
	}

	persisted, err := file.ReadEvents()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, event := range persisted {
		if event.Sequence != uint64(i+1) {
			t.Fatalf("event %d has sequence %d", i, event.Sequence)
		}
	}
	if len(persisted) != 4 {
		t.Fatalf("expected 4 events, got %d", len(persisted))
	}
}

func TestReplayRereadsHistory(t *testing.T) {
	history := &staticHistory{events: []model.TypedEvent{{Sequence: 1}, {Sequence: 2}}}
	replay := NewReplay(history, zap.NewNop())

	if got := replay.Since(1); len(got) != 1 || got[0].Sequence != 2 {
		t.Fatalf("since mismatch: %+v", got)
	}
	history.events = append(history.events, model.TypedEvent{Sequence: 3})
	if got := replay.Since(0); len(got) != 3 {
		t.Fatalf("appended event not visible: %+v", got)
	}

	history.err = errors.New("unreadable")
	if got := replay.Since(0); got == nil || len(got) != 0 {
		t.Fatalf("read failure should answer an empty list: %+v", got)
	}
}
