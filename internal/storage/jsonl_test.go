package storage

import (
	"bufio"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ammPool/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	sink := NewJsonlStorage(path)

	if err := sink.PutEvents([]model.TypedEvent{{Sequence: 1, EventName: model.EventSwap}}); err != nil {
		t.Fatalf("put events: %v", err)
	}
	if err := sink.PutLogBatch([]model.LogRecord{{LogIndex: 2, Topics: []string{"0x01"}}}); err != nil {
		t.Fatalf("put logs: %v", err)
	}
	if err := sink.PutEvents(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line not json: %v", err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["event_name"] != model.EventSwap {
		t.Fatalf("first line mismatch: %v", lines[0])
	}
	if lines[1]["log_index"] != float64(2) {
		t.Fatalf("second line mismatch: %v", lines[1])
	}
}

func TestJsonlStorageReadEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink := NewJsonlStorage(path)

	events, err := sink.ReadEvents()
	if err != nil || len(events) != 0 {
		t.Fatalf("missing file should read empty: %v %v", events, err)
	}

	amount, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	if err := sink.PutEvents([]model.TypedEvent{
		{Sequence: 4, EventName: model.EventSwap, Decoded: map[string]interface{}{"amount_in": amount}},
		{Sequence: 5, EventName: model.EventRoleGranted},
	}); err != nil {
		t.Fatalf("put events: %v", err)
	}

	events, err = sink.ReadEvents()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 2 || events[0].Sequence != 4 || events[1].EventName != model.EventRoleGranted {
		t.Fatalf("events mismatch: %+v", events)
	}
	decoded, ok := events[0].Decoded.(map[string]interface{})
	if !ok || decoded["amount_in"] != json.Number(amount.String()) {
		t.Fatalf("amount should keep full precision: %#v", events[0].Decoded)
	}
}

func TestJsonlStorageReadEventsRejectsCorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := os.WriteFile(path, []byte("{\"sequence\":1}\n{not json\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewJsonlStorage(path).ReadEvents(); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line 2 error, got %v", err)
	}
}
