package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"ammPool/internal/model"
)

// JsonlStorage appends events or event logs to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutEvents appends emitted events as JSON lines.
func (s *JsonlStorage) PutEvents(events []model.TypedEvent) error {
	lines := make([]interface{}, 0, len(events))
	for _, event := range events {
		lines = append(lines, event)
	}
	return s.appendLines(lines)
}

// PutLogBatch appends EVM log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	lines := make([]interface{}, 0, len(logs))
	for _, record := range logs {
		lines = append(lines, record)
	}
	return s.appendLines(lines)
}

// ReadEvents reads back every event appended with PutEvents. A missing file holds no
// events. Numbers are kept as json.Number so amounts round-trip exactly.
func (s *JsonlStorage) ReadEvents() ([]model.TypedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open events file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	var events []model.TypedEvent
	for line := 1; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var event model.TypedEvent
		if err := dec.Decode(&event); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, line, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan events file: %w", err)
	}
	return events, nil
}

func (s *JsonlStorage) appendLines(values []interface{}) error {
	if len(values) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, value := range values {
		line, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
