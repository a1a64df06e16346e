package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLogRecordTopic0(t *testing.T) {
	record := LogRecord{Topics: []string{"0xABCDEF", "0x01"}}
	if got := record.Topic0(); got != "0xabcdef" {
		t.Fatalf("topic0 = %s", got)
	}
	if got := (LogRecord{}).Topic0(); got != "" {
		t.Fatalf("anonymous topic0 = %q", got)
	}
}

func TestLogRecordJSONFieldNames(t *testing.T) {
	b, err := json.Marshal(LogRecord{ChainID: 31337, LogIndex: 4, Topics: []string{"0x01"}, Data: "0x"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"chain_id":31337`, `"log_index":4`, `"topics":["0x01"]`, `"data":"0x"`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("missing %s in %s", key, b)
		}
	}
}

func TestNewDecodeError(t *testing.T) {
	record := LogRecord{ChainID: 31337, LogIndex: 9, Address: "0x1000", Topics: []string{"0xFF"}}
	got := NewDecodeError(record, errors.New("bad data"))
	want := DecodeError{ChainID: 31337, LogIndex: 9, Address: "0x1000", Topic0: "0xff", Error: "bad data"}
	if got != want {
		t.Fatalf("decode error = %+v, want %+v", got, want)
	}
}
