package model

// TypedEvent is an emitted event with its position in the event log.
type TypedEvent struct {
	Sequence  uint64      `json:"sequence"`
	EventName string      `json:"event_name"`
	Timestamp uint64      `json:"timestamp"`
	Decoded   interface{} `json:"decoded"`
	Raw       *RawLogRef  `json:"raw,omitempty"`
}

// RawLogRef keeps the EVM log encoding when the event was decoded from one.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}
