package model

import "strings"

// LogRecord is the EVM log form of an emitted event. LogIndex carries the
// event log sequence, so records from one instance sort in emission order.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Timestamp   uint64   `json:"timestamp"`
}

// Topic0 returns the lower-cased event signature hash, or "" for anonymous logs.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return strings.ToLower(lr.Topics[0])
}
