package model

// DecodeError records a log line that could not be decoded into an event.
type DecodeError struct {
	ChainID     uint64 `json:"chain_id,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	LogIndex    uint64 `json:"log_index,omitempty"`
	Address     string `json:"address,omitempty"`
	Topic0      string `json:"topic0,omitempty"`
	Error       string `json:"error"`
}

// NewDecodeError locates err at record.
func NewDecodeError(record LogRecord, err error) DecodeError {
	return DecodeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      record.Topic0(),
		Error:       err.Error(),
	}
}
