package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"ammPool/internal/model"
	"ammPool/internal/storage"
)

// Encoder renders emitted events as EVM logs of the pool manager contract.
type Encoder struct {
	ChainID  uint64
	Contract common.Address
}

// Encode converts an emitted event into its log form. The log index is the event sequence.
func (e Encoder) Encode(event model.TypedEvent) (model.LogRecord, error) {
	parsed, err := PoolManagerABI()
	if err != nil {
		return model.LogRecord{}, err
	}
	abiEvent, ok := parsed.Events[event.EventName]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("no log form for event %s", event.EventName)
	}

	var (
		indexed []common.Hash
		data    []byte
	)
	switch decoded := event.Decoded.(type) {
	case model.LiquidityAddedEvent:
		indexed = addressTopics(decoded.Provider, decoded.AssetA, decoded.AssetB)
		data, err = abiEvent.Inputs.NonIndexed().Pack(
			nonNil(decoded.AmountA), nonNil(decoded.AmountB), nonNil(decoded.SharesMinted))
	case model.LiquidityRemovedEvent:
		indexed = addressTopics(decoded.Provider, decoded.AssetA, decoded.AssetB)
		data, err = abiEvent.Inputs.NonIndexed().Pack(
			nonNil(decoded.AmountA), nonNil(decoded.AmountB), nonNil(decoded.SharesBurned))
	case model.SwapEvent:
		indexed = addressTopics(decoded.Trader, decoded.AssetIn, decoded.AssetOut)
		data, err = abiEvent.Inputs.NonIndexed().Pack(nonNil(decoded.AmountIn), nonNil(decoded.AmountOut))
	case model.RoleEvent:
		indexed = append([]common.Hash{common.Hash(decoded.Role)}, addressTopics(decoded.Account, decoded.Sender)...)
	default:
		return model.LogRecord{}, fmt.Errorf("event %s has unsupported payload %T", event.EventName, event.Decoded)
	}
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", event.EventName, err)
	}

	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, abiEvent.ID.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:   e.ChainID,
		LogIndex:  event.Sequence,
		Address:   e.Contract.Hex(),
		Topics:    topics,
		Data:      hexutil.Encode(data),
		Timestamp: event.Timestamp,
	}, nil
}

func addressTopics(addrs ...common.Address) []common.Hash {
	out := make([]common.Hash, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, common.BytesToHash(addr.Bytes()))
	}
	return out
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// LogWriter is an event sink that encodes events and forwards them to a log sink.
type LogWriter struct {
	encoder Encoder
	sink    storage.LogSink
}

func NewLogWriter(encoder Encoder, sink storage.LogSink) *LogWriter {
	return &LogWriter{encoder: encoder, sink: sink}
}

// PutEvents implements storage.EventSink.
func (w *LogWriter) PutEvents(events []model.TypedEvent) error {
	logs := make([]model.LogRecord, 0, len(events))
	for _, event := range events {
		record, err := w.encoder.Encode(event)
		if err != nil {
			return err
		}
		logs = append(logs, record)
	}
	return w.sink.PutLogBatch(logs)
}
