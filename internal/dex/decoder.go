package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"ammPool/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord) (*model.TypedEvent, error)
}

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds topic0 aliases, e.g. for a deployment emitting under a different signature.
	Topic0Map map[string]string
}

// EventDecoder decodes pool manager events.
type EventDecoder struct {
	abi         abi.ABI
	topicToName map[string]string
}

// NewEventDecoder builds a pool manager event decoder.
func NewEventDecoder(cfg DecoderConfig) (*EventDecoder, error) {
	parsed, err := PoolManagerABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(parsed.Events))
	for name, event := range parsed.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &EventDecoder{
		abi:         parsed,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *EventDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *EventDecoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[log.Topic0()]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid contract address: %s", log.Address)
	}

	var (
		decoded interface{}
		err     error
	)
	switch name {
	case model.EventLiquidityAdded:
		decoded, err = d.decodeLiquidityAdded(log)
	case model.EventLiquidityRemoved:
		decoded, err = d.decodeLiquidityRemoved(log)
	case model.EventSwap:
		decoded, err = d.decodeSwap(log)
	case model.EventRoleGranted, model.EventRoleRevoked:
		decoded, err = d.decodeRole(name, log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}

	return &model.TypedEvent{
		Sequence:  log.LogIndex,
		EventName: name,
		Timestamp: log.Timestamp,
		Decoded:   decoded,
		Raw:       &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "liquidityadded":
		return model.EventLiquidityAdded
	case "liquidityremoved":
		return model.EventLiquidityRemoved
	case "swap":
		return model.EventSwap
	case "rolegranted":
		return model.EventRoleGranted
	case "rolerevoked":
		return model.EventRoleRevoked
	default:
		return ""
	}
}

type liquidityTopics struct {
	Provider common.Address
	TokenA   common.Address
	TokenB   common.Address
}

func (d *EventDecoder) decodeLiquidity(name string, log model.LogRecord) (liquidityTopics, [3]*big.Int, error) {
	var amounts [3]*big.Int
	event := d.abi.Events[name]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return liquidityTopics{}, amounts, err
	}

	var indexed liquidityTopics
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return liquidityTopics{}, amounts, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return liquidityTopics{}, amounts, err
	}
	if len(values) != 3 {
		return liquidityTopics{}, amounts, fmt.Errorf("unexpected %s values: %d", name, len(values))
	}
	for i, value := range values {
		amounts[i], err = asBigInt(value)
		if err != nil {
			return liquidityTopics{}, amounts, err
		}
	}
	return indexed, amounts, nil
}

func (d *EventDecoder) decodeLiquidityAdded(log model.LogRecord) (model.LiquidityAddedEvent, error) {
	indexed, amounts, err := d.decodeLiquidity(model.EventLiquidityAdded, log)
	if err != nil {
		return model.LiquidityAddedEvent{}, err
	}
	return model.LiquidityAddedEvent{
		Provider:     indexed.Provider,
		AssetA:       indexed.TokenA,
		AssetB:       indexed.TokenB,
		AmountA:      amounts[0],
		AmountB:      amounts[1],
		SharesMinted: amounts[2],
	}, nil
}

func (d *EventDecoder) decodeLiquidityRemoved(log model.LogRecord) (model.LiquidityRemovedEvent, error) {
	indexed, amounts, err := d.decodeLiquidity(model.EventLiquidityRemoved, log)
	if err != nil {
		return model.LiquidityRemovedEvent{}, err
	}
	return model.LiquidityRemovedEvent{
		Provider:     indexed.Provider,
		AssetA:       indexed.TokenA,
		AssetB:       indexed.TokenB,
		AmountA:      amounts[0],
		AmountB:      amounts[1],
		SharesBurned: amounts[2],
	}, nil
}

func (d *EventDecoder) decodeSwap(log model.LogRecord) (model.SwapEvent, error) {
	event := d.abi.Events[model.EventSwap]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.SwapEvent{}, err
	}

	var indexed struct {
		Trader   common.Address
		TokenIn  common.Address
		TokenOut common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.SwapEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.SwapEvent{}, err
	}
	if len(values) != 2 {
		return model.SwapEvent{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}
	amountIn, err := asBigInt(values[0])
	if err != nil {
		return model.SwapEvent{}, err
	}
	amountOut, err := asBigInt(values[1])
	if err != nil {
		return model.SwapEvent{}, err
	}

	return model.SwapEvent{
		Trader:    indexed.Trader,
		AssetIn:   indexed.TokenIn,
		AssetOut:  indexed.TokenOut,
		AmountIn:  amountIn,
		AmountOut: amountOut,
	}, nil
}

func (d *EventDecoder) decodeRole(name string, log model.LogRecord) (model.RoleEvent, error) {
	event := d.abi.Events[name]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.RoleEvent{}, err
	}

	var indexed struct {
		Role    [32]byte
		Account common.Address
		Sender  common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.RoleEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	return model.RoleEvent{
		Role:    model.Role(indexed.Role),
		Account: indexed.Account,
		Sender:  indexed.Sender,
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
