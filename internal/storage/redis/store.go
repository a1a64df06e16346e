package redis

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"ammPool/internal/model"
	"ammPool/internal/storage"
)

// Store keeps pool state in Redis hashes and sets under a key prefix.
//
//	<prefix>:pool:<asset0>:<asset1>      hash reserve0 reserve1 total_shares
//	<prefix>:position:<asset0>:<asset1>  hash provider -> shares
//	<prefix>:role:<role id>              set of members
//	<prefix>:initialized                 "1" once initialized
type Store struct {
	reader
	client *redis.Client
}

// commands is the read subset shared by the client and a watched transaction.
type commands interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// reader runs the record reads against c.
type reader struct {
	c      commands
	prefix string
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func NewStore(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis db %d: %w", opts.DB, err)
	}
	return NewStoreWithClient(client, opts.Prefix), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "amm"
	}
	return &Store{reader: reader{c: client, prefix: prefix}, client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (r reader) Pool(ctx context.Context, key model.PairKey) (model.Pool, bool, error) {
	fields, err := r.c.HGetAll(ctx, r.poolKey(key)).Result()
	if err != nil {
		return model.Pool{}, false, err
	}
	if len(fields) == 0 {
		return model.Pool{}, false, nil
	}

	pool := model.Pool{}
	if pool.Reserve0, err = parseInt(fields["reserve0"]); err != nil {
		return model.Pool{}, false, err
	}
	if pool.Reserve1, err = parseInt(fields["reserve1"]); err != nil {
		return model.Pool{}, false, err
	}
	if pool.TotalShares, err = parseInt(fields["total_shares"]); err != nil {
		return model.Pool{}, false, err
	}
	return pool, true, nil
}

func (r reader) Position(ctx context.Context, key model.PairKey, provider common.Address) (*big.Int, error) {
	value, err := r.c.HGet(ctx, r.positionKey(key), member(provider)).Result()
	if errors.Is(err, redis.Nil) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return parseInt(value)
}

func (r reader) HasRole(ctx context.Context, role model.Role, principal common.Address) (bool, error) {
	return r.c.SIsMember(ctx, r.roleKey(role), member(principal)).Result()
}

func (r reader) RoleMembers(ctx context.Context, role model.Role) ([]common.Address, error) {
	values, err := r.c.SMembers(ctx, r.roleKey(role)).Result()
	if err != nil {
		return nil, err
	}
	members := make([]common.Address, 0, len(values))
	for _, value := range values {
		members = append(members, common.HexToAddress(value))
	}
	return storage.SortAddresses(members), nil
}

func (r reader) Initialized(ctx context.Context) (bool, error) {
	n, err := r.c.Exists(ctx, r.initializedKey()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListPools scans the pool hashes under the prefix.
func (s *Store) ListPools(ctx context.Context) (map[model.PairKey]model.Pool, error) {
	out := make(map[model.PairKey]model.Pool)
	prefix := s.prefix + ":pool:"
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key, err := model.ParsePairKey(strings.TrimPrefix(iter.Val(), prefix))
		if err != nil {
			return nil, err
		}
		pool, ok, err := s.Pool(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = pool
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan pools: %w", err)
	}
	return out, nil
}

// Apply watches every key the change set read or writes, checks the read values, and
// queues the writes in one MULTI/EXEC block. EXEC is discarded if a watched key changed.
func (s *Store) Apply(ctx context.Context, changes storage.ChangeSet) error {
	if changes.Empty() {
		return nil
	}
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		if err := storage.Verify(ctx, reader{c: tx, prefix: s.prefix}, changes.Read); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.queue(ctx, pipe, changes)
			return nil
		})
		return err
	}, s.watchKeys(changes)...)

	var conflict *model.ConflictError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &conflict):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return &model.ConflictError{Record: "watched keys"}
	default:
		return fmt.Errorf("redis apply: %w", err)
	}
}

func (s *Store) queue(ctx context.Context, pipe redis.Pipeliner, changes storage.ChangeSet) {
	for key, pool := range changes.Pools {
		pipe.HSet(ctx, s.poolKey(key),
			"reserve0", model.CopyInt(pool.Reserve0).String(),
			"reserve1", model.CopyInt(pool.Reserve1).String(),
			"total_shares", model.CopyInt(pool.TotalShares).String(),
		)
	}
	for key, shares := range changes.Positions {
		if shares == nil || shares.Sign() == 0 {
			pipe.HDel(ctx, s.positionKey(key.Pair), member(key.Provider))
			continue
		}
		pipe.HSet(ctx, s.positionKey(key.Pair), member(key.Provider), shares.String())
	}
	for key, isMember := range changes.Roles {
		if isMember {
			pipe.SAdd(ctx, s.roleKey(key.Role), member(key.Principal))
		} else {
			pipe.SRem(ctx, s.roleKey(key.Role), member(key.Principal))
		}
	}
	if changes.Initialized {
		pipe.Set(ctx, s.initializedKey(), "1", 0)
	}
}

func (s *Store) watchKeys(changes storage.ChangeSet) []string {
	set := make(map[string]struct{})
	for key := range changes.Pools {
		set[s.poolKey(key)] = struct{}{}
	}
	for key := range changes.Read.Pools {
		set[s.poolKey(key)] = struct{}{}
	}
	for key := range changes.Positions {
		set[s.positionKey(key.Pair)] = struct{}{}
	}
	for key := range changes.Read.Positions {
		set[s.positionKey(key.Pair)] = struct{}{}
	}
	for key := range changes.Roles {
		set[s.roleKey(key.Role)] = struct{}{}
	}
	for key := range changes.Read.Roles {
		set[s.roleKey(key.Role)] = struct{}{}
	}
	if changes.Initialized || changes.Read.Initialized != nil {
		set[s.initializedKey()] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	return keys
}

func (r reader) poolKey(key model.PairKey) string {
	return r.prefix + ":pool:" + key.String()
}

func (r reader) positionKey(key model.PairKey) string {
	return r.prefix + ":position:" + key.String()
}

func (r reader) roleKey(role model.Role) string {
	return r.prefix + ":role:" + role.Hex()
}

func (r reader) initializedKey() string {
	return r.prefix + ":initialized"
}

func member(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func parseInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
