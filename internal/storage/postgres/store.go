package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammPool/internal/model"
	"ammPool/internal/storage"
)

// Schema creates the tables used by Store. Columns are only ever appended.
const Schema = `
CREATE TABLE IF NOT EXISTS pools (
	asset0 TEXT NOT NULL,
	asset1 TEXT NOT NULL,
	reserve0 NUMERIC(78,0) NOT NULL,
	reserve1 NUMERIC(78,0) NOT NULL,
	total_shares NUMERIC(78,0) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (asset0, asset1)
);
CREATE TABLE IF NOT EXISTS positions (
	asset0 TEXT NOT NULL,
	asset1 TEXT NOT NULL,
	provider TEXT NOT NULL,
	shares NUMERIC(78,0) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (asset0, asset1, provider)
);
CREATE TABLE IF NOT EXISTS role_members (
	role TEXT NOT NULL,
	member TEXT NOT NULL,
	granted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (role, member)
);
CREATE TABLE IF NOT EXISTS instance_state (
	name TEXT PRIMARY KEY,
	initialized BOOLEAN NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// reader runs the record reads against q.
type reader struct {
	q    querier
	name string
}

// Store provides Postgres persistence for pool state.
type Store struct {
	reader
	pool *pgxpool.Pool
}

// NewStore connects to dsn. name scopes the instance_state row so several
// deployments can share one database.
func NewStore(ctx context.Context, dsn string, name string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	if name == "" {
		name = "default"
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{reader: reader{q: pool, name: name}, pool: pool}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (r reader) Pool(ctx context.Context, key model.PairKey) (model.Pool, bool, error) {
	var r0, r1, total string
	row := r.q.QueryRow(ctx, `
		SELECT reserve0::text, reserve1::text, total_shares::text
		FROM pools WHERE asset0=$1 AND asset1=$2
	`, addressKey(key.Asset0), addressKey(key.Asset1))
	if err := row.Scan(&r0, &r1, &total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, false, nil
		}
		return model.Pool{}, false, err
	}

	pool := model.Pool{}
	var err error
	if pool.Reserve0, err = parseNumeric(r0); err != nil {
		return model.Pool{}, false, err
	}
	if pool.Reserve1, err = parseNumeric(r1); err != nil {
		return model.Pool{}, false, err
	}
	if pool.TotalShares, err = parseNumeric(total); err != nil {
		return model.Pool{}, false, err
	}
	return pool, true, nil
}

func (r reader) Position(ctx context.Context, key model.PairKey, provider common.Address) (*big.Int, error) {
	var shares string
	row := r.q.QueryRow(ctx, `
		SELECT shares::text FROM positions WHERE asset0=$1 AND asset1=$2 AND provider=$3
	`, addressKey(key.Asset0), addressKey(key.Asset1), addressKey(provider))
	if err := row.Scan(&shares); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return parseNumeric(shares)
}

func (r reader) HasRole(ctx context.Context, role model.Role, principal common.Address) (bool, error) {
	var exists bool
	row := r.q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM role_members WHERE role=$1 AND member=$2)
	`, role.Hex(), addressKey(principal))
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r reader) RoleMembers(ctx context.Context, role model.Role) ([]common.Address, error) {
	rows, err := r.q.Query(ctx, `SELECT member FROM role_members WHERE role=$1 ORDER BY member`, role.Hex())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []common.Address
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, err
		}
		members = append(members, common.HexToAddress(member))
	}
	return members, rows.Err()
}

func (r reader) Initialized(ctx context.Context) (bool, error) {
	var initialized bool
	row := r.q.QueryRow(ctx, `SELECT initialized FROM instance_state WHERE name=$1`, r.name)
	if err := row.Scan(&initialized); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return initialized, nil
}

// ListPools reads every pool row.
func (s *Store) ListPools(ctx context.Context) (map[model.PairKey]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT asset0, asset1, reserve0::text, reserve1::text, total_shares::text FROM pools
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.PairKey]model.Pool)
	for rows.Next() {
		var a0, a1, r0, r1, total string
		if err := rows.Scan(&a0, &a1, &r0, &r1, &total); err != nil {
			return nil, err
		}
		key, err := model.ParsePairKey(a0 + ":" + a1)
		if err != nil {
			return nil, err
		}
		pool := model.Pool{}
		if pool.Reserve0, err = parseNumeric(r0); err != nil {
			return nil, err
		}
		if pool.Reserve1, err = parseNumeric(r1); err != nil {
			return nil, err
		}
		if pool.TotalShares, err = parseNumeric(total); err != nil {
			return nil, err
		}
		out[key] = pool
	}
	return out, rows.Err()
}

// Apply writes the change set inside one SQL transaction. A transaction-scoped advisory
// lock on the instance name orders concurrent writers, and the records the change set
// was computed from are checked under that lock before anything is written.
func (s *Store) Apply(ctx context.Context, changes storage.ChangeSet) error {
	if changes.Empty() {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "amm:"+s.name); err != nil {
			return fmt.Errorf("lock instance: %w", err)
		}
		if err := storage.Verify(ctx, reader{q: tx, name: s.name}, changes.Read); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for key, pool := range changes.Pools {
			batch.Queue(`
				INSERT INTO pools (asset0, asset1, reserve0, reserve1, total_shares, created_at, updated_at)
				VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, now(), now())
				ON CONFLICT (asset0, asset1)
				DO UPDATE SET
					reserve0 = EXCLUDED.reserve0,
					reserve1 = EXCLUDED.reserve1,
					total_shares = EXCLUDED.total_shares,
					updated_at = now()
			`,
				addressKey(key.Asset0),
				addressKey(key.Asset1),
				model.CopyInt(pool.Reserve0).String(),
				model.CopyInt(pool.Reserve1).String(),
				model.CopyInt(pool.TotalShares).String(),
			)
		}
		for key, shares := range changes.Positions {
			if shares == nil || shares.Sign() == 0 {
				batch.Queue(`DELETE FROM positions WHERE asset0=$1 AND asset1=$2 AND provider=$3`,
					addressKey(key.Pair.Asset0), addressKey(key.Pair.Asset1), addressKey(key.Provider))
				continue
			}
			batch.Queue(`
				INSERT INTO positions (asset0, asset1, provider, shares, updated_at)
				VALUES ($1, $2, $3, $4::numeric, now())
				ON CONFLICT (asset0, asset1, provider)
				DO UPDATE SET shares = EXCLUDED.shares, updated_at = now()
			`,
				addressKey(key.Pair.Asset0),
				addressKey(key.Pair.Asset1),
				addressKey(key.Provider),
				shares.String(),
			)
		}
		for key, member := range changes.Roles {
			if member {
				batch.Queue(`
					INSERT INTO role_members (role, member, granted_at) VALUES ($1, $2, now())
					ON CONFLICT (role, member) DO NOTHING
				`, key.Role.Hex(), addressKey(key.Principal))
			} else {
				batch.Queue(`DELETE FROM role_members WHERE role=$1 AND member=$2`, key.Role.Hex(), addressKey(key.Principal))
			}
		}
		if changes.Initialized {
			batch.Queue(`
				INSERT INTO instance_state (name, initialized, updated_at) VALUES ($1, true, now())
				ON CONFLICT (name) DO UPDATE SET initialized = true, updated_at = now()
			`, s.name)
		}

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
		}
		return br.Close()
	})
}

func addressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func parseNumeric(value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric: %s", value)
	}
	return parsed, nil
}
