package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"twammEngine/internal/model"
	"twammEngine/internal/pair"
	"twammEngine/internal/storage"
)

// Schema creates the tables the store needs.
const Schema = `
CREATE TABLE IF NOT EXISTS token_pairs (
	address TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pools (
	address TEXT PRIMARY KEY,
	token_pair TEXT NOT NULL,
	time_in_force BIGINT NOT NULL,
	counter BIGINT NOT NULL,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS pools_token_pair_idx ON pools (token_pair);
CREATE TABLE IF NOT EXISTS orders (
	address TEXT PRIMARY KEY,
	pool TEXT NOT NULL,
	owner TEXT NOT NULL,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS oracle_quotes (
	account TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for engine state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema applies Schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(t pgx.Tx) error {
		return fn(&tx{tx: t})
	})
}

func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(t pgx.Tx) error {
		return fn(&tx{tx: t})
	})
}

type tx struct {
	tx pgx.Tx
}

func (t *tx) get(ctx context.Context, query string, key common.Address, out interface{}) (bool, error) {
	var data []byte
	if err := t.tx.QueryRow(ctx, query, key.Hex()).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if err := decode(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return data, nil
}

func decode(data []byte, out interface{}) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}

func (t *tx) Pair(ctx context.Context, addr common.Address) (*pair.TokenPair, error) {
	var tp pair.TokenPair
	ok, err := t.get(ctx, `SELECT data FROM token_pairs WHERE address=$1`, addr, &tp)
	if err != nil || !ok {
		return nil, err
	}
	return &tp, nil
}

func (t *tx) SavePair(ctx context.Context, tp *pair.TokenPair) error {
	data, err := encode(tp)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO token_pairs (address, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (address) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()
	`, tp.Address.Hex(), data)
	return err
}

func (t *tx) Pools(ctx context.Context, pairAddr common.Address) ([]*model.Pool, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT data FROM pools WHERE token_pair=$1 ORDER BY time_in_force, counter
	`, pairAddr.Hex())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Pool
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p model.Pool
		if err := decode(data, &p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (t *tx) Pool(ctx context.Context, addr common.Address) (*model.Pool, error) {
	var p model.Pool
	ok, err := t.get(ctx, `SELECT data FROM pools WHERE address=$1`, addr, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (t *tx) SavePool(ctx context.Context, p *model.Pool) error {
	data, err := encode(p)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO pools (address, token_pair, time_in_force, counter, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (address) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()
	`, p.Address.Hex(), p.TokenPair.Hex(), int64(p.TimeInForce), int64(p.Counter), data)
	return err
}

func (t *tx) DeletePool(ctx context.Context, addr common.Address) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM pools WHERE address=$1`, addr.Hex())
	return err
}

func (t *tx) Order(ctx context.Context, addr common.Address) (*model.Order, error) {
	var o model.Order
	ok, err := t.get(ctx, `SELECT data FROM orders WHERE address=$1`, addr, &o)
	if err != nil || !ok {
		return nil, err
	}
	return &o, nil
}

func (t *tx) SaveOrder(ctx context.Context, o *model.Order) error {
	data, err := encode(o)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO orders (address, pool, owner, data, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (address) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()
	`, o.Address.Hex(), o.Pool.Hex(), o.Owner.Hex(), data)
	return err
}

func (t *tx) DeleteOrder(ctx context.Context, addr common.Address) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE address=$1`, addr.Hex())
	return err
}

func (t *tx) Quote(ctx context.Context, account common.Address) (*model.OracleQuote, error) {
	var q model.OracleQuote
	ok, err := t.get(ctx, `SELECT data FROM oracle_quotes WHERE account=$1`, account, &q)
	if err != nil || !ok {
		return nil, err
	}
	return &q, nil
}

func (t *tx) SaveQuote(ctx context.Context, q *model.OracleQuote) error {
	data, err := encode(q)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO oracle_quotes (account, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (account) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()
	`, q.Account.Hex(), data)
	return err
}
