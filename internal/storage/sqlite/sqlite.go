// Package sqlite persists engine state in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/glebarez/sqlite"

	"twammEngine/internal/model"
	"twammEngine/internal/pair"
	"twammEngine/internal/storage"
)

const defaultPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

const schema = `
CREATE TABLE IF NOT EXISTS token_pairs (
	address TEXT PRIMARY KEY,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pools (
	address TEXT PRIMARY KEY,
	token_pair TEXT NOT NULL,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS pools_token_pair_idx ON pools(token_pair);
CREATE TABLE IF NOT EXISTS orders (
	address TEXT PRIMARY KEY,
	pool TEXT NOT NULL,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS oracle_quotes (
	account TEXT PRIMARY KEY,
	data TEXT NOT NULL
);
`

// ErrPathRequired is returned when the database path is missing.
var ErrPathRequired = errors.New("sqlite path must be configured")

// Store wraps a SQLite database.
type Store struct {
	db *sql.DB
}

// FileDSN converts a filesystem path into an on-disk DSN.
func FileDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrPathRequired
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve sqlite path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultPragmas), nil
}

// Open opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn, err := FileDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(tx storage.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&tx{tx: sqlTx, readOnly: readOnly}); err != nil {
		sqlTx.Rollback()
		return err
	}
	if readOnly {
		return sqlTx.Rollback()
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type tx struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *tx) get(ctx context.Context, query string, key common.Address, out interface{}) (bool, error) {
	var data string
	err := t.tx.QueryRowContext(ctx, query, key.Hex()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query row: %w", err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("decode row: %w", err)
	}
	return true, nil
}

func (t *tx) exec(ctx context.Context, query string, args ...interface{}) error {
	if t.readOnly {
		return fmt.Errorf("write in read-only transaction")
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

func encode(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode row: %w", err)
	}
	return string(data), nil
}

func (t *tx) Pair(ctx context.Context, addr common.Address) (*pair.TokenPair, error) {
	var tp pair.TokenPair
	ok, err := t.get(ctx, `SELECT data FROM token_pairs WHERE address = ?`, addr, &tp)
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
	return t.exec(ctx, `
		INSERT INTO token_pairs (address, data) VALUES (?, ?)
		ON CONFLICT (address) DO UPDATE SET data = excluded.data
	`, tp.Address.Hex(), data)
}

func (t *tx) Pools(ctx context.Context, pairAddr common.Address) ([]*model.Pool, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT data FROM pools WHERE token_pair = ?`, pairAddr.Hex())
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	var out []*model.Pool
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		var p model.Pool
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decode pool: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	storage.SortPools(out)
	return out, nil
}

func (t *tx) Pool(ctx context.Context, addr common.Address) (*model.Pool, error) {
	var p model.Pool
	ok, err := t.get(ctx, `SELECT data FROM pools WHERE address = ?`, addr, &p)
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
	return t.exec(ctx, `
		INSERT INTO pools (address, token_pair, data) VALUES (?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET token_pair = excluded.token_pair, data = excluded.data
	`, p.Address.Hex(), p.TokenPair.Hex(), data)
}

func (t *tx) DeletePool(ctx context.Context, addr common.Address) error {
	return t.exec(ctx, `DELETE FROM pools WHERE address = ?`, addr.Hex())
}

func (t *tx) Order(ctx context.Context, addr common.Address) (*model.Order, error) {
	var o model.Order
	ok, err := t.get(ctx, `SELECT data FROM orders WHERE address = ?`, addr, &o)
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
	return t.exec(ctx, `
		INSERT INTO orders (address, pool, data) VALUES (?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET pool = excluded.pool, data = excluded.data
	`, o.Address.Hex(), o.Pool.Hex(), data)
}

func (t *tx) DeleteOrder(ctx context.Context, addr common.Address) error {
	return t.exec(ctx, `DELETE FROM orders WHERE address = ?`, addr.Hex())
}

func (t *tx) Quote(ctx context.Context, account common.Address) (*model.OracleQuote, error) {
	var q model.OracleQuote
	ok, err := t.get(ctx, `SELECT data FROM oracle_quotes WHERE account = ?`, account, &q)
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
	return t.exec(ctx, `
		INSERT INTO oracle_quotes (account, data) VALUES (?, ?)
		ON CONFLICT (account) DO UPDATE SET data = excluded.data
	`, q.Account.Hex(), data)
}
