package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"twammEngine/internal/model"
	"twammEngine/internal/pair"
)

type snapshot struct {
	Pairs     map[common.Address]*pair.TokenPair    `json:"pairs"`
	Pools     map[common.Address]*model.Pool        `json:"pools"`
	Orders    map[common.Address]*model.Order       `json:"orders"`
	Quotes    map[common.Address]*model.OracleQuote `json:"quotes"`
	UpdatedAt string                                `json:"updated_at,omitempty"`
}

func newSnapshot() *snapshot {
	return &snapshot{
		Pairs:  make(map[common.Address]*pair.TokenPair),
		Pools:  make(map[common.Address]*model.Pool),
		Orders: make(map[common.Address]*model.Order),
		Quotes: make(map[common.Address]*model.OracleQuote),
	}
}

func (s *snapshot) clone() *snapshot {
	cp := newSnapshot()
	for k, v := range s.Pairs {
		cp.Pairs[k] = v.Clone()
	}
	for k, v := range s.Pools {
		cp.Pools[k] = v.Clone()
	}
	for k, v := range s.Orders {
		o := *v
		cp.Orders[k] = &o
	}
	for k, v := range s.Quotes {
		q := *v
		cp.Quotes[k] = &q
	}
	cp.UpdatedAt = s.UpdatedAt
	return cp
}

// SnapshotStore keeps the whole state in memory. With a path it persists a
// JSON snapshot after every committed update.
type SnapshotStore struct {
	path string

	mu    sync.RWMutex
	state *snapshot
}

// NewMemoryStore returns a store without persistence.
func NewMemoryStore() *SnapshotStore {
	return &SnapshotStore{state: newSnapshot()}
}

// NewFileStore loads the snapshot at path, starting empty when the file does
// not exist yet.
func NewFileStore(path string) (*SnapshotStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	s := &SnapshotStore{path: path, state: newSnapshot()}

	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("stat store: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("store path is a directory")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	loaded := newSnapshot()
	if err := json.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parse store: %w", err)
	}
	s.state = loaded.clone()
	return s, nil
}

func (s *SnapshotStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&snapshotTx{state: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.path != "" {
		work.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
		if err := s.persist(work); err != nil {
			return err
		}
	}
	s.state = work
	return nil
}

func (s *SnapshotStore) View(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&snapshotTx{state: s.state, readOnly: true})
}

func (s *SnapshotStore) Close() error { return nil }

func (s *SnapshotStore) persist(state *snapshot) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename store: %w", err)
	}
	return nil
}

type snapshotTx struct {
	state    *snapshot
	readOnly bool
}

func (t *snapshotTx) writable() error {
	if t.readOnly {
		return fmt.Errorf("write in read-only transaction")
	}
	return nil
}

func (t *snapshotTx) Pair(_ context.Context, addr common.Address) (*pair.TokenPair, error) {
	tp, ok := t.state.Pairs[addr]
	if !ok {
		return nil, nil
	}
	return tp.Clone(), nil
}

func (t *snapshotTx) SavePair(_ context.Context, tp *pair.TokenPair) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.state.Pairs[tp.Address] = tp.Clone()
	return nil
}

func (t *snapshotTx) Pools(_ context.Context, pairAddr common.Address) ([]*model.Pool, error) {
	var out []*model.Pool
	for _, p := range t.state.Pools {
		if p.TokenPair == pairAddr {
			out = append(out, p.Clone())
		}
	}
	SortPools(out)
	return out, nil
}

func (t *snapshotTx) Pool(_ context.Context, addr common.Address) (*model.Pool, error) {
	p, ok := t.state.Pools[addr]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (t *snapshotTx) SavePool(_ context.Context, p *model.Pool) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.state.Pools[p.Address] = p.Clone()
	return nil
}

func (t *snapshotTx) DeletePool(_ context.Context, addr common.Address) error {
	if err := t.writable(); err != nil {
		return err
	}
	delete(t.state.Pools, addr)
	return nil
}

func (t *snapshotTx) Order(_ context.Context, addr common.Address) (*model.Order, error) {
	o, ok := t.state.Orders[addr]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (t *snapshotTx) SaveOrder(_ context.Context, o *model.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	cp := *o
	t.state.Orders[o.Address] = &cp
	return nil
}

func (t *snapshotTx) DeleteOrder(_ context.Context, addr common.Address) error {
	if err := t.writable(); err != nil {
		return err
	}
	delete(t.state.Orders, addr)
	return nil
}

func (t *snapshotTx) Quote(_ context.Context, account common.Address) (*model.OracleQuote, error) {
	q, ok := t.state.Quotes[account]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (t *snapshotTx) SaveQuote(_ context.Context, q *model.OracleQuote) error {
	if err := t.writable(); err != nil {
		return err
	}
	cp := *q
	t.state.Quotes[q.Account] = &cp
	return nil
}
