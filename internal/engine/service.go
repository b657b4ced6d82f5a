// Package engine runs the pair entrypoints: orders, settlements, cranks and
// admin operations, each as one atomic storage transaction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"twammEngine/internal/errs"
	"twammEngine/internal/metrics"
	"twammEngine/internal/model"
	"twammEngine/internal/oracle"
	"twammEngine/internal/pair"
	"twammEngine/internal/pool"
	"twammEngine/internal/storage"
)

var (
	ErrPairNotFound  = errors.New("token pair not found")
	ErrOrderNotFound = errors.New("order not found")
)

// Service executes engine operations against a store.
type Service struct {
	store     storage.Store
	transfers storage.Transfers
	router    Router
	clock     Clock
	sources   map[model.OracleType]oracle.Source
	logger    *zap.Logger
	metrics   *metrics.EngineMetrics

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithTransfers sets the sink for token movements.
func WithTransfers(t storage.Transfers) Option {
	return func(s *Service) { s.transfers = t }
}

// WithRouter enables external swaps during cranks.
func WithRouter(r Router) Option {
	return func(s *Service) { s.router = r }
}

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithOracleSource installs a price source for an oracle type. Test oracles
// always read quotes from the store.
func WithOracleSource(kind model.OracleType, src oracle.Source) Option {
	return func(s *Service) { s.sources[kind] = src }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a service.
func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		transfers: &storage.MemoryTransfers{},
		clock:     SystemClock{},
		sources:   make(map[model.OracleType]oracle.Source),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// txn carries the state of one running operation.
type txn struct {
	storage.Tx
	ctx       context.Context
	now       int64
	transfers []model.TransferRecord
}

func (t *txn) transfer(tp *pair.TokenPair, tokenA bool, from, to common.Address, amount uint64, reason string) {
	if amount == 0 {
		return
	}
	token := tp.ConfigB.Mint
	if tokenA {
		token = tp.ConfigA.Mint
	}
	t.transfers = append(t.transfers, model.TransferRecord{
		Pair:      tp.Address,
		Token:     token,
		From:      from,
		To:        to,
		Amount:    amount,
		Reason:    reason,
		Timestamp: t.now,
	})
}

// update runs fn in a write transaction and records the collected transfers
// once the transaction commits.
func (s *Service) update(ctx context.Context, op string, fn func(t *txn) error) (err error) {
	start := time.Now()
	defer func() { s.metrics.Observe(op, err, time.Since(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	now, err := s.clock.Now(ctx)
	if err != nil {
		return fmt.Errorf("read clock: %w", err)
	}
	var records []model.TransferRecord
	err = s.store.Update(ctx, func(tx storage.Tx) error {
		t := &txn{Tx: tx, ctx: ctx, now: now}
		if err := fn(t); err != nil {
			return err
		}
		records = t.transfers
		return nil
	})
	if err != nil {
		s.logger.Debug("operation rejected", zap.String("op", op), zap.String("code", errs.Code(err)), zap.Error(err))
		return err
	}
	// The state is committed at this point, so a journal failure must not
	// report the operation as failed.
	if err := s.transfers.Record(ctx, records); err != nil {
		s.logger.Error("record transfers", zap.String("op", op), zap.Int("count", len(records)), zap.Error(err))
	}
	return nil
}

func (s *Service) view(ctx context.Context, fn func(t *txn) error) error {
	now, err := s.clock.Now(ctx)
	if err != nil {
		return fmt.Errorf("read clock: %w", err)
	}
	return s.store.View(ctx, func(tx storage.Tx) error {
		return fn(&txn{Tx: tx, ctx: ctx, now: now})
	})
}

func (t *txn) pair(addr common.Address) (*pair.TokenPair, error) {
	tp, err := t.Pair(t.ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("load pair: %w", err)
	}
	if tp == nil || !tp.Initialized() {
		return nil, fmt.Errorf("%w: %s", ErrPairNotFound, addr.Hex())
	}
	return tp, nil
}

// currentPools loads and validates every present current pool of a pair.
func (t *txn) currentPools(tp *pair.TokenPair) ([]*model.Pool, error) {
	addrs := pool.CurrentAddresses(&tp.Pools, tp.ConfigA.Custody, tp.ConfigB.Custody)
	candidates := make([]*model.Pool, 0, len(addrs))
	for _, addr := range addrs {
		p, err := t.Pool(t.ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("load pool: %w", err)
		}
		if p == nil {
			return nil, fmt.Errorf("%w: current pool %s is missing", errs.ErrInvalidPoolState, addr.Hex())
		}
		candidates = append(candidates, p)
	}
	return pool.Load(&tp.Pools, tp.ConfigA.Custody, tp.ConfigB.Custody, candidates)
}

func (s *Service) registry(t *txn) *oracle.Registry {
	opts := []oracle.Option{oracle.WithSource(model.OracleTest, oracle.NewTestSource(t))}
	for kind, src := range s.sources {
		if kind != model.OracleTest {
			opts = append(opts, oracle.WithSource(kind, src))
		}
	}
	return oracle.NewRegistry(opts...)
}

// finishPools refreshes pool states after a settlement, finalizes complete
// pools and persists the rest.
func (s *Service) finishPools(t *txn, tp *pair.TokenPair, pools []*model.Pool) error {
	for _, p := range pools {
		if _, err := pool.UpdateState(p, tp.MinTimeTillExpiration, t.now); err != nil {
			return err
		}
		if pool.IsComplete(p, t.now) {
			empty, err := tp.FinalizePool(p)
			if err != nil {
				return err
			}
			s.metrics.RecordFinalized(tp.Address.Hex())
			s.logger.Info("pool finalized",
				zap.String("pool", p.Address.Hex()),
				zap.Uint32("tif", p.TimeInForce),
				zap.Uint64("counter", p.Counter),
				zap.Bool("deleted", empty),
			)
			if empty {
				if err := t.DeletePool(t.ctx, p.Address); err != nil {
					return fmt.Errorf("delete pool: %w", err)
				}
				continue
			}
		}
		if err := t.SavePool(t.ctx, p); err != nil {
			return fmt.Errorf("save pool: %w", err)
		}
	}
	return nil
}
