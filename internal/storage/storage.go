package storage

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"twammEngine/internal/model"
	"twammEngine/internal/pair"
)

// Tx reads and writes engine state inside one transaction. Getters return
// nil when the record does not exist.
type Tx interface {
	Pair(ctx context.Context, addr common.Address) (*pair.TokenPair, error)
	SavePair(ctx context.Context, tp *pair.TokenPair) error

	Pools(ctx context.Context, pairAddr common.Address) ([]*model.Pool, error)
	Pool(ctx context.Context, addr common.Address) (*model.Pool, error)
	SavePool(ctx context.Context, p *model.Pool) error
	DeletePool(ctx context.Context, addr common.Address) error

	Order(ctx context.Context, addr common.Address) (*model.Order, error)
	SaveOrder(ctx context.Context, o *model.Order) error
	DeleteOrder(ctx context.Context, addr common.Address) error

	Quote(ctx context.Context, account common.Address) (*model.OracleQuote, error)
	SaveQuote(ctx context.Context, q *model.OracleQuote) error
}

// Store runs transactions over persisted engine state. A transaction whose
// function returns an error leaves the store unchanged.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Transfers records token movements between custodies and participants.
type Transfers interface {
	Record(ctx context.Context, records []model.TransferRecord) error
}

// SortPools orders pools by tenor, then counter.
func SortPools(pools []*model.Pool) {
	sort.Slice(pools, func(i, j int) bool {
		if pools[i].TimeInForce != pools[j].TimeInForce {
			return pools[i].TimeInForce < pools[j].TimeInForce
		}
		return pools[i].Counter < pools[j].Counter
	})
}
