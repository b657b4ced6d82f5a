// Package storagetest checks Store implementations against the shared contract.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"twammEngine/internal/model"
	"twammEngine/internal/pair"
	"twammEngine/internal/storage"
)

var (
	pairAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	otherPair = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	custodyA  = common.HexToAddress("0x00000000000000000000000000000000000000ca")
	custodyB  = common.HexToAddress("0x00000000000000000000000000000000000000cb")
)

// Run exercises the store returned by open.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Run("missing records are nil", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.View(context.Background(), func(tx storage.Tx) error {
			ctx := context.Background()
			tp, err := tx.Pair(ctx, pairAddr)
			require.NoError(t, err)
			require.Nil(t, tp)
			p, err := tx.Pool(ctx, pairAddr)
			require.NoError(t, err)
			require.Nil(t, p)
			o, err := tx.Order(ctx, pairAddr)
			require.NoError(t, err)
			require.Nil(t, o)
			q, err := tx.Quote(ctx, pairAddr)
			require.NoError(t, err)
			require.Nil(t, q)
			pools, err := tx.Pools(ctx, pairAddr)
			require.NoError(t, err)
			require.Empty(t, pools)
			return nil
		}))
	})

	t.Run("round trip", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		tp := &pair.TokenPair{Address: pairAddr, FeeNumerator: 1, FeeDenominator: 100, MaxSwapPriceDiff: 0.25}
		tp.ConfigA.Custody = custodyA
		tp.ConfigB.Custody = custodyB
		tp.Pools.TimeInForce[0] = 300
		tp.Pools.CurrentPresent[0] = true

		first := newPool(300, 1)
		first.SellSide.SourceBalance = 42
		first.BuySide.WeightedFillsSum = 1.5
		second := newPool(300, 0)
		foreign := newPool(900, 0)
		foreign.TokenPair = otherPair
		order := &model.Order{Address: common.HexToAddress("0x01"), Owner: common.HexToAddress("0x02"),
			Side: model.OrderSell, Pool: first.Address, LPBalance: 42, UnsettledBalance: 42}
		quote := &model.OracleQuote{Account: common.HexToAddress("0x03"), Price: 12345, Exponent: -2, PublishTime: 99}

		require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
			require.NoError(t, tx.SavePair(ctx, tp))
			require.NoError(t, tx.SavePool(ctx, first))
			require.NoError(t, tx.SavePool(ctx, second))
			require.NoError(t, tx.SavePool(ctx, foreign))
			require.NoError(t, tx.SaveOrder(ctx, order))
			return tx.SaveQuote(ctx, quote)
		}))

		require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
			got, err := tx.Pair(ctx, pairAddr)
			require.NoError(t, err)
			require.Equal(t, tp, got)

			pools, err := tx.Pools(ctx, pairAddr)
			require.NoError(t, err)
			require.Len(t, pools, 2)
			require.Equal(t, second, pools[0])
			require.Equal(t, first, pools[1])

			gotOrder, err := tx.Order(ctx, order.Address)
			require.NoError(t, err)
			require.Equal(t, order, gotOrder)

			gotQuote, err := tx.Quote(ctx, quote.Account)
			require.NoError(t, err)
			require.Equal(t, quote, gotQuote)
			return nil
		}))

		require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
			require.NoError(t, tx.DeletePool(ctx, second.Address))
			return tx.DeleteOrder(ctx, order.Address)
		}))
		require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
			pools, err := tx.Pools(ctx, pairAddr)
			require.NoError(t, err)
			require.Len(t, pools, 1)
			gotOrder, err := tx.Order(ctx, order.Address)
			require.NoError(t, err)
			require.Nil(t, gotOrder)
			return nil
		}))
	})

	t.Run("failed update rolls back", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		boom := errors.New("boom")
		err := store.Update(ctx, func(tx storage.Tx) error {
			require.NoError(t, tx.SavePool(ctx, newPool(300, 0)))
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
			pools, err := tx.Pools(ctx, pairAddr)
			require.NoError(t, err)
			require.Empty(t, pools)
			return nil
		}))
	})

	t.Run("returned records are copies", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		p := newPool(300, 0)
		require.NoError(t, store.Update(ctx, func(tx storage.Tx) error { return tx.SavePool(ctx, p) }))
		p.SellSide.SourceBalance = 7
		require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
			got, err := tx.Pool(ctx, p.Address)
			require.NoError(t, err)
			require.Zero(t, got.SellSide.SourceBalance)
			return nil
		}))
	})
}

func newPool(tif uint32, counter uint64) *model.Pool {
	return &model.Pool{
		Address:        pairPoolAddress(tif, counter),
		TokenPair:      pairAddr,
		Status:         model.PoolActive,
		TimeInForce:    tif,
		ExpirationTime: int64(tif) * int64(counter+1),
		Counter:        counter,
	}
}

func pairPoolAddress(tif uint32, counter uint64) common.Address {
	tp := pair.TokenPair{}
	tp.ConfigA.Custody = custodyA
	tp.ConfigB.Custody = custodyB
	return tp.PoolAddress(tif, counter)
}
