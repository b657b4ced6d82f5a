package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"twammEngine/internal/errs"
	"twammEngine/internal/model"
	"twammEngine/internal/pair"
	"twammEngine/internal/pool"
	"twammEngine/internal/storage"
)

var (
	mintA    = common.HexToAddress("0xa0")
	mintB    = common.HexToAddress("0xb0")
	custodyA = common.HexToAddress("0xac")
	custodyB = common.HexToAddress("0xbc")
	alice    = common.HexToAddress("0x01")
	bob      = common.HexToAddress("0x02")
	keeper   = common.HexToAddress("0x03")
	venue    = common.HexToAddress("0x04")
)

func testParams() pair.InitParams {
	return pair.InitParams{
		Permissions: pair.Permissions{AllowDeposits: true, AllowWithdrawals: true, AllowCranks: true, AllowSettlements: true},
		Fees: pair.Fees{
			FeeNumerator: 1, FeeDenominator: 1000,
			SettleFeeNumerator: 1, SettleFeeDenominator: 500,
			CrankRewardA: 100, CrankRewardB: 200,
		},
		Limits: pair.Limits{MinSwapAmountA: 10, MinSwapAmountB: 10, MaxSwapPriceDiff: 0.1, MaxUnsettledAmount: 0.1, MinTimeTillExpiration: 0.05},
		OracleA: pair.OracleSettings{MaxPriceError: 0.01, MaxPriceAgeSec: 60, Type: model.OracleTest,
			Account: common.HexToAddress("0xa1")},
		OracleB: pair.OracleSettings{MaxPriceError: 0.01, MaxPriceAgeSec: 60, Type: model.OracleTest,
			Account: common.HexToAddress("0xb1")},
		TimeInForce: [pool.MaxPools]uint32{300, 900},
		TokenA:      pair.Token{Mint: mintA, Custody: custodyA, Decimals: 6},
		TokenB:      pair.Token{Mint: mintB, Custody: custodyB, Decimals: 6},
	}
}

type harness struct {
	svc       *Service
	clock     *FixedClock
	store     *storage.SnapshotStore
	transfers *storage.MemoryTransfers
	pair      common.Address
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock:     NewFixedClock(1000),
		store:     storage.NewMemoryStore(),
		transfers: &storage.MemoryTransfers{},
	}
	opts = append([]Option{WithClock(h.clock), WithTransfers(h.transfers)}, opts...)
	h.svc = New(h.store, opts...)
	tp, err := h.svc.InitTokenPair(context.Background(), testParams())
	require.NoError(t, err)
	h.pair = tp.Address
	h.setPrice(t)
	return h
}

// setPrice publishes A at 2 USD and B at 1 USD at the current time.
func (h *harness) setPrice(t *testing.T) {
	t.Helper()
	now, _ := h.clock.Now(context.Background())
	err := h.svc.SetTestOraclePrice(context.Background(), h.pair,
		TestQuote{Price: 2, PublishTime: now},
		TestQuote{Price: 1, PublishTime: now})
	require.NoError(t, err)
}

func (h *harness) advance(t *testing.T, to int64) {
	t.Helper()
	h.clock.Set(to)
	h.setPrice(t)
}

func (h *harness) place(t *testing.T, owner common.Address, side model.OrderSide, amount uint64) PlaceOrderResult {
	t.Helper()
	res, err := h.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Pair: h.pair, Owner: owner, Side: side, TimeInForce: 300, Amount: amount,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) tokenPair(t *testing.T) *pair.TokenPair {
	t.Helper()
	tp, err := h.svc.Pair(context.Background(), h.pair)
	require.NoError(t, err)
	return tp
}

func (h *harness) transfersFor(reason string) []model.TransferRecord {
	var out []model.TransferRecord
	for _, r := range h.transfers.Records() {
		if r.Reason == reason {
			out = append(out, r)
		}
	}
	return out
}

func TestPlaceOrderCreatesPoolAndOrder(t *testing.T) {
	h := newHarness(t)
	res := h.place(t, alice, model.OrderSell, 1000)

	require.Equal(t, uint64(1000), res.Deposit.LPMinted)
	require.True(t, res.Deposit.NewOrder)
	require.Equal(t, int64(1300), res.Pool.ExpirationTime)
	require.Equal(t, uint64(1000), res.Pool.SellSide.SourceBalance)
	require.Equal(t, alice, res.Order.Owner)

	tp := h.tokenPair(t)
	require.True(t, tp.Pools.CurrentPresent[0])
	require.Equal(t, tp.PoolAddress(300, 0), res.Pool.Address)

	deposits := h.transfersFor("deposit")
	require.Len(t, deposits, 1)
	require.Equal(t, mintA, deposits[0].Token)
	require.Equal(t, alice, deposits[0].From)
	require.Equal(t, custodyA, deposits[0].To)
	require.Equal(t, uint64(1000), deposits[0].Amount)
	require.NotEmpty(t, deposits[0].ID)

	again := h.place(t, alice, model.OrderSell, 500)
	require.False(t, again.Deposit.NewOrder)
	require.Equal(t, uint64(1500), again.Order.LPBalance)
	require.Equal(t, uint64(1), again.Pool.SellSide.NumTraders)
}

func TestPlaceOrderIntoNextPool(t *testing.T) {
	h := newHarness(t)
	next := h.tokenPair(t).PoolAddress(300, 1)

	res, err := h.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Pair: h.pair, Owner: bob, Side: model.OrderBuy, TimeInForce: 300, Amount: 700, Pool: next,
	})
	require.NoError(t, err)
	require.Equal(t, next, res.Pool.Address)
	require.Equal(t, int64(1600), res.Pool.ExpirationTime)
	require.Equal(t, uint64(700), res.Pool.BuySide.SourceBalance)

	tp := h.tokenPair(t)
	require.True(t, tp.Pools.CurrentPresent[0])
	require.True(t, tp.Pools.FuturePresent[0])

	pools, err := h.svc.Pools(context.Background(), h.pair)
	require.NoError(t, err)
	require.Len(t, pools, 2)
	require.Equal(t, uint64(0), pools[0].Counter)
	require.Equal(t, uint64(1), pools[1].Counter)
}

func TestPlaceOrderRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := PlaceOrderRequest{Pair: h.pair, Owner: alice, Side: model.OrderSell, TimeInForce: 300, Amount: 100}

	bad := req
	bad.Amount = 0
	_, err := h.svc.PlaceOrder(ctx, bad)
	require.ErrorIs(t, err, errs.ErrInvalidTokenAmount)

	bad = req
	bad.TimeInForce = 301
	_, err = h.svc.PlaceOrder(ctx, bad)
	require.ErrorIs(t, err, errs.ErrInvalidTimeInForce)

	bad = req
	bad.Pool = h.tokenPair(t).PoolAddress(300, 2)
	_, err = h.svc.PlaceOrder(ctx, bad)
	require.ErrorIs(t, err, errs.ErrInvalidPoolAddress)

	bad = req
	bad.Pair = common.HexToAddress("0xdead")
	_, err = h.svc.PlaceOrder(ctx, bad)
	require.ErrorIs(t, err, ErrPairNotFound)

	_, err = h.svc.PlaceOrder(ctx, req)
	require.NoError(t, err)
	bad = req
	bad.Side = model.OrderBuy
	_, err = h.svc.PlaceOrder(ctx, bad)
	require.ErrorIs(t, err, errs.ErrOrderSideMismatch)

	h.advance(t, 1290)
	_, err = h.svc.PlaceOrder(ctx, req)
	require.ErrorIs(t, err, errs.ErrLockedPool)

	_, err = h.svc.SetPermissions(ctx, h.pair, pair.Permissions{AllowWithdrawals: true, AllowCranks: true, AllowSettlements: true})
	require.NoError(t, err)
	_, err = h.svc.PlaceOrder(ctx, req)
	require.ErrorIs(t, err, errs.ErrDepositsNotAllowed)

	require.Len(t, h.transfersFor("deposit"), 1)
}

func TestGetOutstandingAmount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	amount, err := h.svc.GetOutstandingAmount(ctx, h.pair)
	require.NoError(t, err)
	require.Zero(t, amount)

	h.place(t, alice, model.OrderSell, 1000)
	h.advance(t, 1001)
	amount, err = h.svc.GetOutstandingAmount(ctx, h.pair)
	require.NoError(t, err)
	require.Zero(t, amount, "residual below the minimum swap size")

	h.advance(t, 1150)
	amount, err = h.svc.GetOutstandingAmount(ctx, h.pair)
	require.NoError(t, err)
	require.Equal(t, int64(-555), amount)

	// The query does not persist the internal settlement.
	pools, err := h.svc.Pools(ctx, h.pair)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), pools[0].SellSide.SourceBalance)
	require.Equal(t, int64(1000), pools[0].SellSide.LastBalanceChangeTime)
}

func TestSettleSuppliesResidual(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.place(t, alice, model.OrderSell, 1000)
	h.advance(t, 1150)

	res, err := h.svc.Settle(ctx, SettleRequest{
		Pair: h.pair, Caller: bob, SupplySide: model.MatchingBuy,
		MaxTokenAmountIn: 2000, WorstExchangeRate: 900,
	})
	require.NoError(t, err)
	require.Equal(t, model.MatchingSell, res.Settlement.SettlementSide)
	require.Equal(t, uint64(555), res.Settlement.NetAmountSettled)
	require.Equal(t, uint64(1110), res.AmountIn)
	require.Equal(t, uint64(1), res.Fee)
	require.Equal(t, uint64(554), res.AmountOut)
	require.Equal(t, int64(-555), res.NetRequired)

	settles := h.transfersFor("settle")
	require.Len(t, settles, 2)
	require.Equal(t, model.TransferRecord{Pair: h.pair, Token: mintB, From: bob, To: custodyB, Amount: 1110, Reason: "settle", Timestamp: 1150},
		withoutID(settles[0]))
	require.Equal(t, model.TransferRecord{Pair: h.pair, Token: mintA, From: custodyA, To: bob, Amount: 554, Reason: "settle", Timestamp: 1150},
		withoutID(settles[1]))

	tp := h.tokenPair(t)
	require.Equal(t, uint64(1), tp.StatsA.FeesCollected)
	require.Equal(t, uint64(1110), tp.StatsA.SettledVolumeUSD)

	pools, err := h.svc.Pools(ctx, h.pair)
	require.NoError(t, err)
	require.Equal(t, uint64(445), pools[0].SellSide.SourceBalance)
	require.Equal(t, uint64(1110), pools[0].SellSide.TargetBalance)

	amount, err := h.svc.GetOutstandingAmount(ctx, h.pair)
	require.NoError(t, err)
	require.Zero(t, amount)
}

func withoutID(r model.TransferRecord) model.TransferRecord {
	r.ID = ""
	return r
}

func TestSettleRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := SettleRequest{Pair: h.pair, Caller: bob, SupplySide: model.MatchingBuy, MaxTokenAmountIn: 2000, WorstExchangeRate: 900}

	_, err := h.svc.Settle(ctx, req)
	require.ErrorIs(t, err, errs.ErrNothingToSettle)

	h.place(t, alice, model.OrderSell, 1000)
	h.advance(t, 1150)

	bad := req
	bad.MaxTokenAmountIn = 0
	_, err = h.svc.Settle(ctx, bad)
	require.ErrorIs(t, err, errs.ErrInvalidTokenAmount)

	bad = req
	bad.SupplySide = model.MatchingInternal
	_, err = h.svc.Settle(ctx, bad)
	require.ErrorIs(t, err, errs.ErrInvalidSettlementSide)

	bad = req
	bad.SupplySide = model.MatchingSell
	bad.WorstExchangeRate = 0
	_, err = h.svc.Settle(ctx, bad)
	require.ErrorIs(t, err, errs.ErrInvalidSettlementSide)

	bad = req
	bad.WorstExchangeRate = 1001
	_, err = h.svc.Settle(ctx, bad)
	require.ErrorIs(t, err, errs.ErrMaxSlippage)

	bad = req
	bad.MinTokenAmountIn = 1500
	_, err = h.svc.Settle(ctx, bad)
	require.ErrorIs(t, err, errs.ErrSettlementAmountTooSmall)

	h.clock.Set(1300)
	_, err = h.svc.Settle(ctx, req)
	require.ErrorIs(t, err, errs.ErrStaleOraclePrice)

	_, err = h.svc.SetPermissions(ctx, h.pair, pair.Permissions{AllowDeposits: true})
	require.NoError(t, err)
	_, err = h.svc.Settle(ctx, req)
	require.ErrorIs(t, err, errs.ErrSettlementsNotAllowed)

	require.Empty(t, h.transfersFor("settle"))
	pools, err := h.svc.Pools(ctx, h.pair)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), pools[0].SellSide.SourceBalance)
}

func TestCancelOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	placed := h.place(t, alice, model.OrderSell, 1000)
	h.advance(t, 1150)
	_, err := h.svc.Settle(ctx, SettleRequest{Pair: h.pair, Caller: bob, SupplySide: model.MatchingBuy, MaxTokenAmountIn: 2000})
	require.NoError(t, err)

	req := CancelOrderRequest{Pair: h.pair, Caller: bob, Order: placed.Order.Address, LPAmount: 1000}
	_, err = h.svc.CancelOrder(ctx, req)
	require.ErrorIs(t, err, errs.ErrIllegalOwner)

	req.Caller = alice
	req.LPAmount = 0
	_, err = h.svc.CancelOrder(ctx, req)
	require.ErrorIs(t, err, errs.ErrInvalidTokenAmount)

	req.LPAmount = 5000
	res, err := h.svc.CancelOrder(ctx, req)
	require.NoError(t, err)
	require.True(t, res.Closed)
	require.False(t, res.PoolClosed)
	require.Equal(t, uint64(445), res.AmountA)
	require.Equal(t, uint64(1108), res.AmountB)
	require.Equal(t, uint64(2), res.Withdrawal.Fee)

	tp := h.tokenPair(t)
	require.Equal(t, uint64(2), tp.StatsB.FeesCollected)
	require.Equal(t, uint64(1), tp.StatsA.FeesCollected)

	_, err = h.svc.Order(ctx, placed.Order.Address)
	require.ErrorIs(t, err, ErrOrderNotFound)
	require.Len(t, h.transfersFor("withdraw"), 2)

	pools, err := h.svc.Pools(ctx, h.pair)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.True(t, pool.IsEmpty(pools[0]))
}

func TestCrankRoutesResidualAndFinalizes(t *testing.T) {
	h := newHarness(t, WithRouter(OracleRouter{Venue: venue}))
	ctx := context.Background()
	placed := h.place(t, alice, model.OrderSell, 1000)
	h.advance(t, 1150)
	_, err := h.svc.Settle(ctx, SettleRequest{Pair: h.pair, Caller: bob, SupplySide: model.MatchingBuy, MaxTokenAmountIn: 2000})
	require.NoError(t, err)

	h.advance(t, 1200)
	res, err := h.svc.Crank(ctx, CrankRequest{Pair: h.pair, Caller: keeper})
	require.NoError(t, err)
	require.True(t, res.Routed)
	require.Equal(t, model.MatchingSell, res.Settlement.SettlementSide)
	require.Equal(t, uint64(185), res.Settlement.NetAmountSettled)
	require.Equal(t, uint64(370), res.Settlement.SourceAmountReceived)
	require.Zero(t, res.Unsettled)
	require.Equal(t, uint64(1), res.RewardA)
	require.Zero(t, res.RewardB)

	routes := h.transfersFor("route")
	require.Len(t, routes, 2)
	require.Equal(t, custodyA, routes[0].From)
	require.Equal(t, venue, routes[0].To)
	require.Equal(t, uint64(185), routes[0].Amount)
	require.Equal(t, venue, routes[1].From)
	require.Equal(t, custodyB, routes[1].To)
	require.Equal(t, uint64(370), routes[1].Amount)
	rewards := h.transfersFor("crank_reward")
	require.Len(t, rewards, 1)
	require.Equal(t, keeper, rewards[0].To)

	tp := h.tokenPair(t)
	require.Zero(t, tp.StatsA.FeesCollected)
	require.Equal(t, uint64(370), tp.StatsA.RoutedVolumeUSD)

	// After expiry the rest is routed, the drained pool is finalized and its
	// proceeds become pending withdrawals.
	h.advance(t, 1400)
	res, err = h.svc.Crank(ctx, CrankRequest{Pair: h.pair, Caller: keeper})
	require.NoError(t, err)
	require.True(t, res.Routed)
	require.Equal(t, uint64(260), res.Settlement.NetAmountSettled)
	require.Zero(t, res.RewardA)
	tp = h.tokenPair(t)
	require.False(t, tp.Pools.CurrentPresent[0])
	require.Equal(t, uint64(1), tp.Pools.Counters[0])
	require.Zero(t, tp.StatsA.PendingWithdrawals)
	require.Equal(t, uint64(2000), tp.StatsB.PendingWithdrawals)

	_, err = h.svc.Crank(ctx, CrankRequest{Pair: h.pair, Caller: keeper})
	require.ErrorIs(t, err, errs.ErrNothingToSettle)

	// Anyone may close out an order of a completed pool.
	cancel, err := h.svc.CancelOrder(ctx, CancelOrderRequest{Pair: h.pair, Caller: keeper, Order: placed.Order.Address, LPAmount: 1})
	require.NoError(t, err)
	require.True(t, cancel.Closed)
	require.True(t, cancel.PoolClosed)
	require.Zero(t, cancel.AmountA)
	require.Equal(t, uint64(1998), cancel.AmountB)
	for _, r := range h.transfersFor("withdraw") {
		require.Equal(t, alice, r.To)
	}

	tp = h.tokenPair(t)
	require.Zero(t, tp.StatsA.PendingWithdrawals)
	require.Zero(t, tp.StatsB.PendingWithdrawals)
	pools, err := h.svc.Pools(ctx, h.pair)
	require.NoError(t, err)
	require.Empty(t, pools)
}

type routeFunc func(ctx context.Context, req RouteRequest) (RouteResult, error)

func (f routeFunc) Route(ctx context.Context, req RouteRequest) (RouteResult, error) {
	return f(ctx, req)
}

func TestCrankRoutedSwapSettlesWholeResidual(t *testing.T) {
	// 1e8 B for 49000001 A truncates to a swap price of 2.040816, at which the
	// A returned converts to less than the B swapped out.
	router := routeFunc(func(_ context.Context, req RouteRequest) (RouteResult, error) {
		require.False(t, req.SellA)
		return RouteResult{Venue: venue, AmountIn: req.AmountIn, AmountOut: 49_000_001}, nil
	})
	h := newHarness(t, WithRouter(router))
	ctx := context.Background()
	h.place(t, bob, model.OrderBuy, 100_000_000)
	h.advance(t, 1400)

	res, err := h.svc.Crank(ctx, CrankRequest{Pair: h.pair, Caller: keeper})
	require.NoError(t, err)
	require.True(t, res.Routed)
	require.Equal(t, model.MatchingBuy, res.Settlement.SettlementSide)
	require.Equal(t, uint64(100_000_000), res.Settlement.NetAmountSettled)
	require.Equal(t, uint64(49_000_001), res.Settlement.SourceAmountReceived)

	tp := h.tokenPair(t)
	require.False(t, tp.Pools.CurrentPresent[0])
	require.Equal(t, uint64(49_000_001), tp.StatsA.PendingWithdrawals)
	require.Zero(t, tp.StatsB.PendingWithdrawals)
}

func TestCrankRejectsSwapPriceOutOfBounds(t *testing.T) {
	h := newHarness(t, WithRouter(OracleRouter{Venue: venue, SlippageBps: 2000}))
	ctx := context.Background()
	h.place(t, alice, model.OrderSell, 1000)
	h.advance(t, 1150)

	_, err := h.svc.Crank(ctx, CrankRequest{Pair: h.pair, Caller: keeper})
	require.ErrorIs(t, err, errs.ErrSettlementPriceOutOfBounds)
	require.Empty(t, h.transfersFor("route"))

	pools, err := h.svc.Pools(ctx, h.pair)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), pools[0].SellSide.SourceBalance)
}

func TestCrankPermissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Crank(ctx, CrankRequest{Pair: h.pair, Caller: keeper})
	require.ErrorIs(t, err, errs.ErrNothingToSettle)

	_, err = h.svc.SetCrankAuthority(ctx, h.pair, keeper)
	require.NoError(t, err)
	_, err = h.svc.Crank(ctx, CrankRequest{Pair: h.pair, Caller: bob})
	require.ErrorIs(t, err, errs.ErrCranksNotAllowed)

	_, err = h.svc.SetPermissions(ctx, h.pair, pair.Permissions{AllowDeposits: true, AllowSettlements: true})
	require.NoError(t, err)
	_, err = h.svc.Crank(ctx, CrankRequest{Pair: h.pair, Caller: keeper})
	require.ErrorIs(t, err, errs.ErrCranksNotAllowed)
}

func TestCrankMatchesInternally(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.place(t, alice, model.OrderSell, 1000)
	h.place(t, bob, model.OrderBuy, 2000)
	h.advance(t, 1150)

	res, err := h.svc.Crank(ctx, CrankRequest{Pair: h.pair, Caller: keeper})
	require.NoError(t, err)
	require.False(t, res.Routed)
	require.Zero(t, res.Settlement.NetAmountSettled)
	require.Equal(t, uint64(555), res.Settlement.TotalAmountSettledA)

	pools, err := h.svc.Pools(ctx, h.pair)
	require.NoError(t, err)
	p := pools[0]
	require.Equal(t, uint64(445), p.SellSide.SourceBalance)
	require.Equal(t, uint64(1110), p.SellSide.TargetBalance)
	require.Equal(t, uint64(555), p.BuySide.TargetBalance)
}

func TestAdminOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.InitTokenPair(ctx, testParams())
	require.ErrorIs(t, err, pair.ErrAlreadyInitialized)

	_, err = h.svc.SetFees(ctx, h.pair, pair.Fees{FeeNumerator: 5, FeeDenominator: 5, SettleFeeDenominator: 1})
	require.ErrorIs(t, err, errs.ErrInvalidTokenPairConfig)
	require.Equal(t, uint64(1000), h.tokenPair(t).FeeDenominator)

	_, err = h.svc.SetLimits(ctx, h.pair, pair.Limits{MinSwapAmountA: 1, MinSwapAmountB: 1, MaxSwapPriceDiff: 0.5})
	require.NoError(t, err)
	require.Equal(t, 0.5, h.tokenPair(t).MaxSwapPriceDiff)

	h.place(t, alice, model.OrderSell, 100)
	_, err = h.svc.SetTimeInForce(ctx, h.pair, 0, 600)
	require.ErrorIs(t, err, errs.ErrInvalidPoolState)
	tp, err := h.svc.SetTimeInForce(ctx, h.pair, 5, 60)
	require.NoError(t, err)
	require.Equal(t, uint32(60), tp.Pools.TimeInForce[5])

	_, err = h.svc.WithdrawFees(ctx, h.pair, bob, 1, 0)
	require.ErrorIs(t, err, errs.ErrInvalidTokenAmount)

	oracleA := testParams().OracleA
	oracleA.Type = model.OracleChainlink
	_, err = h.svc.SetOracleConfig(ctx, h.pair, oracleA, testParams().OracleB)
	require.NoError(t, err)
	err = h.svc.SetTestOraclePrice(ctx, h.pair, TestQuote{Price: 1}, TestQuote{Price: 1})
	require.ErrorIs(t, err, errs.ErrInvalidEnvironment)
	_, err = h.svc.GetOutstandingAmount(ctx, h.pair)
	require.ErrorIs(t, err, errs.ErrUnsupportedOracle)
}

func TestWithdrawFees(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.place(t, alice, model.OrderSell, 1000)
	h.advance(t, 1150)
	_, err := h.svc.Settle(ctx, SettleRequest{Pair: h.pair, Caller: bob, SupplySide: model.MatchingBuy, MaxTokenAmountIn: 2000})
	require.NoError(t, err)

	tp, err := h.svc.WithdrawFees(ctx, h.pair, keeper, 1, 0)
	require.NoError(t, err)
	require.Zero(t, tp.StatsA.FeesCollected)

	out := h.transfersFor("withdraw_fees")
	require.Len(t, out, 1)
	require.Equal(t, custodyA, out[0].From)
	require.Equal(t, keeper, out[0].To)
}

func TestRewardScalesWithUnsettledFraction(t *testing.T) {
	require.Equal(t, uint64(100), reward(1000, 100, 0))
	require.Equal(t, uint64(75), reward(1000, 100, 0.25))
	require.Equal(t, uint64(40), reward(40, 100, 0))
	require.Zero(t, reward(1000, 100, 1))
	require.Zero(t, reward(1000, 100, 1.5))
	require.Zero(t, reward(1000, 100, math.NaN()))
	require.Equal(t, uint64(100), reward(1000, 100, -0.5))
	require.Equal(t, uint64(math.MaxUint64), reward(math.MaxUint64, math.MaxUint64, 0))
	require.Equal(t, uint64(1)<<63, reward(math.MaxUint64, math.MaxUint64, 0.5))

	tp := &pair.TokenPair{}
	tp.ConfigA.MinSwapAmount = 10
	res := model.Settlement{SettlementSide: model.MatchingSell, NetAmountRequired: 100, NetAmountSettled: 90}
	require.Zero(t, unsettledFraction(tp, res))
	res.NetAmountSettled = 50
	require.Equal(t, 0.5, unsettledFraction(tp, res))
	res = model.Settlement{SettlementSide: model.MatchingBuy, NetAmountRequired: 1}
	require.Zero(t, unsettledFraction(tp, res))
	res.NetAmountRequired = 2
	res.NetAmountSettled = 0
	require.Equal(t, 1.0, unsettledFraction(tp, res))
}

func TestOracleRouter(t *testing.T) {
	tp, err := pair.Init(testParams(), 0)
	require.NoError(t, err)
	req := RouteRequest{Pair: tp.Address, SellA: true, AmountIn: 1000, DecimalsA: 6, DecimalsB: 6}
	req.Price.Mantissa, req.Price.Exponent = 2, 0

	got, err := OracleRouter{Venue: venue, SlippageBps: 50}.Route(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, RouteResult{Venue: venue, AmountIn: 1000, AmountOut: 1990}, got)

	req.SellA = false
	got, err = OracleRouter{}.Route(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, uint64(500), got.AmountOut)

	_, err = OracleRouter{SlippageBps: 10_001}.Route(context.Background(), req)
	require.Error(t, err)
}

type brokenJournal struct{}

func (brokenJournal) Record(_ context.Context, records []model.TransferRecord) error {
	if len(records) == 0 {
		return nil
	}
	return errors.New("journal unavailable")
}

func TestJournalFailureKeepsCommittedOperation(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := newHarness(t, WithTransfers(brokenJournal{}), WithLogger(zap.New(core)))

	placed := h.place(t, alice, model.OrderSell, 1000)
	order, err := h.svc.Order(context.Background(), placed.Order.Address)
	require.NoError(t, err)
	require.Equal(t, placed.Order.LPBalance, order.LPBalance)

	entries := logs.FilterMessage("record transfers").All()
	require.Len(t, entries, 1)
	require.Equal(t, "place_order", entries[0].ContextMap()["op"])
}
