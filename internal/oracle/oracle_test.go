package oracle

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"twammEngine/internal/errs"
	"twammEngine/internal/model"
	"twammEngine/internal/price"
)

var (
	accountA = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	accountB = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

type memQuotes map[common.Address]*model.OracleQuote

func (m memQuotes) Quote(_ context.Context, account common.Address) (*model.OracleQuote, error) {
	return m[account], nil
}

func testConfig(account common.Address) model.TokenConfig {
	return model.TokenConfig{
		OracleType:           model.OracleTest,
		OracleAccount:        account,
		MaxOraclePriceError:  0.01,
		MaxOraclePriceAgeSec: 60,
	}
}

func TestValidate(t *testing.T) {
	cfg := testConfig(accountA)
	ok := Quote{Price: price.New(3000, -2), Confidence: 10, PublishTime: 100}
	require.NoError(t, Validate(ok, cfg, 160))

	require.ErrorIs(t, Validate(ok, cfg, 161), errs.ErrStaleOraclePrice)

	wide := ok
	wide.Confidence = 31
	require.ErrorIs(t, Validate(wide, cfg, 100), errs.ErrInvalidOraclePrice)

	require.ErrorIs(t, Validate(Quote{PublishTime: 100}, cfg, 100), errs.ErrInvalidOraclePrice)
}

func TestRegistryPairPrice(t *testing.T) {
	quotes := memQuotes{
		accountA: {Account: accountA, Price: 4004, Exponent: -10, PublishTime: 50},
		accountB: {Account: accountB, Price: 100001000, Exponent: -8, PublishTime: 50},
	}
	reg := NewRegistry(WithSource(model.OracleTest, NewTestSource(quotes)))

	pair, a, b, err := reg.PairPrice(context.Background(), testConfig(accountA), testConfig(accountB), 60)
	require.NoError(t, err)
	require.Equal(t, price.New(40039, -11), pair)
	require.Equal(t, price.New(4004, -10), a)
	require.Equal(t, price.New(100001000, -8), b)
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry(WithSource(model.OracleTest, NewTestSource(memQuotes{})))
	ctx := context.Background()

	_, err := reg.Price(ctx, model.TokenConfig{}, 0)
	require.ErrorIs(t, err, errs.ErrUnsupportedOracle)

	_, err = reg.Price(ctx, model.TokenConfig{OracleType: model.OracleChainlink, OracleAccount: accountA}, 0)
	require.ErrorIs(t, err, errs.ErrUnsupportedOracle)

	_, err = reg.Price(ctx, model.TokenConfig{OracleType: model.OracleTest}, 0)
	require.ErrorIs(t, err, errs.ErrInvalidOracleAccount)

	_, err = reg.Price(ctx, testConfig(accountA), 0)
	require.ErrorIs(t, err, errs.ErrInvalidOracleAccount)
}

type feedCaller struct {
	answer    *big.Int
	updatedAt int64
	calls     map[string]int
}

func (f *feedCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := aggregatorABIInstance()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	f.calls[method.Name]++
	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(uint8(8))
	case "latestRoundData":
		return method.Outputs.Pack(big.NewInt(7), f.answer, big.NewInt(f.updatedAt), big.NewInt(f.updatedAt), big.NewInt(7))
	}
	return nil, fmt.Errorf("unexpected method %s", method.Name)
}

func TestChainlinkSource(t *testing.T) {
	caller := &feedCaller{answer: big.NewInt(185012345678), updatedAt: 1_700_000_000, calls: map[string]int{}}
	src := NewChainlinkSource(caller)

	q, err := src.Fetch(context.Background(), accountA)
	require.NoError(t, err)
	require.Equal(t, price.New(185012345678, -8), q.Price)
	require.Equal(t, int64(1_700_000_000), q.PublishTime)
	require.Zero(t, q.Confidence)

	_, err = src.Fetch(context.Background(), accountA)
	require.NoError(t, err)
	require.Equal(t, 1, caller.calls["decimals"])
	require.Equal(t, 2, caller.calls["latestRoundData"])

	caller.answer = big.NewInt(-1)
	_, err = src.Fetch(context.Background(), accountA)
	require.ErrorIs(t, err, errs.ErrInvalidOraclePrice)
}
