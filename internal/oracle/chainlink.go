package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"twammEngine/internal/chain"
	"twammEngine/internal/errs"
	"twammEngine/internal/price"
)

const aggregatorABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "latestRoundData", "outputs": [
    {"name": "roundId", "type": "uint80"},
    {"name": "answer", "type": "int256"},
    {"name": "startedAt", "type": "uint256"},
    {"name": "updatedAt", "type": "uint256"},
    {"name": "answeredInRound", "type": "uint80"}
  ], "stateMutability": "view", "type": "function"}
]`

var (
	aggregatorABI     abi.ABI
	aggregatorABIOnce sync.Once
	aggregatorABIErr  error
)

func aggregatorABIInstance() (abi.ABI, error) {
	aggregatorABIOnce.Do(func() {
		aggregatorABI, aggregatorABIErr = abi.JSON(strings.NewReader(aggregatorABIJSON))
	})
	return aggregatorABI, aggregatorABIErr
}

// ChainlinkSource reads aggregator feeds over RPC. Feeds carry no
// confidence interval, so quotes report zero confidence.
type ChainlinkSource struct {
	caller chain.Caller

	mu       sync.Mutex
	decimals map[common.Address]uint8
}

// NewChainlinkSource wraps a chain caller.
func NewChainlinkSource(caller chain.Caller) *ChainlinkSource {
	return &ChainlinkSource{caller: caller, decimals: make(map[common.Address]uint8)}
}

func (s *ChainlinkSource) Name() string { return "chainlink" }

func (s *ChainlinkSource) Fetch(ctx context.Context, account common.Address) (Quote, error) {
	parsed, err := aggregatorABIInstance()
	if err != nil {
		return Quote{}, fmt.Errorf("parse aggregator abi: %w", err)
	}
	decimals, err := s.feedDecimals(ctx, parsed, account)
	if err != nil {
		return Quote{}, err
	}
	values, err := chain.Call(ctx, s.caller, parsed, account, "latestRoundData")
	if err != nil {
		return Quote{}, err
	}
	if len(values) != 5 {
		return Quote{}, fmt.Errorf("%w: latestRoundData return size %d", errs.ErrInvalidOracleState, len(values))
	}
	answer, ok := values[1].(*big.Int)
	if !ok {
		return Quote{}, fmt.Errorf("%w: answer type %T", errs.ErrInvalidOracleState, values[1])
	}
	updatedAt, ok := values[3].(*big.Int)
	if !ok {
		return Quote{}, fmt.Errorf("%w: updatedAt type %T", errs.ErrInvalidOracleState, values[3])
	}
	if answer.Sign() <= 0 || !answer.IsUint64() {
		return Quote{}, fmt.Errorf("%w: answer %s", errs.ErrInvalidOraclePrice, answer.String())
	}
	if !updatedAt.IsInt64() {
		return Quote{}, fmt.Errorf("%w: updatedAt %s", errs.ErrInvalidOracleState, updatedAt.String())
	}
	return Quote{
		Price:       price.New(answer.Uint64(), -int32(decimals)),
		PublishTime: updatedAt.Int64(),
	}, nil
}

func (s *ChainlinkSource) feedDecimals(ctx context.Context, parsed abi.ABI, account common.Address) (uint8, error) {
	s.mu.Lock()
	d, ok := s.decimals[account]
	s.mu.Unlock()
	if ok {
		return d, nil
	}
	values, err := chain.Call(ctx, s.caller, parsed, account, "decimals")
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("%w: decimals return size %d", errs.ErrInvalidOracleState, len(values))
	}
	d, ok = values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: decimals type %T", errs.ErrInvalidOracleState, values[0])
	}
	s.mu.Lock()
	s.decimals[account] = d
	s.mu.Unlock()
	return d, nil
}
