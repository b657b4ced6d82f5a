package oracle

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"twammEngine/internal/errs"
	"twammEngine/internal/model"
	"twammEngine/internal/price"
)

// QuoteReader loads stored test oracle quotes.
type QuoteReader interface {
	Quote(ctx context.Context, account common.Address) (*model.OracleQuote, error)
}

// TestSource serves admin-set prices from storage.
type TestSource struct {
	reader QuoteReader
}

// NewTestSource wraps a quote reader.
func NewTestSource(reader QuoteReader) *TestSource {
	return &TestSource{reader: reader}
}

func (s *TestSource) Name() string { return "test" }

func (s *TestSource) Fetch(ctx context.Context, account common.Address) (Quote, error) {
	q, err := s.reader.Quote(ctx, account)
	if err != nil {
		return Quote{}, err
	}
	if q == nil {
		return Quote{}, fmt.Errorf("%w: no quote for %s", errs.ErrInvalidOracleAccount, account.Hex())
	}
	return Quote{
		Price:       price.New(q.Price, q.Exponent),
		Confidence:  q.Confidence,
		PublishTime: q.PublishTime,
	}, nil
}
