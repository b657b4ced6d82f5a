package postgres

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"twammEngine/internal/model"
)

func TestNewStoreRequiresDSN(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestRowCodec(t *testing.T) {
	in := model.Pool{
		Address:     common.HexToAddress("0x01"),
		TokenPair:   common.HexToAddress("0x02"),
		Status:      model.PoolLocked,
		TimeInForce: 300,
		Counter:     18446744073709551615,
	}
	in.SellSide.MaxFillPrice = 1.25

	data, err := encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out model.Pool
	if err := decode(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
	if err := decode([]byte("{"), &out); err == nil {
		t.Fatalf("expected decode error")
	}
}
