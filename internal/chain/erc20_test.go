package chain

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	responses map[string][]byte
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	resp, ok := f.responses[method.Name]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return resp, nil
}

func packOutputs(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()
	parsed, err := erc20ABIInstance()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return out
}

func TestTokenDecimals(t *testing.T) {
	caller := &fakeCaller{responses: map[string][]byte{
		"decimals": packOutputs(t, "decimals", uint8(9)),
	}}
	got, err := TokenDecimals(context.Background(), caller, common.HexToAddress("0x01"))
	if err != nil {
		t.Fatalf("decimals: %v", err)
	}
	if got != 9 {
		t.Fatalf("decimals mismatch: %d", got)
	}
}

func TestBalanceOf(t *testing.T) {
	caller := &fakeCaller{responses: map[string][]byte{
		"balanceOf": packOutputs(t, "balanceOf", big.NewInt(123456)),
	}}
	got, err := BalanceOf(context.Background(), caller, common.HexToAddress("0x01"), common.HexToAddress("0x02"))
	if err != nil {
		t.Fatalf("balanceOf: %v", err)
	}
	if got != 123456 {
		t.Fatalf("balance mismatch: %d", got)
	}

	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	caller.responses["balanceOf"] = packOutputs(t, "balanceOf", huge)
	if _, err := BalanceOf(context.Background(), caller, common.HexToAddress("0x01"), common.HexToAddress("0x02")); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestCallPropagatesRevert(t *testing.T) {
	caller := &fakeCaller{responses: map[string][]byte{}}
	if _, err := TokenDecimals(context.Background(), caller, common.HexToAddress("0x01")); err == nil {
		t.Fatalf("expected call error")
	}
	if _, err := TokenDecimals(context.Background(), nil, common.HexToAddress("0x01")); err == nil {
		t.Fatalf("expected nil client error")
	}
}
