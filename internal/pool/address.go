package pool

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"twammEngine/internal/model"
)

var (
	poolSeed  = []byte("pool")
	orderSeed = []byte("order")
)

// Address derives the address of the pool for a tenor and rotation counter.
func Address(custodyA, custodyB common.Address, timeInForce uint32, counter uint64) common.Address {
	tif := make([]byte, 4)
	binary.LittleEndian.PutUint32(tif, timeInForce)
	ctr := make([]byte, 8)
	binary.LittleEndian.PutUint64(ctr, counter)
	return common.BytesToAddress(crypto.Keccak256(poolSeed, custodyA.Bytes(), custodyB.Bytes(), tif, ctr))
}

// OrderAddress derives the address of an owner's order in a pool.
func OrderAddress(owner, pool common.Address) common.Address {
	return common.BytesToAddress(crypto.Keccak256(orderSeed, owner.Bytes(), pool.Bytes()))
}

// New returns an active, empty pool for a tenor and counter.
func New(pair, custodyA, custodyB common.Address, timeInForce uint32, counter uint64, expiration int64) *model.Pool {
	return &model.Pool{
		Address:        Address(custodyA, custodyB, timeInForce, counter),
		TokenPair:      pair,
		Status:         model.PoolActive,
		TimeInForce:    timeInForce,
		ExpirationTime: expiration,
		Counter:        counter,
	}
}
