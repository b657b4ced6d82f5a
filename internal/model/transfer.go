package model

import "github.com/ethereum/go-ethereum/common"

// TransferRecord describes a token movement between a custody and a participant.
type TransferRecord struct {
	ID        string         `json:"id"`
	Pair      common.Address `json:"pair"`
	Token     common.Address `json:"token"`
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Amount    uint64         `json:"amount"`
	Reason    string         `json:"reason"`
	Timestamp int64          `json:"timestamp"`
}
