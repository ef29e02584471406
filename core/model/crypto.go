package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

func keccak(chunks ...[]byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		hasher.Write(c)
	}
	return hasher.Sum(nil)
}

// RedemptionID hashes the packed (sender, receiver, amount, timestamp,
// position) tuple. position is the lifetime enqueue counter of the queue, so
// two requests with equal fields in the same second still get distinct ids.
func RedemptionID(sender, receiver common.Address, amount *big.Int, timestamp uint64, position uint64) common.Hash {
	return common.BytesToHash(keccak(
		sender.Bytes(),
		receiver.Bytes(),
		common.LeftPadBytes(amount.Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(timestamp).Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(position).Bytes(), 32),
	))
}
