package evm

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SharedContextSize is the length of the header a WASM contract finds in front
// of its calldata.
const SharedContextSize = 380

type BlockContext struct {
	ChainID    uint64
	Coinbase   common.Address
	Timestamp  uint64
	Number     uint64
	Difficulty *uint256.Int
	PrevRandao common.Hash
	GasLimit   uint64
	BaseFee    *uint256.Int
}

type TxContext struct {
	GasLimit       uint64
	Nonce          uint64
	GasPrice       *uint256.Int
	GasPriorityFee *uint256.Int
	Origin         common.Address
	Value          *uint256.Int
}

type ContractContext struct {
	Address         common.Address
	BytecodeAddress common.Address
	Caller          common.Address
	Value           *uint256.Int
	GasLimit        uint64
}

// SharedContext is the execution environment handed to WASM contracts. The
// encoding is fixed-width big-endian: block (148), tx (132), contract (100).
type SharedContext struct {
	Block    BlockContext
	Tx       TxContext
	Contract ContractContext
}

func (c *SharedContext) Encode() []byte {
	buf := make([]byte, 0, SharedContextSize)

	buf = binary.BigEndian.AppendUint64(buf, c.Block.ChainID)
	buf = append(buf, c.Block.Coinbase.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, c.Block.Timestamp)
	buf = binary.BigEndian.AppendUint64(buf, c.Block.Number)
	buf = appendWord(buf, c.Block.Difficulty)
	buf = append(buf, c.Block.PrevRandao.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, c.Block.GasLimit)
	buf = appendWord(buf, c.Block.BaseFee)

	buf = binary.BigEndian.AppendUint64(buf, c.Tx.GasLimit)
	buf = binary.BigEndian.AppendUint64(buf, c.Tx.Nonce)
	buf = appendWord(buf, c.Tx.GasPrice)
	buf = appendWord(buf, c.Tx.GasPriorityFee)
	buf = append(buf, c.Tx.Origin.Bytes()...)
	buf = appendWord(buf, c.Tx.Value)

	buf = append(buf, c.Contract.Address.Bytes()...)
	buf = append(buf, c.Contract.BytecodeAddress.Bytes()...)
	buf = append(buf, c.Contract.Caller.Bytes()...)
	buf = appendWord(buf, c.Contract.Value)
	buf = binary.BigEndian.AppendUint64(buf, c.Contract.GasLimit)

	return buf
}

// Input builds the contract input buffer: header followed by calldata.
func (c *SharedContext) Input(calldata []byte) []byte {
	return append(c.Encode(), calldata...)
}

func appendWord(buf []byte, v *uint256.Int) []byte {
	if v == nil {
		return append(buf, make([]byte, 32)...)
	}
	word := v.Bytes32()
	return append(buf, word[:]...)
}
