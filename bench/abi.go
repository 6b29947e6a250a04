package bench

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// MethodSelector is the 4-byte keccak selector of a method signature such as
// "transfer(address,uint256)".
func MethodSelector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// EncodeStrings ABI-encodes the values as a (string, string, ...) argument list.
func EncodeStrings(values ...string) ([]byte, error) {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		return nil, err
	}
	args := make(abi.Arguments, len(values))
	packed := make([]interface{}, len(values))
	for i, value := range values {
		args[i] = abi.Argument{Type: stringType}
		packed[i] = value
	}
	return args.Pack(packed...)
}
