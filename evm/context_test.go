package evm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGenesisFile(t *testing.T) {
	genesis := `{
		"config": {"chainId": 1337},
		"difficulty": "0x1",
		"gasLimit": "0x1c9c380",
		"coinbase": "0x000000000000000000000000000000000000c0de",
		"alloc": {
			"0x0000000000000000000000000000000000001111": {"balance": "0x64", "nonce": "0x2"},
			"0x0000000000000000000000000000000000002222": {"balance": "0x0", "code": "0x602a"}
		}
	}`
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(genesis), 0644))

	ctx, err := LoadGenesisFile(path, nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(1337), ctx.ChainConfig.ChainID.Uint64())
	assert.Equal(t, common.HexToAddress("0xc0de"), ctx.Coinbase)
	assert.Equal(t, uint256.NewInt(100), ctx.GetBalance(caller))
	assert.Equal(t, uint64(2), ctx.GetNonce(caller))
	assert.Equal(t, []byte{0x60, 0x2a}, ctx.State.GetCode(common.HexToAddress("0x2222")))
}

func TestLoadGenesisFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"config": {}}`), 0644))

	_, err := LoadGenesisFile(path, nil)
	assert.Error(t, err)

	_, err = LoadGenesisFile(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}

func TestAddBytecode(t *testing.T) {
	ctx := NewTestingContext()
	address := common.HexToAddress("0x3333")
	code := []byte{0x60, 0x01}

	info := ctx.AddBytecode(address, code)
	assert.Equal(t, crypto.Keccak256Hash(code), info.CodeHash)
	assert.Equal(t, uint64(0), info.Nonce)
	assert.True(t, info.Balance.IsZero())
	assert.Equal(t, code, ctx.State.GetCode(address))
}

func TestAddBalance(t *testing.T) {
	ctx := NewTestingContext()
	ctx.AddBalance(caller, uint256.NewInt(5))
	ctx.AddBalance(caller, uint256.NewInt(7))
	assert.Equal(t, uint256.NewInt(12), ctx.GetBalance(caller))
}

func TestDeployEvmTx(t *testing.T) {
	ctx := NewTestingContext()

	address := deploy(t, ctx, answerInitCode)
	assert.Equal(t, crypto.CreateAddress(deployer, 0), address)
	assert.Equal(t, uint64(1), ctx.GetNonce(deployer))

	second, gasUsed, err := ctx.DeployEvmTxWithNonce(deployer, answerInitCode, 1)
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(deployer, 1), second)
	assert.Greater(t, gasUsed, uint64(53000))
}

func TestDeployEvmTxNonceMismatch(t *testing.T) {
	ctx := NewTestingContext()

	_, _, err := ctx.DeployEvmTxWithNonce(deployer, answerInitCode, 5)
	assert.ErrorIs(t, err, ErrAddressMismatch)
}

func TestCallEvmTx(t *testing.T) {
	ctx := NewTestingContext()
	address := deploy(t, ctx, answerInitCode)

	result, err := ctx.CallEvmTx(caller, address, nil, 0, nil)
	require.NoError(t, err)
	require.True(t, result.IsSuccess(), result.String())

	expected := make([]byte, 32)
	expected[31] = 0x2a
	assert.Equal(t, expected, result.Output)
	assert.Greater(t, result.GasUsed, uint64(21000))

	// gas is paid at price 1 to the coinbase
	spent := new(uint256.Int).Sub(CallerFunding, ctx.GetBalance(caller))
	assert.Equal(t, result.GasUsed, spent.Uint64())
	assert.Equal(t, result.GasUsed, ctx.GetBalance(ctx.Coinbase).Uint64())
	assert.Equal(t, uint64(1), ctx.GetNonce(caller))
}
