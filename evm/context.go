package evm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

var (
	ErrDeploymentFailed = errors.New("evm: deployment failed")
	ErrAddressMismatch  = errors.New("evm: unexpected contract address")
)

// CallerFunding is what CallEvmTx credits the caller with before calling.
var CallerFunding = uint256.NewInt(params.Ether)

type AccountInfo struct {
	Balance  *uint256.Int
	Nonce    uint64
	CodeHash common.Hash
}

// TestingContext is an in-memory chain state that accepts both EVM and WASM
// contracts.
type TestingContext struct {
	Genesis     *core.Genesis
	ChainConfig *params.ChainConfig
	State       *state.StateDB
	Coinbase    common.Address
	BlockNumber uint64
	Timestamp   uint64

	wasm   *WasmInterpreter
	logger log.Logger
}

func DefaultGenesis() *core.Genesis {
	return &core.Genesis{
		Config:   params.AllDevChainProtocolChanges,
		Coinbase: common.HexToAddress("0xc0ffee"),
		GasLimit: DefaultCreateGasLimit,
		Alloc:    types.GenesisAlloc{},
	}
}

func NewTestingContext() *TestingContext {
	ctx, err := LoadFromGenesis(DefaultGenesis(), nil)
	if err != nil {
		panic(err)
	}
	return ctx
}

func ReadGenesisFile(path string) (*core.Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	genesis := new(core.Genesis)
	if err := json.Unmarshal(data, genesis); err != nil {
		return nil, fmt.Errorf("invalid genesis file %s: %w", path, err)
	}
	return genesis, nil
}

func LoadGenesisFile(path string, logger log.Logger) (*TestingContext, error) {
	genesis, err := ReadGenesisFile(path)
	if err != nil {
		return nil, err
	}
	return LoadFromGenesis(genesis, logger)
}

// LoadFromGenesis seeds a fresh state with every account in the genesis alloc.
func LoadFromGenesis(genesis *core.Genesis, logger log.Logger) (*TestingContext, error) {
	if logger == nil {
		logger = log.Root()
	}
	st, err := state.New(types.EmptyRootHash, state.NewDatabaseForTesting())
	if err != nil {
		return nil, err
	}

	for addr, account := range genesis.Alloc {
		st.CreateAccount(addr)
		if account.Balance != nil {
			balance, overflow := uint256.FromBig(account.Balance)
			if overflow {
				return nil, fmt.Errorf("genesis balance of %v overflows", addr)
			}
			st.AddBalance(addr, balance, tracing.BalanceIncreaseGenesisBalance)
		}
		st.SetNonce(addr, account.Nonce, tracing.NonceChangeGenesis)
		if len(account.Code) > 0 {
			st.SetCode(addr, account.Code)
		}
		for key, value := range account.Storage {
			st.SetState(addr, key, value)
		}
	}
	st.Finalise(true)

	chainConfig := genesis.Config
	if chainConfig == nil {
		chainConfig = params.AllDevChainProtocolChanges
	}

	return &TestingContext{
		Genesis:     genesis,
		ChainConfig: chainConfig,
		State:       st,
		Coinbase:    genesis.Coinbase,
		BlockNumber: genesis.Number,
		Timestamp:   genesis.Timestamp,
		wasm:        NewWasmInterpreter(logger),
		logger:      logger,
	}, nil
}

func (c *TestingContext) AddWasmContract(address common.Address, wasm []byte) AccountInfo {
	return c.AddBytecode(address, wasm)
}

func (c *TestingContext) AddBytecode(address common.Address, code []byte) AccountInfo {
	c.State.CreateAccount(address)
	if len(code) > 0 {
		c.State.SetCode(address, code)
	}
	c.State.Finalise(true)
	return AccountInfo{
		Balance:  c.State.GetBalance(address),
		Nonce:    c.State.GetNonce(address),
		CodeHash: crypto.Keccak256Hash(code),
	}
}

func (c *TestingContext) GetBalance(address common.Address) *uint256.Int {
	return c.State.GetBalance(address)
}

func (c *TestingContext) GetNonce(address common.Address) uint64 {
	return c.State.GetNonce(address)
}

func (c *TestingContext) AddBalance(address common.Address, value *uint256.Int) {
	c.State.AddBalance(address, value, tracing.BalanceChangeUnspecified)
	c.State.Finalise(true)
}

// DeployEvmTx deploys initCode at the deployer's next create address.
func (c *TestingContext) DeployEvmTx(deployer common.Address, initCode []byte) (common.Address, error) {
	address, _, err := c.DeployEvmTxWithNonce(deployer, initCode, c.GetNonce(deployer))
	return address, err
}

func (c *TestingContext) DeployEvmTxWithNonce(deployer common.Address, initCode []byte, nonce uint64) (common.Address, uint64, error) {
	result, err := CreateTx(c, deployer, initCode).Exec()
	if err != nil {
		return common.Address{}, 0, err
	}
	if !result.IsSuccess() {
		c.logger.Error("Deployment failed", "result", result, "output", FormatRevertOutput(result.Output))
		return common.Address{}, result.GasUsed, fmt.Errorf("%w: %s", ErrDeploymentFailed, result)
	}
	c.logger.Info("Contract deployed", "address", result.ContractAddress, "gasUsed", result.GasUsed)

	expected := crypto.CreateAddress(deployer, nonce)
	if result.ContractAddress != expected {
		return common.Address{}, result.GasUsed, fmt.Errorf("%w: got %v, want %v", ErrAddressMismatch, result.ContractAddress, expected)
	}
	return result.ContractAddress, result.GasUsed, nil
}

// CallEvmTxSimple calls callee with the default gas limit when gasLimit is 0.
func (c *TestingContext) CallEvmTxSimple(caller, callee common.Address, input []byte, gasLimit uint64, value *uint256.Int) (*ExecutionResult, error) {
	tx := CallTx(c, caller, callee, value).Input(input)
	if gasLimit != 0 {
		tx = tx.GasLimit(gasLimit)
	}
	return tx.Exec()
}

// CallEvmTx funds the caller with CallerFunding, then calls.
func (c *TestingContext) CallEvmTx(caller, callee common.Address, input []byte, gasLimit uint64, value *uint256.Int) (*ExecutionResult, error) {
	c.AddBalance(caller, CallerFunding)
	return c.CallEvmTxSimple(caller, callee, input, gasLimit, value)
}

func (c *TestingContext) blockNumber() *big.Int {
	return new(big.Int).SetUint64(c.BlockNumber)
}
