package evm

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
)

var (
	deployer = common.Address{}
	caller   = common.HexToAddress("0x1111")
)

// returns a single word 0x2a from its runtime code
var answerInitCode = common.FromHex("600a600c600039600a6000f3" + "602a60005260206000f3")

func newLoggedContext(t *testing.T) (*TestingContext, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	ctx, err := LoadFromGenesis(DefaultGenesis(), log.NewLogger(log.NewTerminalHandler(&buf, false)))
	require.NoError(t, err)
	return ctx, &buf
}

func deploy(t *testing.T, ctx *TestingContext, code []byte) common.Address {
	t.Helper()
	address, err := ctx.DeployEvmTx(deployer, code)
	require.NoError(t, err)
	return address
}
