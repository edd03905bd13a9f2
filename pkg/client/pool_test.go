package client

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/okx/aa-settlement/pkg/op"
)

func feeOp(maxFee int64) *op.Operation {
	return &op.Operation{
		Sender:               common.HexToAddress("0x1234000000000000000000000000000000000000"),
		Nonce:                big.NewInt(0),
		CallGasLimit:         big.NewInt(50000),
		VerificationGasLimit: big.NewInt(50000),
		PreVerificationGas:   big.NewInt(100),
		MaxFeePerGas:         big.NewInt(maxFee),
		MaxPriorityFeePerGas: big.NewInt(maxFee),
	}
}

func TestPoolTakeOrdersByFee(t *testing.T) {
	p := NewPool(big.NewInt(1))
	p.Add("low", feeOp(10))
	p.Add("high", feeOp(1000))
	p.Add("mid", feeOp(100))

	ops := p.Take(2)
	assert.Len(t, ops, 2)
	assert.Equal(t, big.NewInt(1000), ops[0].MaxFeePerGas, "highest fee comes first")
	assert.Equal(t, big.NewInt(100), ops[1].MaxFeePerGas)

	// Take removes what it returns.
	assert.Equal(t, 1, p.Size())
	assert.False(t, p.Contains("high"))
	assert.True(t, p.Contains("low"))
}

func TestPoolTakeMoreThanAvailable(t *testing.T) {
	p := NewPool(big.NewInt(1))
	p.Add("only", feeOp(10))

	ops := p.Take(10)
	assert.Len(t, ops, 1)
	assert.Equal(t, 0, p.Size())

	assert.Empty(t, p.Take(10), "taking from an empty pool returns nothing")
	assert.Nil(t, p.Take(0))
}

func TestPoolAddReplacesByKey(t *testing.T) {
	p := NewPool(big.NewInt(1))
	p.Add("key", feeOp(10))
	p.Add("key", feeOp(999))

	assert.Equal(t, 1, p.Size())
	ops := p.Take(1)
	assert.Equal(t, big.NewInt(999), ops[0].MaxFeePerGas)
}

func TestPoolClampsHugeFees(t *testing.T) {
	p := NewPool(big.NewInt(1))
	huge := feeOp(1)
	huge.MaxFeePerGas = new(big.Int).Lsh(big.NewInt(1), 100)
	huge.MaxPriorityFeePerGas = new(big.Int).Set(huge.MaxFeePerGas)

	p.Add("huge", huge)
	p.Add("small", feeOp(5))

	ops := p.Take(2)
	assert.Len(t, ops, 2)
	assert.Equal(t, huge.MaxFeePerGas, ops[0].MaxFeePerGas, "a clamped fee still sorts on top")
}
