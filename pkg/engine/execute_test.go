package engine

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okx/aa-settlement/pkg/account"
	"github.com/okx/aa-settlement/pkg/chain"
	"github.com/okx/aa-settlement/pkg/op"
	"github.com/okx/aa-settlement/pkg/protocol"
)

func TestExecuteRevertStillSettles(t *testing.T) {
	env := newTestEnv(t)
	sender := env.deployStubAccount(&stubAccount{executeErr: errors.New("transfer failed")})
	o := rawOp(sender, func(o *op.Operation) {
		o.CallData = []byte{0x01}
	})
	prefund := o.MaxPrefund(big.NewInt(1))
	require.NoError(t, env.ldg.Credit(sender, prefund))

	require.NoError(t, env.handleOps(o))

	// An execution revert is not a failed op: it settles with Success=false
	// and the revert payload alongside.
	require.Len(t, env.sink.Processed, 1)
	assert.False(t, env.sink.Processed[0].Success)
	require.Len(t, env.sink.Reverted, 1)
	assert.Equal(t, []byte("transfer failed"), env.sink.Reverted[0].RevertReason)
	assert.Empty(t, env.sink.Failed)

	// The cost was still collected from the prefund.
	cost := env.sink.Processed[0].ActualGasCost
	assert.Positive(t, cost.Sign())
	assert.Equal(t, cost, env.ldg.BalanceOf(beneficiaryAddr))
	assert.Equal(t, new(big.Int).Sub(prefund, cost), env.ldg.BalanceOf(sender))
}

func TestExecuteRevertRollsBackStateEffects(t *testing.T) {
	env := newTestEnv(t)
	touched := common.HexToAddress("0x3333000000000000000000000000000000000000")
	sender := env.deployStubAccount(&stubAccount{
		executeFn: func(callData []byte, frame *chain.Frame) ([]byte, error) {
			frame.State.AddBalance(touched, big.NewInt(42))
			return nil, errors.New("late revert")
		},
	})
	o := rawOp(sender, func(o *op.Operation) { o.CallData = []byte{0x01} })
	require.NoError(t, env.ldg.Credit(sender, o.MaxPrefund(big.NewInt(1))))

	require.NoError(t, env.handleOps(o))

	require.Len(t, env.sink.Processed, 1)
	assert.False(t, env.sink.Processed[0].Success)
	assert.Equal(t, big.NewInt(0), env.state.GetBalance(touched), "reverted effects must not persist")
}

func TestPostOpRevertDegradesToFailure(t *testing.T) {
	env := newTestEnv(t)
	touched := common.HexToAddress("0x3333000000000000000000000000000000000000")
	sender := env.deployStubAccount(&stubAccount{
		executeFn: func(callData []byte, frame *chain.Frame) ([]byte, error) {
			frame.State.AddBalance(touched, big.NewInt(42))
			return nil, nil
		},
	})
	sponsor := &stubSponsor{postErr: errors.New("post-op rejected")}
	sponsorAddr := env.deployStubSponsor(sponsor, 1<<40)

	o := rawOp(sender, func(o *op.Operation) {
		o.CallData = []byte{0x01}
		o.SponsorAndData = sponsorAddr.Bytes()
	})
	require.NoError(t, env.handleOps(o))

	ev := env.requireFailed(protocol.ReasonPostOpRevert)
	assert.Equal(t, sender, ev.Sender)

	// The execution effects were rolled back, the retry ran in the
	// rolled-back mode, and the sponsor still paid the cost.
	assert.Equal(t, big.NewInt(0), env.state.GetBalance(touched))
	assert.Equal(t, []protocol.PostOpMode{protocol.OpSucceeded, protocol.PostOpReverted}, sponsor.postModes)

	cost := new(big.Int).Sub(big.NewInt(1<<40), env.ldg.BalanceOf(sponsorAddr))
	assert.Positive(t, cost.Sign())
	assert.Equal(t, cost, env.ldg.BalanceOf(beneficiaryAddr))
	assert.Equal(t, big.NewInt(0), env.ldg.BalanceOf(sender), "the sender never pays for a sponsored op")
}

func TestPostOpModeReportsExecutionRevert(t *testing.T) {
	env := newTestEnv(t)
	sender := env.deployStubAccount(&stubAccount{executeErr: errors.New("boom")})
	sponsor := &stubSponsor{}
	sponsorAddr := env.deployStubSponsor(sponsor, 1<<40)

	o := rawOp(sender, func(o *op.Operation) {
		o.CallData = []byte{0x01}
		o.SponsorAndData = sponsorAddr.Bytes()
	})
	require.NoError(t, env.handleOps(o))

	require.Len(t, env.sink.Processed, 1)
	assert.False(t, env.sink.Processed[0].Success)
	assert.Equal(t, []protocol.PostOpMode{protocol.OpReverted}, sponsor.postModes)
}

func TestSponsoredTransferEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ownerKey := mustKey(t)
	signerKey := mustKey(t)
	acct, sender := env.deployAccount(ownerKey, 10000)
	sp, sponsorAddr := env.deploySponsor(signerKey, 1<<40)
	recipient := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	o := env.signedOp(sender, ownerKey, func(o *op.Operation) {
		o.CallData = account.TransferCallData(recipient, big.NewInt(500))
		env.sponsorize(o, sponsorAddr, signerKey)
	})
	require.NoError(t, env.handleOps(o))

	require.Len(t, env.sink.Processed, 1)
	ev := env.sink.Processed[0]
	assert.True(t, ev.Success)
	assert.Equal(t, sponsorAddr, ev.Sponsor)
	assert.Empty(t, env.sink.Failed)

	assert.Equal(t, big.NewInt(500), env.state.GetBalance(recipient))
	assert.Equal(t, uint64(1), acct.Nonce())

	// The sponsor paid exactly the actual cost; the sender's deposit and
	// native balance (minus the transfer) are untouched.
	cost := ev.ActualGasCost
	assert.Equal(t, new(big.Int).Sub(big.NewInt(1<<40), cost), env.ldg.BalanceOf(sponsorAddr))
	assert.Equal(t, big.NewInt(0), env.ldg.BalanceOf(sender))
	assert.Equal(t, big.NewInt(9500), env.state.GetBalance(sender))

	// Post-processing observed the success and the settled cost.
	require.Len(t, sp.PostOps, 1)
	assert.Equal(t, protocol.OpSucceeded, sp.PostOps[0].Mode)
	assert.Positive(t, sp.PostOps[0].Cost.Sign())
	assert.True(t, sp.PostOps[0].Cost.Cmp(cost) <= 0, "the pre-settlement cost excludes post-op gas")
}

func TestSponsorSignatureMismatchFails(t *testing.T) {
	env := newTestEnv(t)
	ownerKey := mustKey(t)
	signerKey := mustKey(t)
	wrongKey := mustKey(t)
	_, sender := env.deployAccount(ownerKey, 10000)
	_, sponsorAddr := env.deploySponsor(signerKey, 1<<40)

	o := env.signedOp(sender, ownerKey, func(o *op.Operation) {
		env.sponsorize(o, sponsorAddr, wrongKey)
	})
	require.NoError(t, env.handleOps(o))

	env.requireFailed(protocol.ReasonSignatureError)
	assert.Equal(t, big.NewInt(1<<40), env.ldg.BalanceOf(sponsorAddr), "the sponsor's debit must be compensated")
}
