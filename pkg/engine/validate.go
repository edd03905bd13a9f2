package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/okx/aa-settlement/pkg/chain"
	"github.com/okx/aa-settlement/pkg/ledger"
	"github.com/okx/aa-settlement/pkg/op"
	"github.com/okx/aa-settlement/pkg/protocol"
)

// opContext is the settlement record under construction: everything the
// execution phase needs once validation has committed the prefund. It never
// outlives the operation; the result survives only as an emitted event.
type opContext struct {
	op     *op.Operation
	opHash common.Hash

	account protocol.Account

	prefund *big.Int
	// payer is the address whose deposit funded the prefund: the sponsor
	// when one is present, otherwise the sender.
	payer common.Address

	sponsor    protocol.Sponsor
	sponsorCtx []byte

	verificationGasUsed uint64
	gasPrice            *big.Int
}

// validate drives the two-stage (account, sponsor) validation and collects
// the prefund. On success the prefund has been debited from the payer's
// deposit; on failure every debit made along the way has been compensated,
// so a validation failure charges nothing.
func (e *Engine) validate(o *op.Operation, opHash common.Hash, deployGasUsed uint64) (*opContext, *protocol.FailedOp) {
	if !e.state.HasCode(o.Sender) {
		return nil, protocol.NewFailedOp(protocol.ReasonSenderNotDeployed, "")
	}
	account, ok := e.registry.Account(o.Sender)
	if !ok {
		return nil, protocol.NewFailedOp(protocol.ReasonValidationRevertedNoReason, "")
	}

	prefund := o.MaxPrefund(e.baseFee)
	sponsored := o.HasSponsor()

	frame := e.state.NewFrame(o.VerificationGasLimit.Uint64())
	if err := frame.Consume(deployGasUsed); err != nil {
		return nil, protocol.NewFailedOp(protocol.ReasonValidationReverted, "over verificationGasLimit")
	}

	// Stage one: the account. When the operation is self-funded the account
	// must top up whatever its deposit is missing; the engine verifies the
	// resulting balance rather than trusting the return value.
	missing := new(big.Int)
	if !sponsored {
		if deposit := e.ledger.BalanceOf(o.Sender); deposit.Cmp(prefund) < 0 {
			missing.Sub(prefund, deposit)
		}
	}

	window, err := account.ValidateOperation(o, opHash, missing, frame, batchDepositor{e})
	if err != nil {
		return nil, accountRevertReason(err)
	}

	c := &opContext{
		op:       o,
		opHash:   opHash,
		account:  account,
		prefund:  prefund,
		payer:    o.Sender,
		gasPrice: o.EffectiveGasPrice(e.baseFee),
	}

	// Stage two: the sponsor, paying from its own deposit instead of the
	// sender's. The deposit is debited before the callout so a reentrant
	// call observes a ledger that already reflects the pending charge.
	if sponsored {
		sponsorWindow, failed := e.validateSponsor(c, frame)
		if failed != nil {
			return nil, failed
		}
		window = window.Intersect(sponsorWindow)
	} else {
		if e.ledger.BalanceOf(o.Sender).Cmp(prefund) < 0 {
			return nil, protocol.NewFailedOp(protocol.ReasonDidNotPayPrefund, "")
		}
		if err := e.ledger.Debit(o.Sender, prefund); err != nil {
			// Balance raced away between the check and the debit; the whole
			// operation degrades to a no-op.
			return nil, protocol.NewFailedOp(protocol.ReasonInsufficientDeposit, "")
		}
	}

	// The merged window is consumed exactly once, here.
	if window.AuthFailed {
		e.refundPrefund(c)
		return nil, protocol.NewFailedOp(protocol.ReasonSignatureError, "")
	}
	if window.Expired(e.now()) {
		e.refundPrefund(c)
		return nil, protocol.NewFailedOp(protocol.ReasonExpired, "")
	}

	c.verificationGasUsed = frame.Used()
	return c, nil
}

// validateSponsor runs the sponsor stage: code presence, verification-gas
// floor, deposit debit, then the sponsor's own validation call.
func (e *Engine) validateSponsor(c *opContext, frame *chain.Frame) (protocol.DeadlineWindow, *protocol.FailedOp) {
	var none protocol.DeadlineWindow
	sponsorAddr := c.op.Sponsor()

	if !e.state.HasCode(sponsorAddr) {
		return none, protocol.NewFailedOp(protocol.ReasonSponsorNotDeployed, "")
	}
	sponsor, ok := e.registry.Sponsor(sponsorAddr)
	if !ok {
		return none, protocol.NewFailedOp(protocol.ReasonSponsorValidationRevertedNoReason, "")
	}
	// The remaining budget must strictly exceed the floor; a remainder equal
	// to it is still too little.
	if frame.Remaining() <= minSponsorVerificationGas {
		return none, protocol.NewFailedOp(protocol.ReasonTooLittleVerificationGas, "")
	}

	if err := e.ledger.Debit(sponsorAddr, c.prefund); err != nil {
		if errors.Is(err, ledger.ErrInsufficientDeposit) {
			return none, protocol.NewFailedOp(protocol.ReasonSponsorDepositTooLow, "")
		}
		return none, protocol.NewFailedOp(protocol.ReasonSponsorValidationReverted, err.Error())
	}
	c.payer = sponsorAddr
	c.sponsor = sponsor

	ctx, window, err := sponsor.ValidateSponsorship(c.op, c.opHash, c.prefund, frame)
	if err != nil {
		e.refundPrefund(c)
		if errors.Is(err, chain.ErrOutOfGas) {
			return none, protocol.NewFailedOp(protocol.ReasonSponsorValidationRevertedNoReason, "")
		}
		return none, protocol.NewFailedOp(protocol.ReasonSponsorValidationReverted, err.Error())
	}
	c.sponsorCtx = ctx
	return window, nil
}

// refundPrefund compensates a prefund debit when validation fails after the
// payer was already charged. Settlement-phase failures never take this path;
// they settle through refunds instead.
func (e *Engine) refundPrefund(c *opContext) {
	if err := e.ledger.Credit(c.payer, c.prefund); err != nil {
		e.logger.Error(err, "prefund compensation failed",
			"payer", c.payer.String(),
			"prefund", c.prefund.String(),
		)
	}
}

// accountRevertReason maps an account validation error onto the failure
// taxonomy. The nonce sentinel is surfaced verbatim as NonceError; an
// out-of-gas abort has no reason payload by construction.
func accountRevertReason(err error) *protocol.FailedOp {
	switch {
	case errors.Is(err, protocol.ErrInvalidNonce):
		return protocol.NewFailedOp(protocol.ReasonNonceError, err.Error())
	case errors.Is(err, chain.ErrOutOfGas):
		return protocol.NewFailedOp(protocol.ReasonValidationRevertedNoReason, "")
	default:
		return protocol.NewFailedOp(protocol.ReasonValidationReverted, err.Error())
	}
}
