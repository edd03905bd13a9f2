package engine

import (
	"context"
	"math/big"

	"github.com/okx/aa-settlement/pkg/protocol"
)

// execute runs the funded operation: the account's execution entry point,
// sponsor post-processing, then settlement of the actual cost against the
// prefund. Returns the amount collected toward the beneficiary.
//
// Every step here runs inside a state snapshot: a revert at any point
// degrades to a per-operation outcome and rolls back the execution's
// effects, while the prefund debit committed during validation stays
// committed. That split is what keeps the ledger consistent when untrusted
// code misbehaves.
func (e *Engine) execute(c *opContext) *big.Int {
	o := c.op

	snap := e.state.Snapshot()
	frame := e.state.NewFrame(o.CallGasLimit.Uint64())

	var revertData []byte
	success := true
	if len(o.CallData) > 0 {
		if _, err := c.account.Execute(o.CallData, frame); err != nil {
			e.state.RevertToSnapshot(snap)
			snap = e.state.Snapshot()
			success = false
			revertData = []byte(err.Error())
		}
	}

	execGasUsed := frame.Used()
	preCost := c.settledCost(execGasUsed, 0)

	// Sponsor post-processing. A revert rolls back the execution effects and
	// marks the whole operation failed, but accounting still completes with
	// the cost measured up to that point.
	postOpGasUsed := uint64(0)
	postOpFailed := false
	if c.sponsor != nil {
		mode := protocol.OpSucceeded
		if !success {
			mode = protocol.OpReverted
		}
		postFrame := e.state.NewFrame(o.VerificationGasLimit.Uint64())
		if err := c.sponsor.PostProcess(mode, c.sponsorCtx, preCost, postFrame); err != nil {
			postOpGasUsed = postFrame.Used()
			e.state.RevertToSnapshot(snap)
			snap = e.state.Snapshot()
			postOpFailed = true

			// One more attempt with the rolled-back mode so the sponsor can
			// still reconcile; its own failure here is final.
			retryFrame := e.state.NewFrame(o.VerificationGasLimit.Uint64())
			if retryErr := c.sponsor.PostProcess(protocol.PostOpReverted, c.sponsorCtx, preCost, retryFrame); retryErr != nil {
				e.state.RevertToSnapshot(snap)
				snap = e.state.Snapshot()
			}
			postOpGasUsed += retryFrame.Used()
		} else {
			postOpGasUsed = postFrame.Used()
		}
	}
	e.state.DiscardSnapshot(snap)

	actualGasUsed := new(big.Int).SetUint64(c.verificationGasUsed + execGasUsed + postOpGasUsed)
	actualGasUsed.Add(actualGasUsed, o.PreVerificationGas)
	actualCost := new(big.Int).Mul(actualGasUsed, c.gasPrice)

	collected := e.settle(c, actualCost)

	if postOpFailed {
		e.opsFailed.Add(context.Background(), 1)
		e.sink.OperationFailed(OperationFailedEvent{
			Sender: o.Sender,
			Nonce:  o.Nonce,
			Reason: protocol.ReasonPostOpRevert,
		})
		return collected
	}

	e.opsProcessed.Add(context.Background(), 1)
	if !success {
		e.sink.OperationReverted(OperationRevertedEvent{
			OpHash:       c.opHash,
			Sender:       o.Sender,
			Nonce:        o.Nonce,
			RevertReason: revertData,
		})
	}
	e.sink.OperationProcessed(OperationEvent{
		OpHash:        c.opHash,
		Sender:        o.Sender,
		Sponsor:       o.Sponsor(),
		Nonce:         o.Nonce,
		Success:       success,
		ActualGasCost: actualCost,
		ActualGasUsed: actualGasUsed,
	})
	return collected
}

// settledCost prices the gas consumed so far, including the flat
// preVerificationGas that is charged regardless of outcome.
func (c *opContext) settledCost(execGasUsed, postOpGasUsed uint64) *big.Int {
	used := new(big.Int).SetUint64(c.verificationGasUsed + execGasUsed + postOpGasUsed)
	used.Add(used, c.op.PreVerificationGas)
	return used.Mul(used, c.gasPrice)
}

// settle reconciles the prefund against the actual cost: the surplus is
// credited back to the payer and the covered cost goes to the batch's
// beneficiary total. A shortfall is never collected retroactively, since
// that would require a second untrusted external call; the relayer absorbs
// it through the beneficiary transfer.
func (e *Engine) settle(c *opContext, actualCost *big.Int) *big.Int {
	collected := new(big.Int).Set(actualCost)
	if collected.Cmp(c.prefund) > 0 {
		e.logger.WithValues(
			"sender", c.op.Sender.String(),
			"prefund", c.prefund.String(),
			"actual_cost", actualCost.String(),
		).Info("actual cost above prefund, shortfall absorbed")
		collected.Set(c.prefund)
	}

	refund := new(big.Int).Sub(c.prefund, collected)
	if refund.Sign() > 0 {
		if err := e.ledger.Credit(c.payer, refund); err != nil {
			e.logger.Error(err, "refund credit failed", "payer", c.payer.String())
		}
	}
	return collected
}
