package engine

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/okx/aa-settlement/pkg/op"
	"github.com/okx/aa-settlement/pkg/protocol"
)

// ensureDeployed lazily constructs the sender account from the operation's
// init code on first use. Returns the gas consumed by the factory call; that
// gas counts against the operation's verification budget. No funds move on
// any failure here.
func (e *Engine) ensureDeployed(o *op.Operation, opHash common.Hash) (uint64, *protocol.FailedOp) {
	hasCode := e.state.HasCode(o.Sender)

	if !o.HasInitCode() {
		if !hasCode {
			return 0, protocol.NewFailedOp(protocol.ReasonSenderNotDeployed, "")
		}
		return 0, nil
	}
	if hasCode {
		return 0, protocol.NewFailedOp(protocol.ReasonSenderAlreadyConstructed, "")
	}
	if len(o.InitCode) < common.AddressLength {
		return 0, protocol.NewFailedOp(protocol.ReasonInitCodeFailed, "init code shorter than a factory address")
	}

	factoryAddr := o.Factory()
	if !e.FactoryAllowed(factoryAddr) {
		// An unlisted factory does not fail the operation outright: the
		// deploy step is skipped and validation decides whether the sender
		// exists.
		e.logger.WithValues(
			"sender", o.Sender.String(),
			"factory", factoryAddr.String(),
		).Info("unrecognized factory, deploy skipped")
		return 0, nil
	}

	factory, ok := e.registry.Factory(factoryAddr)
	if !ok {
		return 0, protocol.NewFailedOp(protocol.ReasonInitCodeFailed, "factory has no code")
	}

	frame := e.state.NewFrame(o.VerificationGasLimit.Uint64())
	created, err := factory.Create(o.FactoryData(), frame)
	if err != nil {
		return frame.Used(), protocol.NewFailedOp(protocol.ReasonInitCodeFailed, err.Error())
	}
	if !e.state.HasCode(created) {
		return frame.Used(), protocol.NewFailedOp(protocol.ReasonInitCodeFailed, "factory returned no code")
	}
	if created != o.Sender {
		return frame.Used(), protocol.NewFailedOp(protocol.ReasonWrongSenderCreated, created.String())
	}

	e.sink.AccountDeployed(AccountDeployedEvent{
		OpHash:  opHash,
		Sender:  o.Sender,
		Factory: factoryAddr,
		Sponsor: o.Sponsor(),
	})
	return frame.Used(), nil
}
