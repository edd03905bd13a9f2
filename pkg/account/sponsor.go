package account

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/okx/aa-settlement/pkg/chain"
	"github.com/okx/aa-settlement/pkg/op"
	"github.com/okx/aa-settlement/pkg/protocol"
)

const (
	sponsorValidationGas = 8000
	postProcessGas       = 5000
)

// PostOpRecord is what the sponsor learned from one settled operation.
type PostOpRecord struct {
	Mode protocol.PostOpMode
	Cost *big.Int
}

// VerifyingSponsor sponsors operations whose payload carries a signature by
// the sponsor's off-chain signer over the operation hash. Price-oracle and
// token-swap logic live outside this repository; this sponsor only exercises
// the validation/post-processing contract.
type VerifyingSponsor struct {
	address common.Address
	signer  common.Address

	// The engine address and chain id pin the digest the signer commits to,
	// the same way the account's owner signature is pinned.
	engine  common.Address
	chainID *big.Int

	// Window bounds every sponsorship this sponsor grants.
	Window protocol.DeadlineWindow

	// FailPostOp forces PostProcess to revert; tests use it to exercise the
	// PostOpRevert path.
	FailPostOp bool

	// PostOps records completed post-processing calls in order.
	PostOps []PostOpRecord
}

func NewVerifyingSponsor(address, signer, engine common.Address, chainID *big.Int) *VerifyingSponsor {
	return &VerifyingSponsor{address: address, signer: signer, engine: engine, chainID: chainID}
}

// Address returns the sponsor's own address.
func (s *VerifyingSponsor) Address() common.Address {
	return s.address
}

func (s *VerifyingSponsor) ValidateSponsorship(o *op.Operation, opHash common.Hash, maxCost *big.Int, frame *chain.Frame) ([]byte, protocol.DeadlineWindow, error) {
	window := s.Window
	if err := frame.Consume(sponsorValidationGas); err != nil {
		return nil, window, err
	}

	payload := o.SponsorPayload()
	if len(payload) != signatureLen {
		return nil, window, errors.Errorf("invalid sponsor payload: %d bytes", len(payload))
	}
	// The signer commits to the payload-stripped hash; the full opHash covers
	// the signature itself and cannot be what was signed.
	if !verifySignature(s.signer, o.SponsorHash(s.engine, s.chainID), payload) {
		window.AuthFailed = true
		return nil, window, nil
	}

	// The context round-trips the op hash so PostProcess can attribute the
	// cost it is told about.
	return opHash.Bytes(), window, nil
}

func (s *VerifyingSponsor) PostProcess(mode protocol.PostOpMode, context []byte, actualGasCost *big.Int, frame *chain.Frame) error {
	if err := frame.Consume(postProcessGas); err != nil {
		return err
	}
	if s.FailPostOp && mode != protocol.PostOpReverted {
		return errors.New("post-op rejected")
	}
	s.PostOps = append(s.PostOps, PostOpRecord{Mode: mode, Cost: new(big.Int).Set(actualGasCost)})
	return nil
}
