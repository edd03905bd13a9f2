package protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

// Reason identifies why an operation was dropped from a batch. The values are
// a fixed taxonomy that downstream relayers match on byte-for-byte; never
// rename one.
type Reason string

const (
	ReasonSenderAlreadyConstructed   Reason = "SenderAlreadyConstructed"
	ReasonInitCodeFailed             Reason = "InitCodeFailed"
	ReasonWrongSenderCreated         Reason = "WrongSenderCreated"
	ReasonSenderNotDeployed          Reason = "SenderNotDeployed"
	ReasonDidNotPayPrefund           Reason = "DidNotPayPrefund"
	ReasonInsufficientDeposit        Reason = "InsufficientDeposit"
	ReasonExpired                    Reason = "Expired"
	ReasonValidationReverted         Reason = "ValidationReverted"
	ReasonValidationRevertedNoReason Reason = "ValidationRevertedNoReason"
	ReasonSponsorNotDeployed         Reason = "SponsorNotDeployed"
	ReasonSponsorDepositTooLow       Reason = "SponsorDepositTooLow"
	ReasonTooLittleVerificationGas   Reason = "TooLittleVerificationGas"
	ReasonSponsorValidationReverted         Reason = "SponsorValidationReverted"
	ReasonSponsorValidationRevertedNoReason Reason = "SponsorValidationRevertedNoReason"
	ReasonSignatureError                    Reason = "SignatureError"
	ReasonNonceError                        Reason = "NonceError"
	ReasonPostOpRevert                      Reason = "PostOpRevert"
)

// FailedOp is the per-operation failure. It never propagates to the batch
// caller as a submission failure; the engine converts it into a structured
// event keyed by (sender, nonce, reason).
type FailedOp struct {
	Reason Reason
	// Detail carries the collaborator-provided revert reason, surfaced
	// verbatim. Empty for reasons raised by the engine itself.
	Detail string
}

func (f *FailedOp) Error() string {
	if f.Detail == "" {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
}

// NewFailedOp wraps a reason and optional detail into a per-operation error.
func NewFailedOp(reason Reason, detail string) *FailedOp {
	return &FailedOp{Reason: reason, Detail: detail}
}

// ErrInvalidNonce is the sentinel an account returns from its validation call
// when the operation's nonce does not match its own counter. Nonce
// correctness is the account's capability; the engine only recognizes the
// sentinel to surface NonceError instead of a generic validation revert.
var ErrInvalidNonce = errors.New("invalid account nonce")
