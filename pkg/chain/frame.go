package chain

import "github.com/pkg/errors"

// ErrOutOfGas signals that a call frame exhausted its gas budget. The engine
// treats it like any other revert of the framed call.
var ErrOutOfGas = errors.New("out of gas")

// Frame is a resource-bounded call frame handed to a collaborator. The gas
// budget substitutes for a timeout: there is no cancellation primitive
// mid-batch, so exceeding the budget aborts the call with ErrOutOfGas.
type Frame struct {
	State *State

	limit uint64
	used  uint64
}

// NewFrame opens a call frame over the state with the given gas budget.
func (s *State) NewFrame(gasLimit uint64) *Frame {
	return &Frame{State: s, limit: gasLimit}
}

// Consume charges gas against the frame's budget. Once the budget is
// exceeded the full limit counts as used, matching how an out-of-gas call
// burns everything it was given.
func (f *Frame) Consume(gas uint64) error {
	if f.used+gas > f.limit {
		f.used = f.limit
		return ErrOutOfGas
	}
	f.used += gas
	return nil
}

// Used returns the gas consumed so far.
func (f *Frame) Used() uint64 {
	return f.used
}

// Remaining returns the unused portion of the budget.
func (f *Frame) Remaining() uint64 {
	return f.limit - f.used
}

// Limit returns the frame's total budget.
func (f *Frame) Limit() uint64 {
	return f.limit
}
