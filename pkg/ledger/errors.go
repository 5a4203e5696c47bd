package ledger

import (
	"github.com/pkg/errors"
)

var (
	// ErrMissingSignature is returned when an instruction marks an account as
	// a signer, but the transaction carries no signature for it.
	ErrMissingSignature = errors.New("missing required signature")

	// ErrDecode is returned when account data does not decode exactly into the
	// requested type.
	ErrDecode = errors.New("failed to decode account data")

	ErrProgramAlreadyRegistered = errors.New("program already registered")
	ErrEmptyTransaction         = errors.New("transaction has no instructions")
)
