package testutil

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/poc-ledger/pkg/solana"
)

// AssertInstructionError verifies that the provided error is a
// solana.InstructionError for the instruction at index, caused by cause.
func AssertInstructionError(t *testing.T, err error, index int, cause error) {
	require.Error(t, err)

	var ixErr solana.InstructionError
	require.True(t, errors.As(err, &ixErr), "expected an instruction error, got: %v", err)
	assert.Equal(t, index, ixErr.Index)
	assert.True(t, errors.Is(ixErr.Err, cause), "expected %v, got: %v", cause, ixErr.Err)
}
