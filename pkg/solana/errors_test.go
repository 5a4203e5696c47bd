package solana

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionError_ErrorKey(t *testing.T) {
	e := InstructionError{Index: 2, Err: CustomError(3)}
	assert.Equal(t, InstructionErrorCustom, e.ErrorKey())
	require.NotNil(t, e.CustomError())
	assert.Equal(t, CustomError(3), *e.CustomError())
	assert.Equal(t, "Error processing Instruction 2: custom program error: 0x3", e.Error())

	e = InstructionError{Index: 0, Err: InstructionErrorInvalidArgument}
	assert.Equal(t, InstructionErrorInvalidArgument, e.ErrorKey())
	assert.Nil(t, e.CustomError())

	e = InstructionError{Index: 1, Err: errors.Wrap(InstructionErrorMissingRequiredSignature, "authority")}
	assert.Equal(t, InstructionErrorMissingRequiredSignature, e.ErrorKey())
	assert.True(t, errors.Is(e, InstructionErrorMissingRequiredSignature))

	e = InstructionError{Index: 1, Err: errors.New("boom")}
	assert.Equal(t, InstructionErrorGenericError, e.ErrorKey())

	assert.Equal(t, InstructionErrorKey(""), InstructionError{}.ErrorKey())
}

func TestTransactionError(t *testing.T) {
	e := NewTransactionError(TransactionErrorDuplicateSignature)
	assert.Equal(t, TransactionErrorDuplicateSignature, e.ErrorKey())
	assert.Nil(t, e.InstructionError())
	assert.Equal(t, "DuplicateSignature", e.Error())

	e = TransactionErrorFromInstructionError(&InstructionError{
		Index: 2,
		Err:   CustomError(3),
	})
	assert.Equal(t, TransactionErrorInstructionError, e.ErrorKey())
	require.NotNil(t, e.InstructionError())
	assert.Equal(t, 2, e.InstructionError().Index)

	var ce CustomError
	require.True(t, errors.As(e, &ce))
	assert.Equal(t, CustomError(3), ce)
}
