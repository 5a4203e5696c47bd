package ledger

import (
	"crypto/ed25519"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/solana"
)

// Program handles every instruction addressed to its program id.
//
// Handlers mutate the accounts they are given in place. Any returned error
// aborts the whole transaction, and none of the mutations are committed.
type Program interface {
	Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error

func (f ProgramFunc) Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error {
	return f(ctx, accounts, data)
}

// AccountInfo is an account as seen by a program during a single invocation.
// When an instruction references the same address more than once, every
// reference points to the same underlying Account.
type AccountInfo struct {
	*Account

	IsSigner   bool
	IsWritable bool
}

// NextAccount pops the first account off accounts, failing with
// NotEnoughAccountKeys when none remain.
func NextAccount(accounts *[]*AccountInfo) (*AccountInfo, error) {
	if len(*accounts) == 0 {
		return nil, solana.InstructionErrorNotEnoughAccountKeys
	}

	next := (*accounts)[0]
	*accounts = (*accounts)[1:]
	return next, nil
}

// Registry maps program ids to the handlers that process their instructions.
type Registry struct {
	mu       sync.RWMutex
	programs map[string]Program
}

func NewRegistry() *Registry {
	return &Registry{
		programs: make(map[string]Program),
	}
}

// Register binds program to id.
//
// ErrProgramAlreadyRegistered is returned if id is already bound.
func (r *Registry) Register(id ed25519.PublicKey, program Program) error {
	if len(id) != ed25519.PublicKeySize {
		return errors.Errorf("invalid program id length: %d", len(id))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.programs[string(id)]; ok {
		return errors.Wrap(ErrProgramAlreadyRegistered, base58.Encode(id))
	}

	r.programs[string(id)] = program
	return nil
}

// Get returns the program bound to id.
func (r *Registry) Get(id ed25519.PublicKey) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	program, ok := r.programs[string(id)]
	return program, ok
}
