package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/poc-ledger/pkg/solana"
)

// InvokeContext is handed to a Program while it processes an instruction. It
// carries the invocation stack of the current instruction and lets programs
// call into other programs.
type InvokeContext struct {
	context.Context

	log      *logrus.Entry
	registry *Registry
	state    *txState
	rent     Rent
	maxDepth int

	stack []*frame
}

// ProgramID returns the id of the program currently executing.
func (c *InvokeContext) ProgramID() ed25519.PublicKey {
	return c.current().program
}

// Rent returns the rent parameters in effect for the transaction.
func (c *InvokeContext) Rent() Rent {
	return c.rent
}

// Depth returns the number of programs on the invocation stack.
func (c *InvokeContext) Depth() int {
	return len(c.stack)
}

// Log records a program log message in the transaction result.
func (c *InvokeContext) Log(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.log.WithField("program", base58.Encode(c.ProgramID())).Trace(msg)
	c.state.logs = append(c.state.logs, "Program log: "+msg)
}

// Invoke calls another program with a subset of the current accounts. The
// callee program must itself be one of the current accounts.
func (c *InvokeContext) Invoke(ix solana.Instruction) error {
	return c.InvokeSigned(ix)
}

// InvokeSigned is like Invoke, but additionally grants signer status to every
// address derived from the calling program with one of signerSeeds.
//
// A failed invocation fails the whole transaction, whether or not the caller
// returns the error.
func (c *InvokeContext) InvokeSigned(ix solana.Instruction, signerSeeds ...[][]byte) error {
	err := c.invokeSigned(ix, signerSeeds)
	if err != nil && c.state.failed == nil {
		c.state.failed = err
	}
	return err
}

func (c *InvokeContext) invokeSigned(ix solana.Instruction, signerSeeds [][][]byte) error {
	caller := c.current()

	pdaSigners := make([]ed25519.PublicKey, 0, len(signerSeeds))
	for _, seeds := range signerSeeds {
		address, err := solana.CreateProgramAddress(caller.program, seeds...)
		if err == solana.ErrMaxSeedLengthExceeded {
			return solana.InstructionErrorMaxSeedLengthExceeded
		} else if err != nil {
			return errors.Wrap(solana.InstructionErrorInvalidSeeds, err.Error())
		}
		pdaSigners = append(pdaSigners, address)
	}

	if _, ok := caller.find(ix.Program); !ok {
		return errors.Wrapf(solana.InstructionErrorMissingAccount, "program %s", base58.Encode(ix.Program))
	}
	program, ok := c.registry.Get(ix.Program)
	if !ok {
		return errors.Wrapf(solana.InstructionErrorUnsupportedProgramID, "program %s", base58.Encode(ix.Program))
	}

	callee := make([]*AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		info, ok := caller.find(meta.PublicKey)
		if !ok {
			return errors.Wrapf(solana.InstructionErrorMissingAccount, "account %s", base58.Encode(meta.PublicKey))
		}

		if meta.IsWritable && !info.IsWritable {
			return errors.Wrapf(solana.InstructionErrorPrivilegeEscalation, "account %s is not writable", base58.Encode(meta.PublicKey))
		}
		if meta.IsSigner && !info.IsSigner && !containsKey(pdaSigners, meta.PublicKey) {
			return errors.Wrapf(solana.InstructionErrorPrivilegeEscalation, "account %s did not sign", base58.Encode(meta.PublicKey))
		}

		callee[i] = &AccountInfo{
			Account:    info.Account,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		}
	}

	// Changes made by the caller so far are checked against the caller, and
	// changes made by the callee are then accepted as the caller's baseline.
	if err := caller.verify(); err != nil {
		return err
	}
	caller.refresh()

	if err := c.process(ix.Program, program, callee, ix.Data); err != nil {
		return err
	}
	caller.refresh()
	return nil
}

func (c *InvokeContext) processInstruction(ix solana.Instruction) error {
	program, ok := c.registry.Get(ix.Program)
	if !ok {
		return errors.Wrapf(solana.InstructionErrorUnsupportedProgramID, "program %s", base58.Encode(ix.Program))
	}

	return c.process(ix.Program, program, c.state.infos(ix.Accounts), ix.Data)
}

func (c *InvokeContext) process(programID ed25519.PublicKey, program Program, accounts []*AccountInfo, data []byte) (err error) {
	if len(c.stack) >= c.maxDepth {
		return solana.InstructionErrorCallDepth
	}
	// Direct self recursion is the only reentrancy permitted
	if len(c.stack) > 0 && !bytes.Equal(c.current().program, programID) {
		for _, f := range c.stack {
			if bytes.Equal(f.program, programID) {
				return solana.InstructionErrorReentrancyNotAllowed
			}
		}
	}

	c.stack = append(c.stack, newFrame(programID, accounts))
	defer func() {
		c.stack = c.stack[:len(c.stack)-1]
	}()

	id := base58.Encode(programID)
	c.log.WithFields(logrus.Fields{
		"program": id,
		"depth":   len(c.stack),
	}).Debug("invoking program")
	c.state.logs = append(c.state.logs, fmt.Sprintf("Program %s invoke [%d]", id, len(c.stack)))

	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(solana.InstructionErrorProgramFailedToComplete, "panic: %v", r)
		}
		if err != nil {
			c.state.logs = append(c.state.logs, fmt.Sprintf("Program %s failed: %v", id, err))
		}
	}()

	if err := program.Process(c, accounts, data); err != nil {
		return err
	}
	if c.state.failed != nil {
		return c.state.failed
	}
	if err := c.current().verify(); err != nil {
		return err
	}

	c.state.logs = append(c.state.logs, fmt.Sprintf("Program %s success", id))
	return nil
}

func (c *InvokeContext) current() *frame {
	return c.stack[len(c.stack)-1]
}
