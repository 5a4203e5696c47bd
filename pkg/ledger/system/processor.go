package system

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/system"
)

type processor struct{}

// New returns the system program, which creates accounts, assigns their
// owners and moves lamports between system owned accounts.
func New() ledger.Program {
	return &processor{}
}

// Process implements ledger.Program.Process
func (p *processor) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	cmd, err := system.GetCommand(data)
	if err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
	}

	switch cmd {
	case system.CommandCreateAccount:
		return p.createAccount(ctx, accounts, data)
	case system.CommandAssign:
		return p.assign(ctx, accounts, data)
	case system.CommandTransfer:
		return p.transfer(ctx, accounts, data)
	case system.CommandAllocate:
		return p.allocate(ctx, accounts, data)
	default:
		return errors.Wrapf(solana.InstructionErrorInvalidInstructionData, "unsupported command: %d", cmd)
	}
}

func (p *processor) createAccount(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	args, err := system.DecompileCreateAccount(data)
	if err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
	}

	funder, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	account, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	if account.Lamports > 0 {
		ctx.Log("Create Account: account %s already in use", base58.Encode(account.Address))
		return system.ErrorAccountAlreadyInUse
	}

	if err := allocate(ctx, account, args.Size); err != nil {
		return err
	}
	if err := assign(ctx, account, args.Owner); err != nil {
		return err
	}
	return transfer(ctx, funder, account, args.Lamports)
}

func (p *processor) assign(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	owner, err := system.DecompileAssign(data)
	if err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
	}

	account, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	return assign(ctx, account, owner)
}

func (p *processor) transfer(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	lamports, err := system.DecompileTransfer(data)
	if err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
	}

	from, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	to, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	return transfer(ctx, from, to, lamports)
}

func (p *processor) allocate(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	size, err := system.DecompileAllocate(data)
	if err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
	}

	account, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	return allocate(ctx, account, size)
}

func allocate(ctx *ledger.InvokeContext, account *ledger.AccountInfo, size uint64) error {
	if !account.IsSigner {
		ctx.Log("Allocate: 'to' account %s must sign", base58.Encode(account.Address))
		return solana.InstructionErrorMissingRequiredSignature
	}

	if len(account.Data) > 0 || !account.IsOwnedBy(system.ProgramKey) {
		ctx.Log("Allocate: account %s already in use", base58.Encode(account.Address))
		return system.ErrorAccountAlreadyInUse
	}

	if size > system.MaxPermittedDataLength {
		ctx.Log("Allocate: requested %d, max allowed %d", size, system.MaxPermittedDataLength)
		return system.ErrorInvalidAccountDataLength
	}

	account.Data = make([]byte, size)
	return nil
}

func assign(ctx *ledger.InvokeContext, account *ledger.AccountInfo, owner ed25519.PublicKey) error {
	if bytes.Equal(account.Owner, owner) {
		return nil
	}

	if !account.IsSigner {
		ctx.Log("Assign: account %s must sign", base58.Encode(account.Address))
		return solana.InstructionErrorMissingRequiredSignature
	}

	account.Owner = append(ed25519.PublicKey(nil), owner...)
	return nil
}

func transfer(ctx *ledger.InvokeContext, from, to *ledger.AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		ctx.Log("Transfer: `from` account %s must sign", base58.Encode(from.Address))
		return solana.InstructionErrorMissingRequiredSignature
	}

	if len(from.Data) > 0 {
		ctx.Log("Transfer: `from` must not carry data")
		return solana.InstructionErrorInvalidArgument
	}

	if lamports > from.Lamports {
		ctx.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return system.ErrorResultWithNegativeLamports
	}

	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}
