// Package level4 is a token wallet program. Each wallet is a token account
// owned by a single program derived authority, which signs withdrawals.
//
// Withdraw invokes whatever token program it is handed, signing with the
// shared authority. A program that swaps the source and destination of the
// transfer before forwarding it to the real token program moves tokens out of
// any wallet.
package level4

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/borsh"
	"github.com/code-payments/poc-ledger/pkg/solana/system"
	"github.com/code-payments/poc-ledger/pkg/solana/token"
)

// ProgramKeyIndex is the keypair index the program is deployed at.
const ProgramKeyIndex = 1_004

var ProgramKey = solana.KeypairFromIndex(ProgramKeyIndex).Public().(ed25519.PublicKey)

const (
	commandInitialize uint8 = iota
	commandDeposit
	commandWithdraw
)

type amountArgs struct {
	Amount uint64
}

// WalletAddress derives the token wallet of owner.
func WalletAddress(program, owner ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(program, owner)
}

// AuthorityAddress derives the authority that owns every wallet.
func AuthorityAddress(program ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(program)
}

func Initialize(program, wallet, authority, owner, mint ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandInitialize, nil),
		solana.NewAccountMeta(wallet, false),
		solana.NewReadonlyAccountMeta(authority, false),
		solana.NewAccountMeta(owner, true),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)
}

func Deposit(program, wallet, source, sourceAuthority, mint ed25519.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandDeposit, amountArgs{Amount: amount}),
		solana.NewAccountMeta(wallet, false),
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(sourceAuthority, true),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
	)
}

// Withdraw moves amount out of the wallet of owner. The mint and token
// program are taken from the caller.
func Withdraw(program, wallet, authority, owner, destination, mint, tokenProgram ed25519.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandWithdraw, amountArgs{Amount: amount}),
		solana.NewAccountMeta(wallet, false),
		solana.NewReadonlyAccountMeta(authority, false),
		solana.NewReadonlyAccountMeta(owner, true),
		solana.NewAccountMeta(destination, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(tokenProgram, false),
	)
}

type processor struct{}

func New() ledger.Program {
	return &processor{}
}

// Process implements ledger.Program.Process
func (p *processor) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	tag, payload, err := borsh.DecodeEnumTag(data)
	if err != nil {
		return solana.InstructionErrorInvalidInstructionData
	}

	var args amountArgs
	if tag != commandInitialize {
		if err := borsh.Unmarshal(payload, &args); err != nil {
			return solana.InstructionErrorInvalidInstructionData
		}
	}

	switch tag {
	case commandInitialize:
		ctx.Log("init")
		return p.initialize(ctx, accounts)
	case commandDeposit:
		ctx.Log("deposit %d", args.Amount)
		return p.deposit(ctx, accounts, args.Amount)
	case commandWithdraw:
		ctx.Log("withdraw %d", args.Amount)
		return p.withdraw(ctx, accounts, args.Amount)
	default:
		return solana.InstructionErrorInvalidInstructionData
	}
}

func (p *processor) initialize(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo) error {
	walletInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	authorityInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	ownerInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	mintInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	rentInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	tokenProgramInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	walletAddress, walletBump, err := WalletAddress(ctx.ProgramID(), ownerInfo.Address)
	if err != nil {
		return err
	}
	authorityAddress, _, err := AuthorityAddress(ctx.ProgramID())
	if err != nil {
		return err
	}
	if !bytes.Equal(walletInfo.Address, walletAddress) || !bytes.Equal(authorityInfo.Address, authorityAddress) {
		return solana.InstructionErrorInvalidSeeds
	}
	if !ownerInfo.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}

	rent, err := ledger.RentFromSysvar(rentInfo)
	if err != nil {
		return err
	}

	err = ctx.InvokeSigned(
		system.CreateAccount(ownerInfo.Address, walletAddress, tokenProgramInfo.Address, rent.MinimumBalance(token.AccountSize), token.AccountSize),
		[][]byte{ownerInfo.Address, {walletBump}},
	)
	if err != nil {
		return err
	}

	initialize := token.InitializeAccount(walletAddress, mintInfo.Address, authorityAddress)
	initialize.Program = tokenProgramInfo.Address
	return ctx.Invoke(initialize)
}

func (p *processor) deposit(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	walletInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	sourceInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	sourceAuthorityInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	mintInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	tokenProgramInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	transfer := token.TransferChecked(
		sourceInfo.Address,
		mintInfo.Address,
		walletInfo.Address,
		sourceAuthorityInfo.Address,
		amount,
		mintDecimals(mintInfo),
	)
	transfer.Program = tokenProgramInfo.Address
	return ctx.Invoke(transfer)
}

func (p *processor) withdraw(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	walletInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	authorityInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	ownerInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	destinationInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	mintInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	tokenProgramInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	walletAddress, _, err := WalletAddress(ctx.ProgramID(), ownerInfo.Address)
	if err != nil {
		return err
	}
	authorityAddress, authorityBump, err := AuthorityAddress(ctx.ProgramID())
	if err != nil {
		return err
	}
	if !bytes.Equal(walletInfo.Address, walletAddress) || !bytes.Equal(authorityInfo.Address, authorityAddress) {
		return solana.InstructionErrorInvalidSeeds
	}
	if !ownerInfo.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}

	// The token program is never checked against the real one
	transfer := token.TransferChecked(
		walletInfo.Address,
		mintInfo.Address,
		destinationInfo.Address,
		authorityInfo.Address,
		amount,
		mintDecimals(mintInfo),
	)
	transfer.Program = tokenProgramInfo.Address
	return ctx.InvokeSigned(transfer, [][]byte{{authorityBump}})
}

// mintDecimals reads the decimals byte of a mint, or zero if the account is
// too short to be one.
func mintDecimals(mint *ledger.AccountInfo) byte {
	if len(mint.Data) <= token.DecimalsOffset {
		return 0
	}
	return mint.Data[token.DecimalsOffset]
}
