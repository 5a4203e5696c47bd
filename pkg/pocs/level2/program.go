// Package level2 is a wallet program that keeps its wallets rent exempt.
//
// Withdraw checks the amount against the wallet balance with unchecked
// arithmetic. A huge amount wraps the check and the transfer, which turns a
// withdrawal from one wallet into a deposit taken from another.
package level2

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/borsh"
	"github.com/code-payments/poc-ledger/pkg/solana/system"
)

// ProgramKeyIndex is the keypair index the program is deployed at.
const ProgramKeyIndex = 1_002

var ProgramKey = solana.KeypairFromIndex(ProgramKeyIndex).Public().(ed25519.PublicKey)

const WalletSize = 32

type Wallet struct {
	Authority solana.PublicKey
}

const (
	commandInitialize uint8 = iota
	commandDeposit
	commandWithdraw
)

type amountArgs struct {
	Amount uint64
}

// WalletAddress derives the wallet of authority.
func WalletAddress(program, authority ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(program, authority)
}

func Initialize(program, wallet, authority ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandInitialize, nil),
		solana.NewAccountMeta(wallet, false),
		solana.NewAccountMeta(authority, true),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)
}

func Deposit(program, wallet, source ed25519.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandDeposit, amountArgs{Amount: amount}),
		solana.NewAccountMeta(wallet, false),
		solana.NewAccountMeta(source, true),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)
}

func Withdraw(program, wallet, authority, destination ed25519.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandWithdraw, amountArgs{Amount: amount}),
		solana.NewAccountMeta(wallet, false),
		solana.NewAccountMeta(authority, true),
		solana.NewAccountMeta(destination, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)
}

// NegativeWithdraw builds a withdrawal of -amount, as a client encoding the
// amount as a signed integer would.
func NegativeWithdraw(program, wallet, authority, destination ed25519.PublicKey, amount uint64) solana.Instruction {
	return Withdraw(program, wallet, authority, destination, uint64(-int64(amount)))
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
	rentInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	walletAddress, bump, err := WalletAddress(ctx.ProgramID(), authorityInfo.Address)
	if err != nil {
		return err
	}
	if !bytes.Equal(walletInfo.Address, walletAddress) {
		return solana.InstructionErrorInvalidSeeds
	}
	if len(walletInfo.Data) != 0 {
		return solana.InstructionErrorAccountAlreadyInitialized
	}

	rent, err := ledger.RentFromSysvar(rentInfo)
	if err != nil {
		return err
	}

	err = ctx.InvokeSigned(
		system.CreateAccount(authorityInfo.Address, walletInfo.Address, ctx.ProgramID(), rent.MinimumBalance(WalletSize), WalletSize),
		[][]byte{authorityInfo.Address, {bump}},
	)
	if err != nil {
		return err
	}

	copy(walletInfo.Data, borsh.MustMarshal(Wallet{Authority: solana.MustPublicKey(authorityInfo.Address)}))
	return nil
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

	if !walletInfo.IsOwnedBy(ctx.ProgramID()) {
		return solana.InstructionErrorIncorrectProgramID
	}

	return ctx.Invoke(system.Transfer(sourceInfo.Address, walletInfo.Address, amount))
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
	destinationInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	rentInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	if !walletInfo.IsOwnedBy(ctx.ProgramID()) {
		return solana.InstructionErrorIncorrectProgramID
	}
	if !authorityInfo.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}

	var wallet Wallet
	if err := borsh.Unmarshal(walletInfo.Data, &wallet); err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidAccountData, err.Error())
	}
	if !wallet.Authority.Equals(authorityInfo.Address) {
		return solana.InstructionErrorInvalidArgument
	}

	rent, err := ledger.RentFromSysvar(rentInfo)
	if err != nil {
		return err
	}

	// Unchecked: both the comparison and the transfer wrap
	if rent.MinimumBalance(len(walletInfo.Data))+amount > walletInfo.Lamports {
		return solana.InstructionErrorInsufficientFunds
	}

	walletInfo.Lamports -= amount
	destinationInfo.Lamports += amount
	return nil
}
