// Package level0 is a wallet program that keeps deposits in a vault account.
//
// Withdraw trusts the wallet record it is handed without checking that the
// program owns it, so anyone can write a wallet naming themselves as the
// authority of someone else's vault.
package level0

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
const ProgramKeyIndex = 1_000

var ProgramKey = solana.KeypairFromIndex(ProgramKeyIndex).Public().(ed25519.PublicKey)

// WalletSize is the size of an encoded Wallet.
const WalletSize = 32 + 32

var vaultSeed = []byte("VAULT")

type Wallet struct {
	Authority solana.PublicKey
	Vault     solana.PublicKey
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

// VaultAddress derives the vault holding the deposits of authority.
func VaultAddress(program, authority ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(program, authority, vaultSeed)
}

func Initialize(program, wallet, vault, authority ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandInitialize, nil),
		solana.NewAccountMeta(wallet, false),
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(authority, true),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)
}

func Deposit(program, wallet, vault, source ed25519.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandDeposit, amountArgs{Amount: amount}),
		solana.NewAccountMeta(wallet, false),
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(source, true),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)
}

func Withdraw(program, wallet, vault, authority, destination ed25519.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandWithdraw, amountArgs{Amount: amount}),
		solana.NewAccountMeta(wallet, false),
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(authority, true),
		solana.NewAccountMeta(destination, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
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

	switch tag {
	case commandInitialize:
		ctx.Log("init")
		return p.initialize(ctx, accounts)
	case commandDeposit:
		var args amountArgs
		if err := borsh.Unmarshal(payload, &args); err != nil {
			return solana.InstructionErrorInvalidInstructionData
		}
		ctx.Log("deposit %d", args.Amount)
		return p.deposit(ctx, accounts, args.Amount)
	case commandWithdraw:
		var args amountArgs
		if err := borsh.Unmarshal(payload, &args); err != nil {
			return solana.InstructionErrorInvalidInstructionData
		}
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
	vaultInfo, err := ledger.NextAccount(&accounts)
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

	walletAddress, walletBump, err := WalletAddress(ctx.ProgramID(), authorityInfo.Address)
	if err != nil {
		return err
	}
	vaultAddress, vaultBump, err := VaultAddress(ctx.ProgramID(), authorityInfo.Address)
	if err != nil {
		return err
	}
	if !bytes.Equal(walletInfo.Address, walletAddress) || !bytes.Equal(vaultInfo.Address, vaultAddress) {
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
		[][]byte{authorityInfo.Address, {walletBump}},
	)
	if err != nil {
		return err
	}

	err = ctx.InvokeSigned(
		system.CreateAccount(authorityInfo.Address, vaultInfo.Address, ctx.ProgramID(), rent.MinimumBalance(0), 0),
		[][]byte{authorityInfo.Address, vaultSeed, {vaultBump}},
	)
	if err != nil {
		return err
	}

	wallet := Wallet{
		Authority: solana.MustPublicKey(authorityInfo.Address),
		Vault:     solana.MustPublicKey(vaultInfo.Address),
	}
	copy(walletInfo.Data, borsh.MustMarshal(wallet))
	return nil
}

func (p *processor) deposit(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	walletInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	vaultInfo, err := ledger.NextAccount(&accounts)
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

	var wallet Wallet
	if err := borsh.Unmarshal(walletInfo.Data, &wallet); err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidAccountData, err.Error())
	}
	if !wallet.Vault.Equals(vaultInfo.Address) {
		return solana.InstructionErrorInvalidArgument
	}

	return ctx.Invoke(system.Transfer(sourceInfo.Address, vaultInfo.Address, amount))
}

func (p *processor) withdraw(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	walletInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	vaultInfo, err := ledger.NextAccount(&accounts)
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

	var wallet Wallet
	if err := borsh.Unmarshal(walletInfo.Data, &wallet); err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidAccountData, err.Error())
	}

	if !authorityInfo.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}
	if !wallet.Authority.Equals(authorityInfo.Address) || !wallet.Vault.Equals(vaultInfo.Address) {
		return solana.InstructionErrorInvalidArgument
	}
	if amount > vaultInfo.Lamports {
		return solana.InstructionErrorInsufficientFunds
	}

	vaultInfo.Lamports -= amount
	destinationInfo.Lamports += amount
	return nil
}
