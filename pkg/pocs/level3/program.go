// Package level3 is a tipping program. Tips are pooled into a vault, and each
// pool records the authority allowed to withdraw what it collected.
//
// Vaults and pools are both program owned, and withdraw decodes the pool
// without checking its type or length. A vault whose fee and fee recipient
// are chosen carefully reads as a pool with a huge value for the victim's
// vault.
package level3

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
const ProgramKeyIndex = 1_003

var ProgramKey = solana.KeypairFromIndex(ProgramKeyIndex).Public().(ed25519.PublicKey)

const (
	TipPoolSize = 32 + 8 + 32
	VaultSize   = 32 + 8 + 32 + 1
)

type TipPool struct {
	WithdrawAuthority solana.PublicKey
	Value             uint64
	Vault             solana.PublicKey
}

type Vault struct {
	Creator      solana.PublicKey
	Fee          float64
	FeeRecipient solana.PublicKey
	Seed         uint8
}

const (
	commandInitialize uint8 = iota
	commandCreatePool
	commandTip
	commandWithdraw
)

type initializeArgs struct {
	Seed         uint8
	Fee          float64
	FeeRecipient solana.PublicKey
}

type amountArgs struct {
	Amount uint64
}

// VaultAddress returns the vault for seed, which fails for seeds that land on
// the curve.
func VaultAddress(program ed25519.PublicKey, seed uint8) (ed25519.PublicKey, error) {
	return solana.CreateProgramAddress(program, []byte{seed})
}

// FindVaultSeed returns the first seed, starting at from, with a valid vault
// address.
func FindVaultSeed(program ed25519.PublicKey, from uint8) (uint8, ed25519.PublicKey, error) {
	for seed := int(from); seed <= 255; seed++ {
		address, err := VaultAddress(program, uint8(seed))
		if err == nil {
			return uint8(seed), address, nil
		}
	}
	return 0, nil, errors.Errorf("no valid vault seed from %d", from)
}

func Initialize(program, vault, initializer ed25519.PublicKey, seed uint8, fee float64, feeRecipient ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandInitialize, initializeArgs{
			Seed:         seed,
			Fee:          fee,
			FeeRecipient: solana.MustPublicKey(feeRecipient),
		}),
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(initializer, true),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)
}

func CreatePool(program, vault, withdrawAuthority, pool ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandCreatePool, nil),
		solana.NewAccountMeta(vault, false),
		solana.NewReadonlyAccountMeta(withdrawAuthority, true),
		solana.NewAccountMeta(pool, false),
	)
}

func Tip(program, vault, pool, source ed25519.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandTip, amountArgs{Amount: amount}),
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(pool, false),
		solana.NewAccountMeta(source, true),
		solana.NewReadonlyAccountMeta(system.ProgramKey, false),
	)
}

func Withdraw(program, vault, pool, withdrawAuthority ed25519.PublicKey, amount uint64) solana.Instruction {
	return solana.NewInstruction(
		program,
		borsh.MustEncodeEnum(commandWithdraw, amountArgs{Amount: amount}),
		solana.NewAccountMeta(vault, false),
		solana.NewAccountMeta(pool, false),
		solana.NewAccountMeta(withdrawAuthority, true),
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
		var args initializeArgs
		if err := borsh.Unmarshal(payload, &args); err != nil {
			return solana.InstructionErrorInvalidInstructionData
		}
		ctx.Log("init seed=%d fee=%f", args.Seed, args.Fee)
		return p.initialize(ctx, accounts, args)
	case commandCreatePool:
		ctx.Log("create pool")
		return p.createPool(ctx, accounts)
	case commandTip:
		var args amountArgs
		if err := borsh.Unmarshal(payload, &args); err != nil {
			return solana.InstructionErrorInvalidInstructionData
		}
		ctx.Log("tip %d", args.Amount)
		return p.tip(ctx, accounts, args.Amount)
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

func (p *processor) initialize(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, args initializeArgs) error {
	vaultInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	initializerInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	rentInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	vaultAddress, err := VaultAddress(ctx.ProgramID(), args.Seed)
	if err != nil {
		return solana.InstructionErrorInvalidSeeds
	}
	if !bytes.Equal(vaultInfo.Address, vaultAddress) {
		return solana.InstructionErrorInvalidSeeds
	}
	if !initializerInfo.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}
	if len(vaultInfo.Data) != 0 {
		return solana.InstructionErrorAccountAlreadyInitialized
	}

	rent, err := ledger.RentFromSysvar(rentInfo)
	if err != nil {
		return err
	}

	err = ctx.InvokeSigned(
		system.CreateAccount(initializerInfo.Address, vaultInfo.Address, ctx.ProgramID(), rent.MinimumBalance(VaultSize), VaultSize),
		[][]byte{{args.Seed}},
	)
	if err != nil {
		return err
	}

	copy(vaultInfo.Data, borsh.MustMarshal(Vault{
		Creator:      solana.MustPublicKey(initializerInfo.Address),
		Fee:          args.Fee,
		FeeRecipient: args.FeeRecipient,
		Seed:         args.Seed,
	}))
	return nil
}

func (p *processor) createPool(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo) error {
	vaultInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	withdrawAuthorityInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	poolInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	if !vaultInfo.IsOwnedBy(ctx.ProgramID()) || !poolInfo.IsOwnedBy(ctx.ProgramID()) {
		return solana.InstructionErrorIncorrectProgramID
	}
	if !withdrawAuthorityInfo.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}
	if len(poolInfo.Data) < TipPoolSize {
		return solana.InstructionErrorAccountDataTooSmall
	}
	for _, b := range poolInfo.Data {
		if b != 0 {
			return solana.InstructionErrorAccountAlreadyInitialized
		}
	}

	copy(poolInfo.Data, borsh.MustMarshal(TipPool{
		WithdrawAuthority: solana.MustPublicKey(withdrawAuthorityInfo.Address),
		Value:             0,
		Vault:             solana.MustPublicKey(vaultInfo.Address),
	}))
	return nil
}

func (p *processor) tip(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	vaultInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	poolInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	sourceInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	if !vaultInfo.IsOwnedBy(ctx.ProgramID()) || !poolInfo.IsOwnedBy(ctx.ProgramID()) {
		return solana.InstructionErrorIncorrectProgramID
	}

	var pool TipPool
	if _, err := borsh.UnmarshalPrefix(poolInfo.Data, &pool); err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidAccountData, err.Error())
	}
	if !pool.Vault.Equals(vaultInfo.Address) {
		return solana.InstructionErrorInvalidArgument
	}

	pool.Value += amount
	copy(poolInfo.Data, borsh.MustMarshal(pool))

	return ctx.Invoke(system.Transfer(sourceInfo.Address, vaultInfo.Address, amount))
}

func (p *processor) withdraw(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	vaultInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	poolInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	withdrawAuthorityInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	if !vaultInfo.IsOwnedBy(ctx.ProgramID()) || !poolInfo.IsOwnedBy(ctx.ProgramID()) {
		return solana.InstructionErrorIncorrectProgramID
	}
	if !withdrawAuthorityInfo.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}

	// Any program owned account that is long enough decodes as a pool
	var pool TipPool
	if _, err := borsh.UnmarshalPrefix(poolInfo.Data, &pool); err != nil {
		return errors.Wrap(solana.InstructionErrorInvalidAccountData, err.Error())
	}
	if !pool.Vault.Equals(vaultInfo.Address) {
		return solana.InstructionErrorInvalidArgument
	}
	if !pool.WithdrawAuthority.Equals(withdrawAuthorityInfo.Address) {
		return solana.InstructionErrorInvalidArgument
	}
	if amount > pool.Value {
		return solana.InstructionErrorInsufficientFunds
	}
	if amount > vaultInfo.Lamports {
		return solana.InstructionErrorInsufficientFunds
	}

	pool.Value -= amount
	copy(poolInfo.Data, borsh.MustMarshal(pool))

	vaultInfo.Lamports -= amount
	withdrawAuthorityInfo.Lamports += amount
	return nil
}
