package token

import (
	"math"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/token"
)

type processor struct{}

// New returns a token program supporting mints, token accounts, minting and
// transfers. It has no delegates, multisig owners, freezing or native
// accounts.
func New() ledger.Program {
	return &processor{}
}

// Process implements ledger.Program.Process
func (p *processor) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	cmd, err := token.GetCommand(data)
	if err != nil {
		return token.ErrorInvalidInstruction
	}

	switch cmd {
	case token.CommandInitializeMint:
		ctx.Log("Instruction: InitializeMint")
		return p.initializeMint(ctx, accounts, data)
	case token.CommandInitializeAccount:
		ctx.Log("Instruction: InitializeAccount")
		return p.initializeAccount(ctx, accounts)
	case token.CommandTransfer:
		ctx.Log("Instruction: Transfer")
		amount, err := token.DecompileAmount(token.CommandTransfer, data)
		if err != nil {
			return token.ErrorInvalidInstruction
		}
		return p.transfer(ctx, accounts, amount, nil)
	case token.CommandTransferChecked:
		ctx.Log("Instruction: TransferChecked")
		amount, decimals, err := token.DecompileTransferChecked(data)
		if err != nil {
			return token.ErrorInvalidInstruction
		}
		return p.transfer(ctx, accounts, amount, &decimals)
	case token.CommandMintTo:
		ctx.Log("Instruction: MintTo")
		amount, err := token.DecompileAmount(token.CommandMintTo, data)
		if err != nil {
			return token.ErrorInvalidInstruction
		}
		return p.mintTo(ctx, accounts, amount)
	default:
		return token.ErrorInvalidInstruction
	}
}

func (p *processor) initializeMint(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	args, err := token.DecompileInitializeMint(data)
	if err != nil {
		return token.ErrorInvalidInstruction
	}

	mintInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	if err := checkOwner(ctx, mintInfo); err != nil {
		return err
	}
	if len(mintInfo.Data) != token.MintSize {
		return solana.InstructionErrorInvalidAccountData
	}

	var mint token.Mint
	if err := mint.Unmarshal(mintInfo.Data); err != nil {
		return solana.InstructionErrorInvalidAccountData
	}
	if mint.IsInitialized {
		return token.ErrorAlreadyInUse
	}
	if !ctx.Rent().IsExempt(mintInfo.Lamports, len(mintInfo.Data)) {
		return token.ErrorNotRentExempt
	}

	mint = token.Mint{
		MintAuthority:   args.MintAuthority,
		Decimals:        args.Decimals,
		IsInitialized:   true,
		FreezeAuthority: args.FreezeAuthority,
	}
	copy(mintInfo.Data, mint.Marshal())
	return nil
}

func (p *processor) initializeAccount(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo) error {
	accountInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	mintInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	ownerInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	if err := checkOwner(ctx, accountInfo); err != nil {
		return err
	}
	if len(accountInfo.Data) != token.AccountSize {
		return solana.InstructionErrorInvalidAccountData
	}

	var account token.Account
	if err := account.Unmarshal(accountInfo.Data); err != nil {
		return solana.InstructionErrorInvalidAccountData
	}
	if account.State != token.AccountStateUninitialized {
		return token.ErrorAlreadyInUse
	}
	if !ctx.Rent().IsExempt(accountInfo.Lamports, len(accountInfo.Data)) {
		return token.ErrorNotRentExempt
	}

	if _, err := loadMint(ctx, mintInfo); err != nil {
		return token.ErrorInvalidMint
	}

	account = token.Account{
		Mint:  solana.MustPublicKey(mintInfo.Address),
		Owner: solana.MustPublicKey(ownerInfo.Address),
		State: token.AccountStateInitialized,
	}
	copy(accountInfo.Data, account.Marshal())
	return nil
}

// transfer moves tokens between two accounts of the same mint. When decimals
// is set, the mint is the second account and must match.
func (p *processor) transfer(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64, decimals *byte) error {
	sourceInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	var mintInfo *ledger.AccountInfo
	if decimals != nil {
		if mintInfo, err = ledger.NextAccount(&accounts); err != nil {
			return err
		}
	}

	destInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	authorityInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	source, err := loadAccount(ctx, sourceInfo)
	if err != nil {
		return err
	}
	dest, err := loadAccount(ctx, destInfo)
	if err != nil {
		return err
	}

	if source.State == token.AccountStateFrozen || dest.State == token.AccountStateFrozen {
		return token.ErrorAccountFrozen
	}
	if source.Amount < amount {
		return token.ErrorInsufficientFunds
	}
	if source.Mint != dest.Mint {
		return token.ErrorMintMismatch
	}

	if mintInfo != nil {
		if !source.Mint.Equals(mintInfo.Address) {
			return token.ErrorMintMismatch
		}

		mint, err := loadMint(ctx, mintInfo)
		if err != nil {
			return err
		}
		if mint.Decimals != *decimals {
			return token.ErrorMintDecimalsMismatch
		}
	}

	if err := checkAuthority(source.Owner, authorityInfo); err != nil {
		return err
	}

	ctx.Log(
		"Transfer %d from %s to %s",
		amount,
		base58.Encode(sourceInfo.Address),
		base58.Encode(destInfo.Address),
	)

	// Self transfers only validate.
	if sourceInfo.Account == destInfo.Account {
		return nil
	}

	source.Amount -= amount
	if dest.Amount > math.MaxUint64-amount {
		return token.ErrorOverflow
	}
	dest.Amount += amount

	copy(sourceInfo.Data, source.Marshal())
	copy(destInfo.Data, dest.Marshal())
	return nil
}

func (p *processor) mintTo(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, amount uint64) error {
	mintInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	destInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	authorityInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	dest, err := loadAccount(ctx, destInfo)
	if err != nil {
		return err
	}
	if dest.State == token.AccountStateFrozen {
		return token.ErrorAccountFrozen
	}
	if !dest.Mint.Equals(mintInfo.Address) {
		return token.ErrorMintMismatch
	}

	mint, err := loadMint(ctx, mintInfo)
	if err != nil {
		return err
	}
	if mint.MintAuthority.IsZero() {
		return token.ErrorFixedSupply
	}
	if err := checkAuthority(mint.MintAuthority, authorityInfo); err != nil {
		return err
	}

	if mint.Supply > math.MaxUint64-amount || dest.Amount > math.MaxUint64-amount {
		return token.ErrorOverflow
	}
	mint.Supply += amount
	dest.Amount += amount

	copy(mintInfo.Data, mint.Marshal())
	copy(destInfo.Data, dest.Marshal())
	return nil
}

func checkOwner(ctx *ledger.InvokeContext, info *ledger.AccountInfo) error {
	if !info.IsOwnedBy(ctx.ProgramID()) {
		return errors.Wrapf(solana.InstructionErrorIncorrectProgramID, "account %s", base58.Encode(info.Address))
	}
	return nil
}

func checkAuthority(expected solana.PublicKey, authority *ledger.AccountInfo) error {
	if !expected.Equals(authority.Address) {
		return token.ErrorOwnerMismatch
	}
	if !authority.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}
	return nil
}

func loadAccount(ctx *ledger.InvokeContext, info *ledger.AccountInfo) (*token.Account, error) {
	if err := checkOwner(ctx, info); err != nil {
		return nil, err
	}

	var account token.Account
	if err := account.Unmarshal(info.Data); err != nil {
		return nil, solana.InstructionErrorInvalidAccountData
	}
	if account.State == token.AccountStateUninitialized {
		return nil, token.ErrorUninitializedState
	}
	return &account, nil
}

func loadMint(ctx *ledger.InvokeContext, info *ledger.AccountInfo) (*token.Mint, error) {
	if err := checkOwner(ctx, info); err != nil {
		return nil, err
	}

	var mint token.Mint
	if err := mint.Unmarshal(info.Data); err != nil {
		return nil, solana.InstructionErrorInvalidAccountData
	}
	if !mint.IsInitialized {
		return nil, token.ErrorUninitializedState
	}
	return &mint, nil
}
