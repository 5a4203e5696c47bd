// Package pocs holds what the exploit scenarios under pkg/pocs/levelN share:
// the report they produce and the recorder that builds it.
package pocs

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/ledger/localenv"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/token"
)

// Report describes a single exploit run.
type Report struct {
	Level       int
	Name        string
	Description string
	Program     ed25519.PublicKey

	Steps    []Step
	Balances []Balance

	// Exploited is set when every victim balance decreased and every
	// attacker balance increased.
	Exploited bool
}

// Step is one transaction executed by the scenario.
type Step struct {
	Name        string
	Signature   solana.Signature
	LogMessages []string
}

type Role int

const (
	RoleVictim Role = iota
	RoleAttacker
)

func (r Role) String() string {
	switch r {
	case RoleVictim:
		return "victim"
	case RoleAttacker:
		return "attacker"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

type Unit string

const (
	UnitLamports Unit = "lamports"
	UnitTokens   Unit = "tokens"
)

// Balance is a tracked account before and after the exploit.
type Balance struct {
	Label   string
	Address ed25519.PublicKey
	Role    Role
	Unit    Unit
	Before  uint64
	After   uint64
}

// Delta is the signed change in balance.
func (b Balance) Delta() int64 {
	return int64(b.After - b.Before)
}

func (b Balance) String() string {
	return fmt.Sprintf("%s (%s) %s: %d -> %d %s", b.Label, b.Role, base58.Encode(b.Address), b.Before, b.After, b.Unit)
}

// Recorder executes scenario steps against an environment and collects the
// report.
type Recorder struct {
	log    *logrus.Entry
	env    *localenv.Environment
	report *Report
}

func NewRecorder(env *localenv.Environment, level int, name, description string, program ed25519.PublicKey) *Recorder {
	return &Recorder{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type":  "pocs/recorder",
			"level": level,
		}),
		env: env,
		report: &Report{
			Level:       level,
			Name:        name,
			Description: description,
			Program:     program,
		},
	}
}

// Execute runs instructions as a single transaction. The first signer pays.
func (r *Recorder) Execute(ctx context.Context, step string, instructions []solana.Instruction, signers ...ed25519.PrivateKey) error {
	log := r.log.WithField("step", step)

	result, err := r.env.ExecuteAsTransaction(ctx, instructions, signers...)
	if result != nil {
		r.report.Steps = append(r.report.Steps, Step{
			Name:        step,
			Signature:   result.Signature,
			LogMessages: result.LogMessages,
		})
	}
	if err != nil {
		log.WithError(err).Warn("step failed")
		return errors.Wrapf(err, "step %q failed", step)
	}

	log.Debug("step executed")
	return nil
}

// Track records the lamports held at address as it is before the exploit.
func (r *Recorder) Track(ctx context.Context, label string, address ed25519.PublicKey, role Role) error {
	return r.track(ctx, label, address, role, UnitLamports)
}

// TrackTokens records the amount held by the token account at address.
func (r *Recorder) TrackTokens(ctx context.Context, label string, address ed25519.PublicKey, role Role) error {
	return r.track(ctx, label, address, role, UnitTokens)
}

func (r *Recorder) track(ctx context.Context, label string, address ed25519.PublicKey, role Role, unit Unit) error {
	before, err := r.balance(ctx, address, unit)
	if err != nil {
		return errors.Wrapf(err, "failed to track %s", label)
	}

	r.report.Balances = append(r.report.Balances, Balance{
		Label:   label,
		Address: address,
		Role:    role,
		Unit:    unit,
		Before:  before,
	})
	return nil
}

// Finish reads the final value of every tracked balance and returns the
// report.
func (r *Recorder) Finish(ctx context.Context) (*Report, error) {
	exploited := len(r.report.Balances) > 0
	for i := range r.report.Balances {
		b := &r.report.Balances[i]

		after, err := r.balance(ctx, b.Address, b.Unit)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", b.Label)
		}
		b.After = after

		switch b.Role {
		case RoleVictim:
			exploited = exploited && b.After < b.Before
		case RoleAttacker:
			exploited = exploited && b.After > b.Before
		}
	}

	r.report.Exploited = exploited
	r.log.WithField("exploited", exploited).Info("scenario finished")
	return r.report, nil
}

func (r *Recorder) balance(ctx context.Context, address ed25519.PublicKey, unit Unit) (uint64, error) {
	if unit == UnitLamports {
		return r.env.GetBalance(ctx, address)
	}

	account, err := ledger.GetTypedAs[token.Account](ctx, r.env.Accessor(), address)
	if err == ledger.ErrAccountNotFound {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return account.Amount, nil
}
