package localenv

import (
	"crypto/ed25519"

	"github.com/code-payments/poc-ledger/pkg/ledger"
)

// Option configures the environment created by New().
type Option func(o *opts)

type opts struct {
	store          ledger.Store
	configProvider ledger.ConfigProvider
	payer          ed25519.PrivateKey
	payerLamports  uint64
	programs       []program
}

type program struct {
	id      ed25519.PublicKey
	handler ledger.Program
}

// WithStore backs the environment with the provided store instead of a new
// in memory one.
func WithStore(store ledger.Store) Option {
	return func(o *opts) {
		o.store = store
	}
}

// WithConfigProvider configures the ledger with the provided config.
func WithConfigProvider(configProvider ledger.ConfigProvider) Option {
	return func(o *opts) {
		o.configProvider = configProvider
	}
}

// WithPayer sets the default payer, and airdrops lamports to it.
func WithPayer(payer ed25519.PrivateKey, lamports uint64) Option {
	return func(o *opts) {
		o.payer = payer
		o.payerLamports = lamports
	}
}

// WithProgram deploys handler at id when the environment is created.
func WithProgram(id ed25519.PublicKey, handler ledger.Program) Option {
	return func(o *opts) {
		o.programs = append(o.programs, program{id: id, handler: handler})
	}
}
