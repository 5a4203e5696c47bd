// Package localenv is an in process ledger with the system and token programs
// deployed, intended for scripting scenarios against programs.
package localenv

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"sync/atomic"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/ledger/memory"
	systemprogram "github.com/code-payments/poc-ledger/pkg/ledger/system"
	tokenprogram "github.com/code-payments/poc-ledger/pkg/programs/token"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/system"
	"github.com/code-payments/poc-ledger/pkg/solana/token"
)

// DefaultPayerLamports is airdropped to the default payer.
const DefaultPayerLamports = 1_000_000_000_000

var (
	// NativeLoaderKey owns the builtin programs.
	NativeLoaderKey = mustDecode("NativeLoader1111111111111111111111111111111")

	// LoaderKey owns every program deployed with DeployProgram.
	LoaderKey = mustDecode("BPFLoaderUpgradeab1e11111111111111111111111")
)

type Environment struct {
	log      *logrus.Entry
	store    ledger.Store
	registry *ledger.Registry
	executor *ledger.Executor
	accessor *ledger.Accessor
	payer    ed25519.PrivateKey

	blockhashCounter uint64
}

// New creates an environment with the system and token programs deployed,
// the rent sysvar populated and the payer funded.
func New(ctx context.Context, options ...Option) (*Environment, error) {
	o := &opts{
		configProvider: ledger.WithEnvConfigs(),
		payer:          solana.KeypairFromIndex(0),
		payerLamports:  DefaultPayerLamports,
	}
	for _, opt := range options {
		opt(o)
	}
	if o.store == nil {
		o.store = memory.New()
	}

	registry := ledger.NewRegistry()
	env := &Environment{
		log:      logrus.StandardLogger().WithField("type", "ledger/localenv"),
		store:    o.store,
		registry: registry,
		executor: ledger.NewExecutor(o.store, registry, o.configProvider),
		accessor: ledger.NewAccessor(o.store),
		payer:    o.payer,
	}

	if err := env.deploy(ctx, system.ProgramKey, systemprogram.New(), NativeLoaderKey); err != nil {
		return nil, err
	}
	if err := env.deploy(ctx, token.ProgramKey, tokenprogram.New(), NativeLoaderKey); err != nil {
		return nil, err
	}
	for _, p := range o.programs {
		if err := env.DeployProgram(ctx, p.id, p.handler); err != nil {
			return nil, err
		}
	}

	rent := env.Rent(ctx)
	err := env.store.Put(ctx, &ledger.Account{
		Address:  system.RentSysVar,
		Lamports: rent.MinimumBalance(ledger.RentSize),
		Owner:    system.SysvarProgramKey,
		Data:     rent.Marshal(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create rent sysvar")
	}

	if o.payerLamports > 0 {
		if err := env.Airdrop(ctx, env.payer.Public().(ed25519.PublicKey), o.payerLamports); err != nil {
			return nil, err
		}
	}

	return env, nil
}

func (e *Environment) Payer() ed25519.PrivateKey {
	return e.payer
}

// Keypair returns the deterministic keypair for actor n.
func (e *Environment) Keypair(n uint64) ed25519.PrivateKey {
	return solana.KeypairFromIndex(n)
}

func (e *Environment) Store() ledger.Store {
	return e.store
}

func (e *Environment) Executor() *ledger.Executor {
	return e.executor
}

func (e *Environment) Accessor() *ledger.Accessor {
	return e.accessor
}

func (e *Environment) Rent(ctx context.Context) ledger.Rent {
	return e.executor.Rent(ctx)
}

// Airdrop credits lamports to address outside of any transaction.
func (e *Environment) Airdrop(ctx context.Context, address ed25519.PublicKey, lamports uint64) error {
	if err := e.store.Credit(ctx, address, lamports); err != nil {
		return errors.Wrapf(err, "failed to airdrop to %s", base58.Encode(address))
	}

	e.log.WithFields(logrus.Fields{
		"method":   "Airdrop",
		"account":  base58.Encode(address),
		"lamports": lamports,
	}).Debug("airdropped lamports")
	return nil
}

// ExecuteAsTransaction signs the instructions as a single transaction and
// executes it. The first signer pays for the transaction, defaulting to the
// environment payer when there are no signers.
func (e *Environment) ExecuteAsTransaction(ctx context.Context, instructions []solana.Instruction, signers ...ed25519.PrivateKey) (*ledger.Result, error) {
	payer := e.payer
	if len(signers) > 0 {
		payer = signers[0]
	}

	txn := solana.NewTransaction(payer.Public().(ed25519.PublicKey), instructions...)
	txn.SetBlockhash(e.nextBlockhash())
	if err := txn.Sign(append([]ed25519.PrivateKey{payer}, signers...)...); err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	result, err := e.executor.ExecuteSigned(ctx, txn)
	if result != nil {
		for _, msg := range result.LogMessages {
			e.log.WithField("signature", result.Signature.String()).Trace(msg)
		}
	}
	return result, err
}

// CreateAccountWithData writes a system owned, rent exempt account holding
// data at the keypair's address.
func (e *Environment) CreateAccountWithData(ctx context.Context, account ed25519.PrivateKey, data []byte) error {
	address := account.Public().(ed25519.PublicKey)
	return e.store.Put(ctx, &ledger.Account{
		Address:  address,
		Lamports: e.Rent(ctx).MinimumBalance(len(data)),
		Owner:    system.ProgramKey,
		Data:     data,
	})
}

// CreateAccountRentExempt creates a zeroed account of size bytes owned by
// owner, funded by the payer.
func (e *Environment) CreateAccountRentExempt(ctx context.Context, account ed25519.PrivateKey, size uint64, owner ed25519.PublicKey) error {
	address := account.Public().(ed25519.PublicKey)
	lamports := e.Rent(ctx).MinimumBalance(int(size))

	_, err := e.ExecuteAsTransaction(
		ctx,
		[]solana.Instruction{
			system.CreateAccount(e.payer.Public().(ed25519.PublicKey), address, owner, lamports, size),
		},
		e.payer,
		account,
	)
	return err
}

// DeployProgram registers handler at id and creates its executable account.
func (e *Environment) DeployProgram(ctx context.Context, id ed25519.PublicKey, handler ledger.Program) error {
	return e.deploy(ctx, id, handler, LoaderKey)
}

func (e *Environment) deploy(ctx context.Context, id ed25519.PublicKey, handler ledger.Program, loader ed25519.PublicKey) error {
	if err := e.registry.Register(id, handler); err != nil {
		return err
	}

	err := e.store.Put(ctx, &ledger.Account{
		Address:    id,
		Lamports:   e.Rent(ctx).MinimumBalance(0),
		Owner:      loader,
		Executable: true,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to deploy program %s", base58.Encode(id))
	}

	e.log.WithField("program", base58.Encode(id)).Debug("program deployed")
	return nil
}

// GetAccount returns the account at address.
func (e *Environment) GetAccount(ctx context.Context, address ed25519.PublicKey) (*ledger.Account, error) {
	return e.accessor.GetRaw(ctx, address)
}

// GetDeserializedAccount decodes the account at address into out.
func (e *Environment) GetDeserializedAccount(ctx context.Context, address ed25519.PublicKey, out interface{}) error {
	return e.accessor.GetTyped(ctx, address, out)
}

// GetBalance returns the lamports held at address, or zero if there is no
// account.
func (e *Environment) GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error) {
	account, err := e.accessor.GetRaw(ctx, address)
	if err == ledger.ErrAccountNotFound {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return account.Lamports, nil
}

// Dump returns every account, ordered by address.
func (e *Environment) Dump(ctx context.Context) ([]*ledger.Account, error) {
	return e.store.GetAll(ctx)
}

func (e *Environment) nextBlockhash() solana.Blockhash {
	var counter [8]byte
	binary.LittleEndian.PutUint64(counter[:], atomic.AddUint64(&e.blockhashCounter, 1))
	return solana.Blockhash(sha256.Sum256(counter[:]))
}

func mustDecode(s string) ed25519.PublicKey {
	b, err := base58.Decode(s)
	if err != nil {
		panic(err)
	}
	return b
}
