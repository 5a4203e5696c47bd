package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/poc-ledger/pkg/solana"
)

// Transaction is an ordered list of instructions applied atomically, along
// with the set of addresses that signed it.
type Transaction struct {
	Instructions []solana.Instruction
	Signers      []ed25519.PublicKey
}

// NewTransaction builds a Transaction signed by every provided key.
func NewTransaction(signers []ed25519.PublicKey, instructions ...solana.Instruction) Transaction {
	return Transaction{
		Instructions: instructions,
		Signers:      signers,
	}
}

// Result describes a committed (or rolled back) transaction.
type Result struct {
	// Signature is the first signature of a signed transaction. It is zero
	// for transactions submitted through Execute.
	Signature solana.Signature

	LogMessages []string
}

// Executor applies transactions against a Store. Transactions are applied one
// at a time, and either every instruction in a transaction takes effect or
// none of them do.
type Executor struct {
	log      *logrus.Entry
	conf     *conf
	store    Store
	registry *Registry

	mu sync.Mutex
}

func NewExecutor(store Store, registry *Registry, configProvider ConfigProvider) *Executor {
	return &Executor{
		log:      logrus.StandardLogger().WithField("type", "ledger/executor"),
		conf:     configProvider(),
		store:    store,
		registry: registry,
	}
}

// Rent returns the currently configured rent parameters.
func (e *Executor) Rent(ctx context.Context) Rent {
	return Rent{
		LamportsPerByteYear: e.conf.lamportsPerByteYear.Get(ctx),
		ExemptionThreshold:  e.conf.exemptionThreshold.Get(ctx),
		BurnPercent:         DefaultBurnPercent,
	}
}

// Execute applies every instruction in tx, in order, as a single atomic unit.
//
// ErrMissingSignature is returned, before anything runs, if an instruction
// marks an account as a signer that is not in tx.Signers. A failing
// instruction is reported as a solana.InstructionError, in which case the
// store is left exactly as it was before the call.
func (e *Executor) Execute(ctx context.Context, tx Transaction) (*Result, error) {
	return e.execute(ctx, tx, solana.Signature{})
}

// ExecuteSigned verifies the signatures of a wire transaction and executes
// its instructions. The signer set is the set of accounts with a valid
// signature.
func (e *Executor) ExecuteSigned(ctx context.Context, txn solana.Transaction) (*Result, error) {
	log := e.log.WithField("method", "ExecuteSigned")

	var signers []ed25519.PublicKey
	if e.conf.verifySignatures.Get(ctx) {
		var err error
		signers, err = txn.VerifySignatures()
		if err != nil {
			log.WithError(err).Warn("transaction failed signature verification")

			if errors.Is(err, solana.ErrMissingSignature) {
				return nil, errors.Wrap(ErrMissingSignature, err.Error())
			}
			return nil, errors.Wrap(solana.NewTransactionError(solana.TransactionErrorSignatureFailure), err.Error())
		}
	} else {
		for i := 0; i < int(txn.Message.Header.NumSignatures) && i < len(txn.Message.Accounts); i++ {
			signers = append(signers, txn.Message.Accounts[i])
		}
	}

	instructions, err := txn.Message.Decompile()
	if err != nil {
		return nil, errors.Wrap(solana.NewTransactionError(solana.TransactionErrorSanitizeFailure), err.Error())
	}

	var sig solana.Signature
	if len(txn.Signatures) > 0 {
		sig = txn.Signatures[0]
	}

	return e.execute(ctx, Transaction{Instructions: instructions, Signers: signers}, sig)
}

func (e *Executor) execute(ctx context.Context, tx Transaction, sig solana.Signature) (*Result, error) {
	log := e.log.WithFields(logrus.Fields{
		"method":       "execute",
		"signature":    sig.String(),
		"instructions": len(tx.Instructions),
	})

	if len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}

	if err := checkSigners(tx); err != nil {
		log.WithError(err).Warn("transaction rejected")
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.load(ctx, tx)
	if err != nil {
		log.WithError(err).Warn("failure loading accounts")
		return nil, err
	}

	result := &Result{Signature: sig}
	rent := e.Rent(ctx)
	maxDepth := int(e.conf.maxInvokeDepth.Get(ctx))

	for i, ix := range tx.Instructions {
		if err := ctx.Err(); err != nil {
			result.LogMessages = state.logs
			return result, errors.Wrapf(err, "transaction cancelled before instruction %d", i)
		}

		ic := &InvokeContext{
			Context:  ctx,
			log:      e.log.WithField("instruction", i),
			registry: e.registry,
			state:    state,
			rent:     rent,
			maxDepth: maxDepth,
		}

		if err := ic.processInstruction(ix); err != nil {
			result.LogMessages = state.logs

			ixErr := solana.InstructionError{Index: i, Err: err}
			log.WithError(ixErr).Warn("transaction rolled back")
			return result, ixErr
		}
	}

	if err := e.commit(ctx, state, rent); err != nil {
		result.LogMessages = state.logs
		log.WithError(err).Warn("failure committing transaction")
		return result, err
	}

	result.LogMessages = state.logs
	log.WithField("accounts", len(state.order)).Debug("transaction committed")
	return result, nil
}

func checkSigners(tx Transaction) error {
	for i, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if meta.IsSigner && !containsKey(tx.Signers, meta.PublicKey) {
				return errors.Wrapf(ErrMissingSignature, "instruction %d: account %s", i, base58.Encode(meta.PublicKey))
			}
		}
	}
	return nil
}

// txState is the working copy of every account a transaction references.
// Instructions mutate it in place, and it only reaches the store on commit.
type txState struct {
	order    []string
	accounts map[string]*Account

	// snapshot holds the stored record prior to the transaction, or nil if
	// the account did not exist.
	snapshot map[string]*Account

	isSigner   map[string]bool
	isWritable map[string]bool

	// failed is the first error from a cross program invocation.
	failed error

	logs []string
}

func (e *Executor) load(ctx context.Context, tx Transaction) (*txState, error) {
	state := &txState{
		accounts:   make(map[string]*Account),
		snapshot:   make(map[string]*Account),
		isSigner:   make(map[string]bool),
		isWritable: make(map[string]bool),
	}

	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if err := e.loadAccount(ctx, state, meta.PublicKey); err != nil {
				return nil, err
			}

			key := string(meta.PublicKey)
			state.isSigner[key] = state.isSigner[key] || meta.IsSigner
			state.isWritable[key] = state.isWritable[key] || meta.IsWritable
		}

		if err := e.loadAccount(ctx, state, ix.Program); err != nil {
			return nil, err
		}
	}

	return state, nil
}

func (e *Executor) loadAccount(ctx context.Context, state *txState, address ed25519.PublicKey) error {
	if len(address) != ed25519.PublicKeySize {
		return errors.Errorf("invalid address length: %d", len(address))
	}

	key := string(address)
	if _, ok := state.accounts[key]; ok {
		return nil
	}

	stored, err := e.store.Get(ctx, address)
	switch err {
	case nil:
		working := stored.Clone()
		state.accounts[key] = &working
		state.snapshot[key] = stored
	case ErrAccountNotFound:
		state.accounts[key] = newEmptyAccount(address)
		state.snapshot[key] = nil
	default:
		return errors.Wrapf(err, "failed to load account %s", base58.Encode(address))
	}

	state.order = append(state.order, key)
	return nil
}

// infos returns the top level view of an instruction's accounts.
func (s *txState) infos(metas []solana.AccountMeta) []*AccountInfo {
	infos := make([]*AccountInfo, len(metas))
	for i, meta := range metas {
		key := string(meta.PublicKey)
		infos[i] = &AccountInfo{
			Account:    s.accounts[key],
			IsSigner:   s.isSigner[key],
			IsWritable: s.isWritable[key],
		}
	}
	return infos
}

// commit writes the working set back to the store. Accounts left with no
// lamports are removed, as are rent paying accounts when eviction is enabled.
// If any write fails, previously written accounts are restored.
func (e *Executor) commit(ctx context.Context, state *txState, rent Rent) error {
	evictRentPaying := e.conf.evictRentPaying.Get(ctx)

	var written []string
	for _, key := range state.order {
		account := state.accounts[key]
		before := state.snapshot[key]

		if before != nil && before.Equal(account) {
			continue
		}

		remove := account.Lamports == 0
		if evictRentPaying && !account.Executable && !rent.IsExempt(account.Lamports, len(account.Data)) {
			remove = true
		}

		var err error
		switch {
		case remove && before == nil:
			continue
		case remove:
			err = e.store.Remove(ctx, account.Address)
		default:
			err = e.store.Put(ctx, account)
		}
		if err != nil {
			e.restore(ctx, state, written)
			return errors.Wrapf(err, "failed to commit account %s", base58.Encode(account.Address))
		}

		written = append(written, key)
	}

	return nil
}

func (e *Executor) restore(ctx context.Context, state *txState, written []string) {
	for _, key := range written {
		var err error
		if before := state.snapshot[key]; before != nil {
			err = e.store.Put(ctx, before)
		} else {
			err = e.store.Remove(ctx, ed25519.PublicKey(key))
		}

		if err != nil {
			e.log.WithError(err).WithField("account", base58.Encode([]byte(key))).Error("failure restoring account")
		}
	}
}

func containsKey(keys []ed25519.PublicKey, key ed25519.PublicKey) bool {
	for _, k := range keys {
		if bytes.Equal(k, key) {
			return true
		}
	}
	return false
}
