package ledger

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrLamportOverflow = errors.New("lamport balance overflow")
)

// Store holds the current state of every account in the ledger. Records are
// copied on the way in and out, so callers never share memory with the store.
type Store interface {
	// Get returns the account at address.
	//
	// ErrAccountNotFound is returned if no account exists.
	Get(ctx context.Context, address ed25519.PublicKey) (*Account, error)

	// Put creates or replaces the account at record.Address.
	Put(ctx context.Context, record *Account) error

	// Remove deletes the account at address.
	//
	// ErrAccountNotFound is returned if no account exists.
	Remove(ctx context.Context, address ed25519.PublicKey) error

	// Credit adds lamports to the account at address. A missing account is
	// created with no data and the system program as owner.
	//
	// ErrLamportOverflow is returned if the balance would exceed a uint64.
	Credit(ctx context.Context, address ed25519.PublicKey, lamports uint64) error

	// GetAll returns every account, ordered by address.
	GetAll(ctx context.Context) ([]*Account, error)
}
