package ledger

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/solana/borsh"
)

// Unmarshaler is implemented by records with a fixed binary layout of their
// own. Implementations must reject input that is not exactly one record.
type Unmarshaler interface {
	Unmarshal(b []byte) error
}

// Accessor exposes committed account state.
type Accessor struct {
	store Store
}

func NewAccessor(store Store) *Accessor {
	return &Accessor{
		store: store,
	}
}

// GetRaw returns the account at address.
//
// ErrAccountNotFound is returned if no account exists.
func (a *Accessor) GetRaw(ctx context.Context, address ed25519.PublicKey) (*Account, error) {
	return a.store.Get(ctx, address)
}

// GetTyped decodes the data of the account at address into out. Values that
// implement Unmarshaler decode themselves. Everything else is decoded as
// Borsh.
//
// ErrDecode is returned if the data does not decode into exactly one value
// of the target type.
func (a *Accessor) GetTyped(ctx context.Context, address ed25519.PublicKey, out interface{}) error {
	account, err := a.store.Get(ctx, address)
	if err != nil {
		return err
	}

	if err := Decode(account.Data, out); err != nil {
		return errors.Wrapf(err, "account %s", base58.Encode(address))
	}
	return nil
}

// GetTypedAs is the generic form of GetTyped.
func GetTypedAs[T any](ctx context.Context, a *Accessor, address ed25519.PublicKey) (*T, error) {
	var out T
	if err := a.GetTyped(ctx, address, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Decode decodes data into out, requiring every byte to be consumed.
func Decode(data []byte, out interface{}) error {
	var err error
	if u, ok := out.(Unmarshaler); ok {
		err = u.Unmarshal(data)
	} else {
		err = borsh.Unmarshal(data, out)
	}

	if err != nil {
		return errors.Wrap(ErrDecode, err.Error())
	}
	return nil
}
