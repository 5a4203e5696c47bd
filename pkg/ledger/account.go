package ledger

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/solana/system"
)

// Account is a single record in the ledger, keyed by its address.
type Account struct {
	Address    ed25519.PublicKey
	Lamports   uint64
	Owner      ed25519.PublicKey
	Data       []byte
	Executable bool
}

// newEmptyAccount returns the view of an address that has never been funded:
// no lamports, no data, owned by the system program.
func newEmptyAccount(address ed25519.PublicKey) *Account {
	return &Account{
		Address: append(ed25519.PublicKey(nil), address...),
		Owner:   append(ed25519.PublicKey(nil), system.ProgramKey...),
	}
}

func (a *Account) Validate() error {
	if len(a.Address) != ed25519.PublicKeySize {
		return errors.Errorf("invalid address length: %d", len(a.Address))
	}

	if len(a.Owner) != ed25519.PublicKeySize {
		return errors.Errorf("invalid owner length: %d", len(a.Owner))
	}

	return nil
}

func (a *Account) Clone() Account {
	return Account{
		Address:    append(ed25519.PublicKey(nil), a.Address...),
		Lamports:   a.Lamports,
		Owner:      append(ed25519.PublicKey(nil), a.Owner...),
		Data:       append([]byte(nil), a.Data...),
		Executable: a.Executable,
	}
}

func (a *Account) CopyTo(dst *Account) {
	dst.Address = append(ed25519.PublicKey(nil), a.Address...)
	dst.Lamports = a.Lamports
	dst.Owner = append(ed25519.PublicKey(nil), a.Owner...)
	dst.Data = append([]byte(nil), a.Data...)
	dst.Executable = a.Executable
}

// Equal compares every field. Nil and empty data are treated as equal.
func (a *Account) Equal(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}

	return bytes.Equal(a.Address, other.Address) &&
		a.Lamports == other.Lamports &&
		bytes.Equal(a.Owner, other.Owner) &&
		bytes.Equal(a.Data, other.Data) &&
		a.Executable == other.Executable
}

// IsOwnedBy reports whether program owns the account.
func (a *Account) IsOwnedBy(program ed25519.PublicKey) bool {
	return bytes.Equal(a.Owner, program)
}

func (a *Account) String() string {
	return fmt.Sprintf(
		"%s{lamports=%d owner=%s data_len=%d executable=%t}",
		base58.Encode(a.Address),
		a.Lamports,
		base58.Encode(a.Owner),
		len(a.Data),
		a.Executable,
	)
}
