package token

import (
	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/binary"
)

type AccountState byte

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/11b1e3eefdd4e523768d63f7c70a7aa391ea0d02/token/program/src/state.rs#L125
const AccountSize = 165

// Reference: https://github.com/solana-labs/solana-program-library/blob/11b1e3eefdd4e523768d63f7c70a7aa391ea0d02/token/program/src/state.rs#L39
const MintSize = 82

// DecimalsOffset is the offset of the decimals field within a mint.
const DecimalsOffset = binary.OptionSize + 32 + 8

var (
	ErrInvalidAccountSize = errors.New("invalid token account size")
	ErrInvalidMintSize    = errors.New("invalid mint size")
)

type Account struct {
	// The mint associated with this account
	Mint solana.PublicKey
	// The owner of this account.
	Owner solana.PublicKey
	// The amount of tokens this account holds.
	Amount uint64
	// If set, then the 'DelegatedAmount' represents the amount
	// authorized by the delegate.
	Delegate solana.PublicKey
	/// The account's state
	State AccountState
	// If set, this is a native token, and the value logs the rent-exempt reserve.
	IsNative *uint64
	// The amount delegated
	DelegatedAmount uint64
	// Optional authority to close the account.
	CloseAuthority solana.PublicKey
}

func (a *Account) Marshal() []byte {
	w := binary.NewWriter(AccountSize)
	w.PutKey32(a.Mint)
	w.PutKey32(a.Owner)
	w.PutUint64(a.Amount)
	w.PutOptionalKey32(a.Delegate)
	w.PutUint8(byte(a.State))
	w.PutOptionalUint64(a.IsNative)
	w.PutUint64(a.DelegatedAmount)
	w.PutOptionalKey32(a.CloseAuthority)
	return w.Bytes()
}

func (a *Account) Unmarshal(b []byte) error {
	if len(b) != AccountSize {
		return ErrInvalidAccountSize
	}

	var state uint8
	r := binary.NewReader(b)
	r.GetKey32(&a.Mint)
	r.GetKey32(&a.Owner)
	r.GetUint64(&a.Amount)
	r.GetOptionalKey32(&a.Delegate)
	r.GetUint8(&state)
	r.GetOptionalUint64(&a.IsNative)
	r.GetUint64(&a.DelegatedAmount)
	r.GetOptionalKey32(&a.CloseAuthority)
	a.State = AccountState(state)

	return r.Err()
}

type Mint struct {
	// Optional authority used to mint new tokens. When unset, the supply is
	// fixed.
	MintAuthority solana.PublicKey
	// Total supply of tokens.
	Supply   uint64
	Decimals byte
	// Whether the mint has been initialized.
	IsInitialized bool
	// Optional authority to freeze token accounts.
	FreezeAuthority solana.PublicKey
}

func (m *Mint) Marshal() []byte {
	w := binary.NewWriter(MintSize)
	w.PutOptionalKey32(m.MintAuthority)
	w.PutUint64(m.Supply)
	w.PutUint8(m.Decimals)
	w.PutBool(m.IsInitialized)
	w.PutOptionalKey32(m.FreezeAuthority)
	return w.Bytes()
}

func (m *Mint) Unmarshal(b []byte) error {
	if len(b) != MintSize {
		return ErrInvalidMintSize
	}

	r := binary.NewReader(b)
	r.GetOptionalKey32(&m.MintAuthority)
	r.GetUint64(&m.Supply)
	r.GetUint8(&m.Decimals)
	r.GetBool(&m.IsInitialized)
	r.GetOptionalKey32(&m.FreezeAuthority)

	return r.Err()
}
