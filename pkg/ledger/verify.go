package ledger

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/system"
)

// frame is a single program invocation on the stack.
type frame struct {
	program  ed25519.PublicKey
	accounts []*AccountInfo

	// pre holds one entry per distinct account, in order of first reference.
	pre []preAccount
}

type preAccount struct {
	before   Account
	current  *Account
	signer   bool
	writable bool
}

func newFrame(program ed25519.PublicKey, accounts []*AccountInfo) *frame {
	f := &frame{
		program:  program,
		accounts: accounts,
	}

	seen := make(map[*Account]int)
	for _, info := range accounts {
		if i, ok := seen[info.Account]; ok {
			f.pre[i].signer = f.pre[i].signer || info.IsSigner
			f.pre[i].writable = f.pre[i].writable || info.IsWritable
			continue
		}

		seen[info.Account] = len(f.pre)
		f.pre = append(f.pre, preAccount{
			before:   info.Account.Clone(),
			current:  info.Account,
			signer:   info.IsSigner,
			writable: info.IsWritable,
		})
	}

	return f
}

// find returns the frame's view of address, with privileges merged across
// duplicate references.
func (f *frame) find(address ed25519.PublicKey) (*AccountInfo, bool) {
	for _, p := range f.pre {
		if bytes.Equal(p.current.Address, address) {
			return &AccountInfo{
				Account:    p.current,
				IsSigner:   p.signer,
				IsWritable: p.writable,
			}, true
		}
	}
	return nil, false
}

// refresh accepts the current state of every account as the new baseline.
func (f *frame) refresh() {
	for i := range f.pre {
		f.pre[i].before = f.pre[i].current.Clone()
	}
}

// verify checks the changes made since the last baseline against the rules
// every program must follow:
//
//   - only the owner may assign a new owner, and only to a writable account with zeroed data
//   - only the owner may debit lamports, and readonly or executable balances never change
//   - only the owner may change the data of a writable account
//   - only the system program may resize, and only accounts it owns
//   - the executable flag never changes
//   - lamports are neither created nor destroyed
//
// Reference: https://github.com/solana-labs/solana/blob/v1.9.5/program-runtime/src/instruction_processor.rs
func (f *frame) verify() error {
	var preTotal, postTotal uint64
	for _, p := range f.pre {
		if err := p.verify(f.program); err != nil {
			return errors.Wrapf(err, "account %s", base58.Encode(p.current.Address))
		}

		// Wrapping sums, so that balances which wrapped in both directions
		// still conserve the total.
		preTotal += p.before.Lamports
		postTotal += p.current.Lamports
	}

	if preTotal != postTotal {
		return solana.InstructionErrorUnbalancedInstruction
	}
	return nil
}

func (p *preAccount) verify(program ed25519.PublicKey) error {
	before, after := &p.before, p.current
	isOwner := before.IsOwnedBy(program)

	if !bytes.Equal(before.Owner, after.Owner) {
		if !p.writable || before.Executable || !isOwner || !isZeroed(after.Data) {
			return solana.InstructionErrorModifiedProgramID
		}
	}

	if after.Lamports < before.Lamports && !isOwner {
		return solana.InstructionErrorExternalAccountLamportSpend
	}

	if after.Lamports != before.Lamports {
		if !p.writable {
			return solana.InstructionErrorReadonlyLamportChange
		}
		if before.Executable {
			return solana.InstructionErrorExecutableLamportChange
		}
	}

	if len(before.Data) != len(after.Data) && !(bytes.Equal(program, system.ProgramKey) && before.IsOwnedBy(system.ProgramKey)) {
		return solana.InstructionErrorAccountDataSizeChanged
	}

	if !(isOwner && p.writable && !before.Executable) && !bytes.Equal(before.Data, after.Data) {
		switch {
		case before.Executable:
			return solana.InstructionErrorExecutableDataModified
		case p.writable:
			return solana.InstructionErrorExternalAccountDataModified
		default:
			return solana.InstructionErrorReadonlyDataModified
		}
	}

	if before.Executable != after.Executable {
		return solana.InstructionErrorExecutableModified
	}

	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
