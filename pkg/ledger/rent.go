package ledger

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/poc-ledger/pkg/solana"
	"github.com/code-payments/poc-ledger/pkg/solana/system"
)

// AccountStorageOverhead is the number of bytes charged for an account on top
// of its data.
const AccountStorageOverhead = 128

const (
	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2.0
	DefaultBurnPercent         = 50
)

// RentSize is the size of the encoded rent sysvar.
const RentSize = 8 + 8 + 1

// Rent holds the parameters used to compute the balance an account needs to
// be exempt from rent.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
		BurnPercent:         DefaultBurnPercent,
	}
}

// MinimumBalance returns the lamports an account holding dataLen bytes needs
// to be rent exempt.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	bytesCharged := uint64(AccountStorageOverhead + dataLen)
	return uint64(float64(bytesCharged*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether lamports covers the minimum balance for dataLen.
func (r Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}

// Marshal encodes the rent sysvar account data.
func (r Rent) Marshal() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, RentSize))
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint64(r.LamportsPerByteYear, bin.LE)
	_ = enc.WriteFloat64(r.ExemptionThreshold, bin.LE)
	_ = enc.WriteUint8(r.BurnPercent)
	return buf.Bytes()
}

// Unmarshal decodes the rent sysvar account data.
func (r *Rent) Unmarshal(b []byte) error {
	if len(b) != RentSize {
		return errors.Errorf("invalid rent size: %d", len(b))
	}

	var err error
	dec := bin.NewBinDecoder(b)
	if r.LamportsPerByteYear, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if r.ExemptionThreshold, err = dec.ReadFloat64(bin.LE); err != nil {
		return err
	}
	if r.BurnPercent, err = dec.ReadUint8(); err != nil {
		return err
	}
	return nil
}

// RentFromSysvar decodes the rent sysvar passed to a program.
func RentFromSysvar(info *AccountInfo) (Rent, error) {
	var rent Rent
	if !bytes.Equal(info.Address, system.RentSysVar) {
		return rent, errors.Wrapf(solana.InstructionErrorInvalidArgument, "%s is not the rent sysvar", base58.Encode(info.Address))
	}
	if err := rent.Unmarshal(info.Data); err != nil {
		return rent, errors.Wrap(solana.InstructionErrorInvalidAccountData, err.Error())
	}
	return rent, nil
}
