package protocol

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Account discriminators, opaque 8-byte constants from the program's
// interface description.
var (
	accDiscEscrow     = [8]byte{0x24, 0xb8, 0x7d, 0x51, 0x0a, 0xe1, 0x9c, 0x36}
	accDiscReputation = [8]byte{0x6a, 0x14, 0xd5, 0x83, 0xbe, 0x27, 0xf0, 0x49}
)

type EscrowStatus uint8

const (
	StatusActive EscrowStatus = iota
	StatusDisputed
	StatusResolved
	StatusReleased
)

func (s EscrowStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDisputed:
		return "disputed"
	case StatusResolved:
		return "resolved"
	case StatusReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is valid from s.
func (s EscrowStatus) Terminal() bool {
	return s == StatusResolved || s == StatusReleased
}

// CanTransition reports whether the status machine permits s → to.
// Transitions are monotonic: nothing returns to Active, and terminal states
// admit nothing.
func (s EscrowStatus) CanTransition(to EscrowStatus) bool {
	switch s {
	case StatusActive:
		return to == StatusDisputed || to == StatusReleased
	case StatusDisputed:
		return to == StatusResolved
	default:
		return false
	}
}

type EntityType uint8

const (
	EntityAgent EntityType = iota
	EntityProvider
)

func (t EntityType) String() string {
	switch t {
	case EntityAgent:
		return "agent"
	case EntityProvider:
		return "provider"
	default:
		return "unknown"
	}
}

// EscrowAccount is the on-chain escrow state, Borsh-encoded behind the
// account discriminator.
type EscrowAccount struct {
	Payer         solana.PublicKey
	Payee         solana.PublicKey
	Amount        uint64
	Status        EscrowStatus
	CreatedAt     int64
	ExpiresAt     int64
	TransactionID string
	QualityScore  *uint8 `bin:"optional"`
	RefundPct     *uint8 `bin:"optional"`
	Bump          uint8
}

// Resolved escrows carry both the score and the refund; everything else
// carries neither.
func (a *EscrowAccount) validate() error {
	if a.ExpiresAt < a.CreatedAt {
		return Errf(ERR_ENCODING, "escrow account: expiry %d before creation %d", a.ExpiresAt, a.CreatedAt)
	}
	if (a.QualityScore == nil) != (a.RefundPct == nil) {
		return Errf(ERR_ENCODING, "escrow account: quality score and refund must be populated together")
	}
	if a.QualityScore != nil && *a.QualityScore > MaxQualityScore {
		return Errf(ERR_ENCODING, "escrow account: quality score %d out of range", *a.QualityScore)
	}
	return nil
}

// MarshalBinary renders the account in its on-ledger form: discriminator
// followed by the Borsh-encoded fields. Inverse of ParseEscrowAccount.
func (a *EscrowAccount) MarshalBinary() ([]byte, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(accDiscEscrow[:])
	if err := bin.NewBorshEncoder(&buf).Encode(a); err != nil {
		return nil, Errf(ERR_ENCODING, "escrow account: %v", err)
	}
	return buf.Bytes(), nil
}

// ParseEscrowAccount decodes raw account bytes fetched from the ledger.
func ParseEscrowAccount(data []byte) (*EscrowAccount, error) {
	if len(data) < 8 {
		return nil, Errf(ERR_ENCODING, "escrow account: %d bytes, want at least 8", len(data))
	}
	if !bytes.Equal(data[:8], accDiscEscrow[:]) {
		return nil, Errf(ERR_ENCODING, "escrow account: wrong discriminator")
	}
	var acc EscrowAccount
	if err := bin.NewBorshDecoder(data[8:]).Decode(&acc); err != nil {
		return nil, Errf(ERR_ENCODING, "escrow account: %v", err)
	}
	if err := acc.validate(); err != nil {
		return nil, err
	}
	return &acc, nil
}

// ReputationAccount is the on-chain per-entity reputation state.
type ReputationAccount struct {
	Entity            solana.PublicKey
	EntityType        EntityType
	TotalTransactions uint64
	DisputesFiled     uint64
	DisputesWon       uint64
	DisputesPartial   uint64
	DisputesLost      uint64
	AvgQualityBps     uint32 // running average quality × 100
	ReputationScore   uint32 // derived, 0–1000
	CreatedAt         int64
	UpdatedAt         int64
	Bump              uint8
}

func (a *ReputationAccount) validate() error {
	if a.DisputesWon+a.DisputesPartial+a.DisputesLost > a.DisputesFiled {
		return Errf(ERR_ENCODING, "reputation account: dispute sub-counts exceed disputes filed")
	}
	if a.ReputationScore > 1000 {
		return Errf(ERR_ENCODING, "reputation account: score %d out of range [0,1000]", a.ReputationScore)
	}
	return nil
}

// ParseReputationAccount decodes raw account bytes fetched from the ledger.
func ParseReputationAccount(data []byte) (*ReputationAccount, error) {
	if len(data) < 8 {
		return nil, Errf(ERR_ENCODING, "reputation account: %d bytes, want at least 8", len(data))
	}
	if !bytes.Equal(data[:8], accDiscReputation[:]) {
		return nil, Errf(ERR_ENCODING, "reputation account: wrong discriminator")
	}
	var acc ReputationAccount
	if err := bin.NewBorshDecoder(data[8:]).Decode(&acc); err != nil {
		return nil, Errf(ERR_ENCODING, "reputation account: %v", err)
	}
	if err := acc.validate(); err != nil {
		return nil, err
	}
	return &acc, nil
}
