package protocol

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
)

// Instruction discriminators are opaque 8-byte constants taken from the
// program's interface description. The client never derives them locally.
var (
	discCreateEscrow       = [8]byte{0xf8, 0x1a, 0x5b, 0x0e, 0x3d, 0x92, 0xc7, 0x44}
	discMarkDisputed       = [8]byte{0x27, 0xd4, 0x9b, 0x6c, 0x11, 0xe0, 0x58, 0xaa}
	discResolveMultiOracle = [8]byte{0x61, 0x3f, 0xca, 0x07, 0x84, 0x2e, 0xb9, 0x15}
	discReleaseFunds       = [8]byte{0xd0, 0x7c, 0x25, 0x98, 0x4a, 0xf3, 0x6e, 0x01}
	discInitReputation     = [8]byte{0x3b, 0x89, 0x52, 0xe6, 0x0d, 0x7f, 0xa4, 0xc2}
	discInitOracleRegistry = [8]byte{0x95, 0x40, 0xee, 0x1b, 0xc8, 0x36, 0x72, 0x5d}
)

const (
	// MaxQualityScore is the upper bound of the oracle scoring scale.
	MaxQualityScore = 100

	oraclePubkeyLen    = 32
	oracleSignatureLen = 64

	// Per-submission wire size in the resolve payload: pubkey + score + sig.
	submissionWireLen = oraclePubkeyLen + 1 + oracleSignatureLen
)

// OracleSubmission is one oracle's contribution to a resolve instruction.
type OracleSubmission struct {
	Pubkey    solana.PublicKey
	Score     uint8
	Signature solana.Signature
}

// EncodeCreateEscrow encodes the create-escrow payload:
// discriminator ‖ amount u64 LE ‖ time-lock seconds i64 LE ‖ transaction id
// (u32 length prefix + raw bytes).
func EncodeCreateEscrow(amount uint64, timeLockSecs int64, transactionID string) ([]byte, error) {
	if amount == 0 {
		return nil, Errf(ERR_INPUT, "create-escrow: amount must be > 0")
	}
	if timeLockSecs <= 0 {
		return nil, Errf(ERR_INPUT, "create-escrow: time-lock must be > 0 seconds")
	}
	if err := ValidateTransactionID(transactionID); err != nil {
		return nil, err
	}
	w := newWriter(8 + 8 + 8 + 4 + len(transactionID))
	w.writeBytes(discCreateEscrow[:])
	w.writeU64LE(amount)
	w.writeI64LE(timeLockSecs)
	if err := w.writeString(transactionID); err != nil {
		return nil, err
	}
	return w.bytes(), nil
}

// ParseCreateEscrow decodes a create-escrow payload produced by
// EncodeCreateEscrow, including the trailing-bytes check.
func ParseCreateEscrow(b []byte) (amount uint64, timeLockSecs int64, transactionID string, err error) {
	c := newCursor(b)
	disc, err := c.readExact(8)
	if err != nil {
		return 0, 0, "", err
	}
	if !bytes.Equal(disc, discCreateEscrow[:]) {
		return 0, 0, "", Errf(ERR_ENCODING, "parse: not a create-escrow payload")
	}
	if amount, err = c.readU64LE(); err != nil {
		return 0, 0, "", err
	}
	if timeLockSecs, err = c.readI64LE(); err != nil {
		return 0, 0, "", err
	}
	if transactionID, err = c.readString(); err != nil {
		return 0, 0, "", err
	}
	if err = c.done(); err != nil {
		return 0, 0, "", err
	}
	return amount, timeLockSecs, transactionID, nil
}

// EncodeMarkDisputed encodes the mark-disputed payload (discriminator only).
func EncodeMarkDisputed() []byte {
	out := make([]byte, 8)
	copy(out, discMarkDisputed[:])
	return out
}

// EncodeReleaseFunds encodes the release-funds payload (discriminator only).
func EncodeReleaseFunds() []byte {
	out := make([]byte, 8)
	copy(out, discReleaseFunds[:])
	return out
}

// EncodeInitReputation encodes the init-reputation payload (discriminator only;
// the program reads the entity from the account list).
func EncodeInitReputation() []byte {
	out := make([]byte, 8)
	copy(out, discInitReputation[:])
	return out
}

// EncodeInitOracleRegistry encodes the init-oracle-registry payload.
func EncodeInitOracleRegistry() []byte {
	out := make([]byte, 8)
	copy(out, discInitOracleRegistry[:])
	return out
}

// EncodeResolveMultiOracle encodes the resolve payload:
// discriminator ‖ u32 submission count ‖ per submission pubkey(32) ‖ score(1)
// ‖ signature(64), concatenated with no separators. The count field must equal
// the number of submissions appended; an empty vector is an encoding error.
func EncodeResolveMultiOracle(subs []OracleSubmission) ([]byte, error) {
	if len(subs) == 0 {
		return nil, Errf(ERR_ENCODING, "resolve: empty submission vector")
	}
	w := newWriter(8 + 4 + len(subs)*submissionWireLen)
	w.writeBytes(discResolveMultiOracle[:])
	w.writeU32LE(uint32(len(subs)))
	for i, sub := range subs {
		if sub.Score > MaxQualityScore {
			return nil, Errf(ERR_INPUT, "resolve: submission %d score %d out of range [0,%d]", i, sub.Score, MaxQualityScore)
		}
		if sub.Pubkey.IsZero() {
			return nil, Errf(ERR_INPUT, "resolve: submission %d has zero pubkey", i)
		}
		w.writeBytes(sub.Pubkey.Bytes())
		w.writeU8(sub.Score)
		w.writeBytes(sub.Signature[:])
	}
	return w.bytes(), nil
}

// ParseResolveMultiOracle decodes a resolve payload and enforces that the
// count field matches the appended submissions exactly.
func ParseResolveMultiOracle(b []byte) ([]OracleSubmission, error) {
	c := newCursor(b)
	disc, err := c.readExact(8)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(disc, discResolveMultiOracle[:]) {
		return nil, Errf(ERR_ENCODING, "parse: not a resolve payload")
	}
	count, err := c.readU32LE()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, Errf(ERR_ENCODING, "parse: resolve count is zero")
	}
	if uint64(count)*submissionWireLen != uint64(c.remaining()) {
		return nil, Errf(ERR_ENCODING, "parse: resolve count %d disagrees with %d payload bytes", count, c.remaining())
	}
	subs := make([]OracleSubmission, 0, count)
	for i := uint32(0); i < count; i++ {
		var sub OracleSubmission
		pk, err := c.readExact(oraclePubkeyLen)
		if err != nil {
			return nil, err
		}
		copy(sub.Pubkey[:], pk)
		if sub.Score, err = c.readU8(); err != nil {
			return nil, err
		}
		sig, err := c.readExact(oracleSignatureLen)
		if err != nil {
			return nil, err
		}
		copy(sub.Signature[:], sig)
		subs = append(subs, sub)
	}
	if err := c.done(); err != nil {
		return nil, err
	}
	return subs, nil
}

// Account orderings below mirror the program's interface description.

// NewCreateEscrowInstruction builds the create-escrow instruction. The payer
// signs and funds the escrow account.
func NewCreateEscrowInstruction(programID, payer, payee, escrow solana.PublicKey, amount uint64, timeLockSecs int64, transactionID string) (solana.Instruction, error) {
	data, err := EncodeCreateEscrow(amount, timeLockSecs, transactionID)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(escrow, true, false),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(payee, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewMarkDisputedInstruction builds the mark-disputed instruction. Only the
// payer may dispute.
func NewMarkDisputedInstruction(programID, payer, escrow solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(escrow, true, false),
		solana.NewAccountMeta(payer, false, true),
	}
	return solana.NewInstruction(programID, accounts, EncodeMarkDisputed())
}

// NewResolveInstruction builds the resolve instruction. The instructions
// sysvar account is required so the program can introspect the signature
// verification instructions riding in the same submission.
func NewResolveInstruction(programID, authority, escrow, payerReputation, payeeReputation, oracleRegistry solana.PublicKey, subs []OracleSubmission) (solana.Instruction, error) {
	data, err := EncodeResolveMultiOracle(subs)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(escrow, true, false),
		solana.NewAccountMeta(payerReputation, true, false),
		solana.NewAccountMeta(payeeReputation, true, false),
		solana.NewAccountMeta(oracleRegistry, false, false),
		solana.NewAccountMeta(authority, true, true),
		solana.NewAccountMeta(solana.SysVarInstructionsPubkey, false, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewReleaseFundsInstruction builds the direct-release instruction for an
// undisputed escrow whose time-lock has elapsed.
func NewReleaseFundsInstruction(programID, payer, payee, escrow solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(escrow, true, false),
		solana.NewAccountMeta(payer, false, true),
		solana.NewAccountMeta(payee, true, false),
	}
	return solana.NewInstruction(programID, accounts, EncodeReleaseFunds())
}

// NewInitReputationInstruction builds the idempotent reputation-account
// initializer for an entity.
func NewInitReputationInstruction(programID, payer, entity, reputation solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(reputation, true, false),
		solana.NewAccountMeta(entity, false, false),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	return solana.NewInstruction(programID, accounts, EncodeInitReputation())
}

// NewInitOracleRegistryInstruction builds the singleton registry initializer.
func NewInitOracleRegistryInstruction(programID, authority, registry solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(registry, true, false),
		solana.NewAccountMeta(authority, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	return solana.NewInstruction(programID, accounts, EncodeInitOracleRegistry())
}
