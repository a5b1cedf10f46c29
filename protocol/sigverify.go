package protocol

import (
	"math"

	"github.com/gagliardetto/solana-go"
)

// Ed25519ProgramID is the platform's native signature-verification program.
var Ed25519ProgramID = solana.MustPublicKeyFromBase58("Ed25519SigVerify111111111111111111111111111")

// Verification payload layout:
//
//	u8  count (always 1: one signature per instruction)
//	u8  padding (always 0)
//	u16 signature offset        u16 signature instruction index
//	u16 public key offset       u16 public key instruction index
//	u16 message offset          u16 message instruction index
//	[64] signature ‖ [32] public key ‖ [..] message
//
// All offsets point into this same payload and every instruction index is the
// all-ones sentinel meaning "this instruction". The message length is implied
// by the offsets and the payload length; it is not separately encoded.
const (
	sigverifyHeaderLen = 2 + 6*2

	// ownerSentinel marks offsets as referring to the instruction that
	// carries them.
	ownerSentinel = uint16(0xFFFF)

	sigOffset    = sigverifyHeaderLen
	pubkeyOffset = sigOffset + oracleSignatureLen
	msgOffset    = pubkeyOffset + oraclePubkeyLen
)

// BuildVerificationData packs one oracle submission into the native
// verification-instruction byte layout.
func BuildVerificationData(pubkey solana.PublicKey, sig solana.Signature, message []byte) ([]byte, error) {
	if pubkey.IsZero() {
		return nil, Errf(ERR_INPUT, "sigverify: zero public key")
	}
	if len(message) == 0 {
		return nil, Errf(ERR_INPUT, "sigverify: empty message")
	}
	if msgOffset+len(message) > math.MaxUint16 {
		return nil, Errf(ERR_INPUT, "sigverify: message of %d bytes overflows u16 offsets", len(message))
	}

	w := newWriter(msgOffset + len(message))
	w.writeU8(1) // signature count
	w.writeU8(0) // padding
	w.writeU16LE(uint16(sigOffset))
	w.writeU16LE(ownerSentinel)
	w.writeU16LE(uint16(pubkeyOffset))
	w.writeU16LE(ownerSentinel)
	w.writeU16LE(uint16(msgOffset))
	w.writeU16LE(ownerSentinel)
	w.writeBytes(sig[:])
	w.writeBytes(pubkey.Bytes())
	w.writeBytes(message)
	return w.bytes(), nil
}

// NewVerificationInstruction builds one standalone signature-verification
// instruction for an oracle submission. The verification program takes no
// accounts; everything it needs rides in the payload.
func NewVerificationInstruction(pubkey solana.PublicKey, sig solana.Signature, message []byte) (solana.Instruction, error) {
	data, err := BuildVerificationData(pubkey, sig, message)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(Ed25519ProgramID, solana.AccountMetaSlice{}, data), nil
}

// ParseVerificationData decodes a verification payload. The message length is
// recovered from the offset arithmetic.
func ParseVerificationData(b []byte) (pubkey solana.PublicKey, sig solana.Signature, message []byte, err error) {
	c := newCursor(b)
	count, err := c.readU8()
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, nil, err
	}
	if count != 1 {
		return solana.PublicKey{}, solana.Signature{}, nil, Errf(ERR_ENCODING, "sigverify: count %d, want 1", count)
	}
	if _, err = c.readU8(); err != nil { // padding
		return solana.PublicKey{}, solana.Signature{}, nil, err
	}
	var offs [3]uint16
	for i := range offs {
		off, err := c.readU16LE()
		if err != nil {
			return solana.PublicKey{}, solana.Signature{}, nil, err
		}
		ix, err := c.readU16LE()
		if err != nil {
			return solana.PublicKey{}, solana.Signature{}, nil, err
		}
		if ix != ownerSentinel {
			return solana.PublicKey{}, solana.Signature{}, nil, Errf(ERR_ENCODING, "sigverify: instruction index %#x, want sentinel", ix)
		}
		offs[i] = off
	}
	if offs[0] != sigOffset || offs[1] != pubkeyOffset || offs[2] != msgOffset {
		return solana.PublicKey{}, solana.Signature{}, nil, Errf(ERR_ENCODING, "sigverify: unexpected offset table %v", offs)
	}
	sb, err := c.readExact(oracleSignatureLen)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, nil, err
	}
	copy(sig[:], sb)
	pb, err := c.readExact(oraclePubkeyLen)
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, nil, err
	}
	copy(pubkey[:], pb)
	if c.remaining() == 0 {
		return solana.PublicKey{}, solana.Signature{}, nil, Errf(ERR_ENCODING, "sigverify: empty message")
	}
	message, err = c.readExact(c.remaining())
	if err != nil {
		return solana.PublicKey{}, solana.Signature{}, nil, err
	}
	return pubkey, sig, message, nil
}
