// Package oracle holds the independent signing identities that assess
// delivered API responses, and the assessment collection plumbing.
package oracle

import (
	"crypto/ed25519"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"verdict.dev/client/protocol"
)

// Assessment is one oracle's signed quality verdict for a transaction. It is
// ephemeral: the client never persists it on-chain, only packs it into the
// resolve submission.
type Assessment struct {
	Oracle    solana.PublicKey
	Score     uint8
	Message   string // the exact string that was signed
	Signature solana.Signature
}

// CanonicalMessage renders the message an oracle signs for a (transaction,
// score) pair: "<transactionId>:<score>" with the score in decimal, no leading
// zeros, no surrounding whitespace. The verifier recomputes these bytes; any
// deviation invalidates the signature check.
func CanonicalMessage(transactionID string, score uint8) string {
	return fmt.Sprintf("%s:%d", transactionID, score)
}

// Verify checks the detached signature against the oracle's declared public
// key and the recorded message bytes.
func (a *Assessment) Verify() error {
	if a == nil {
		return protocol.Errf(protocol.ERR_INPUT, "assessment: nil")
	}
	if !ed25519.Verify(ed25519.PublicKey(a.Oracle.Bytes()), []byte(a.Message), a.Signature[:]) {
		return protocol.Errf(protocol.ERR_PRECONDITION, "assessment: signature does not verify against oracle %s", a.Oracle)
	}
	return nil
}

// VerifyFor additionally pins the assessment to a transaction identifier by
// recomputing the canonical message.
func (a *Assessment) VerifyFor(transactionID string) error {
	if err := a.Verify(); err != nil {
		return err
	}
	if want := CanonicalMessage(transactionID, a.Score); a.Message != want {
		return protocol.Errf(protocol.ERR_PRECONDITION, "assessment: message %q does not match canonical %q", a.Message, want)
	}
	return nil
}

// Submission converts a verified assessment into resolve-instruction wire form.
func (a *Assessment) Submission() protocol.OracleSubmission {
	return protocol.OracleSubmission{
		Pubkey:    a.Oracle,
		Score:     a.Score,
		Signature: a.Signature,
	}
}

// Signer is one independent oracle identity. It must never be the payer's or
// payee's identity.
type Signer struct {
	key solana.PrivateKey
}

func NewSigner(key solana.PrivateKey) (*Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, protocol.Errf(protocol.ERR_INPUT, "oracle: private key is %d bytes, want %d", len(key), ed25519.PrivateKeySize)
	}
	return &Signer{key: key}, nil
}

func (s *Signer) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// Assess signs the canonical message for (transactionID, score) and returns
// the detached signature together with the exact message string used.
func (s *Signer) Assess(transactionID string, score uint8) (*Assessment, error) {
	if err := protocol.ValidateTransactionID(transactionID); err != nil {
		return nil, err
	}
	if score > protocol.MaxQualityScore {
		return nil, protocol.Errf(protocol.ERR_INPUT, "oracle: score %d out of range [0,%d]", score, protocol.MaxQualityScore)
	}
	msg := CanonicalMessage(transactionID, score)
	sig, err := s.key.Sign([]byte(msg))
	if err != nil {
		return nil, fmt.Errorf("oracle sign: %w", err)
	}
	return &Assessment{
		Oracle:    s.PublicKey(),
		Score:     score,
		Message:   msg,
		Signature: sig,
	}, nil
}
