package protocol

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func testKeypair(t *testing.T) (solana.PublicKey, solana.PrivateKey) {
	t.Helper()
	seed := bytes.Repeat([]byte{0x42}, ed25519.SeedSize)
	priv := solana.PrivateKey(ed25519.NewKeyFromSeed(seed))
	return priv.PublicKey(), priv
}

func TestBuildVerificationDataLayout(t *testing.T) {
	pub, priv := testKeypair(t)
	msg := []byte("demo-tx-001:70")
	sig, err := priv.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	data, err := BuildVerificationData(pub, sig, msg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if want := 14 + 64 + 32 + len(msg); len(data) != want {
		t.Fatalf("payload is %d bytes, want %d", len(data), want)
	}
	if data[0] != 1 || data[1] != 0 {
		t.Fatalf("header starts %x, want count=1 padding=0", data[:2])
	}
	offs := []struct {
		at   int
		want uint16
	}{
		{2, 14},     // signature offset
		{4, 0xffff}, // signature instruction index
		{6, 78},     // public key offset
		{8, 0xffff},
		{10, 110}, // message offset
		{12, 0xffff},
	}
	for _, o := range offs {
		if got := binary.LittleEndian.Uint16(data[o.at : o.at+2]); got != o.want {
			t.Fatalf("u16 at %d is %#x, want %#x", o.at, got, o.want)
		}
	}
	if !bytes.Equal(data[14:78], sig[:]) {
		t.Fatalf("signature bytes misplaced")
	}
	if !bytes.Equal(data[78:110], pub.Bytes()) {
		t.Fatalf("public key bytes misplaced")
	}
	if !bytes.Equal(data[110:], msg) {
		t.Fatalf("message bytes misplaced")
	}

	// The native program re-verifies on-chain; the payload must carry a
	// signature that actually verifies.
	if !ed25519.Verify(ed25519.PublicKey(data[78:110]), data[110:], data[14:78]) {
		t.Fatalf("embedded signature does not verify")
	}
}

func TestVerificationDataRoundTrip(t *testing.T) {
	pub, priv := testKeypair(t)
	msg := []byte("demo-tx-001:70")
	sig, err := priv.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	data, err := BuildVerificationData(pub, sig, msg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	gotPub, gotSig, gotMsg, err := ParseVerificationData(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !gotPub.Equals(pub) || gotSig != sig || !bytes.Equal(gotMsg, msg) {
		t.Fatalf("round trip mismatch")
	}
}

func TestBuildVerificationDataValidation(t *testing.T) {
	pub, priv := testKeypair(t)
	sig, _ := priv.Sign([]byte("x"))

	if _, err := BuildVerificationData(solana.PublicKey{}, sig, []byte("x")); !IsCode(err, ERR_INPUT) {
		t.Fatalf("zero pubkey: want ERR_INPUT, got %v", err)
	}
	if _, err := BuildVerificationData(pub, sig, nil); !IsCode(err, ERR_INPUT) {
		t.Fatalf("empty message: want ERR_INPUT, got %v", err)
	}
	if _, err := BuildVerificationData(pub, sig, make([]byte, 70_000)); !IsCode(err, ERR_INPUT) {
		t.Fatalf("oversized message: want ERR_INPUT, got %v", err)
	}
}

func TestParseVerificationDataRejectsMangledHeader(t *testing.T) {
	pub, priv := testKeypair(t)
	msg := []byte("demo-tx-001:70")
	sig, _ := priv.Sign(msg)
	good, err := BuildVerificationData(pub, sig, msg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	cases := []struct {
		name   string
		mangle func(b []byte)
	}{
		{"count_two", func(b []byte) { b[0] = 2 }},
		{"sentinel_cleared", func(b []byte) { b[4], b[5] = 0, 0 }},
		{"sig_offset_shifted", func(b []byte) { binary.LittleEndian.PutUint16(b[2:4], 16) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := append([]byte(nil), good...)
			tc.mangle(b)
			if _, _, _, err := ParseVerificationData(b); !IsCode(err, ERR_ENCODING) {
				t.Fatalf("want ERR_ENCODING, got %v", err)
			}
		})
	}
}

func TestNewVerificationInstructionTakesNoAccounts(t *testing.T) {
	pub, priv := testKeypair(t)
	msg := []byte("demo-tx-001:70")
	sig, _ := priv.Sign(msg)

	ix, err := NewVerificationInstruction(pub, sig, msg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !ix.ProgramID().Equals(Ed25519ProgramID) {
		t.Fatalf("instruction targets %s, want the native verify program", ix.ProgramID())
	}
	if n := len(ix.Accounts()); n != 0 {
		t.Fatalf("instruction carries %d accounts, want 0", n)
	}
}
