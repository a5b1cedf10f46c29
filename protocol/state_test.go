package protocol

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to EscrowStatus
		ok       bool
	}{
		{StatusActive, StatusDisputed, true},
		{StatusActive, StatusReleased, true},
		{StatusActive, StatusResolved, false},
		{StatusDisputed, StatusResolved, true},
		{StatusDisputed, StatusReleased, false},
		{StatusDisputed, StatusActive, false},
		{StatusResolved, StatusReleased, false},
		{StatusResolved, StatusActive, false},
		{StatusReleased, StatusDisputed, false},
	}
	for _, tc := range cases {
		t.Run(tc.from.String()+"_to_"+tc.to.String(), func(t *testing.T) {
			if got := tc.from.CanTransition(tc.to); got != tc.ok {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
			}
		})
	}

	if StatusActive.Terminal() || StatusDisputed.Terminal() {
		t.Fatalf("non-terminal states reported terminal")
	}
	if !StatusResolved.Terminal() || !StatusReleased.Terminal() {
		t.Fatalf("terminal states not reported terminal")
	}
}

// buildEscrowBytes hand-assembles the on-ledger layout so decoding is tested
// against independent bytes, not against our own encoder.
func buildEscrowBytes(t *testing.T, payer, payee solana.PublicKey, amount uint64,
	status EscrowStatus, createdAt, expiresAt int64, txID string,
	score, refund *uint8, bump uint8) []byte {

	t.Helper()
	w := newWriter(160)
	w.writeBytes(accDiscEscrow[:])
	w.writeBytes(payer.Bytes())
	w.writeBytes(payee.Bytes())
	w.writeU64LE(amount)
	w.writeU8(uint8(status))
	w.writeI64LE(createdAt)
	w.writeI64LE(expiresAt)
	if err := w.writeString(txID); err != nil {
		t.Fatalf("writeString: %v", err)
	}
	for _, opt := range []*uint8{score, refund} {
		if opt == nil {
			w.writeU8(0)
		} else {
			w.writeU8(1)
			w.writeU8(*opt)
		}
	}
	w.writeU8(bump)
	return w.bytes()
}

func TestParseEscrowAccount(t *testing.T) {
	payer := solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
	payee := solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
	score, refund := uint8(70), uint8(35)

	t.Run("resolved_with_verdict", func(t *testing.T) {
		data := buildEscrowBytes(t, payer, payee, 1_000_000, StatusResolved,
			1_700_000_000, 1_700_003_600, "demo-tx-001", &score, &refund, 254)
		acc, err := ParseEscrowAccount(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if !acc.Payer.Equals(payer) || !acc.Payee.Equals(payee) {
			t.Fatalf("party mismatch")
		}
		if acc.Amount != 1_000_000 || acc.Status != StatusResolved || acc.TransactionID != "demo-tx-001" {
			t.Fatalf("field mismatch: %+v", acc)
		}
		if acc.QualityScore == nil || *acc.QualityScore != 70 || acc.RefundPct == nil || *acc.RefundPct != 35 {
			t.Fatalf("verdict fields mismatch: %+v", acc)
		}
		if acc.Bump != 254 {
			t.Fatalf("bump %d, want 254", acc.Bump)
		}
	})

	t.Run("active_no_verdict", func(t *testing.T) {
		data := buildEscrowBytes(t, payer, payee, 42, StatusActive,
			1_700_000_000, 1_700_003_600, "demo-tx-002", nil, nil, 255)
		acc, err := ParseEscrowAccount(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if acc.QualityScore != nil || acc.RefundPct != nil {
			t.Fatalf("active escrow must not carry a verdict")
		}
	})

	t.Run("wrong_discriminator", func(t *testing.T) {
		data := buildEscrowBytes(t, payer, payee, 42, StatusActive,
			1_700_000_000, 1_700_003_600, "demo-tx-003", nil, nil, 255)
		data[0] ^= 0xff
		if _, err := ParseEscrowAccount(data); !IsCode(err, ERR_ENCODING) {
			t.Fatalf("want ERR_ENCODING, got %v", err)
		}
	})

	t.Run("score_without_refund", func(t *testing.T) {
		data := buildEscrowBytes(t, payer, payee, 42, StatusResolved,
			1_700_000_000, 1_700_003_600, "demo-tx-004", &score, nil, 255)
		if _, err := ParseEscrowAccount(data); !IsCode(err, ERR_ENCODING) {
			t.Fatalf("want ERR_ENCODING, got %v", err)
		}
	})

	t.Run("expiry_before_creation", func(t *testing.T) {
		data := buildEscrowBytes(t, payer, payee, 42, StatusActive,
			1_700_003_600, 1_700_000_000, "demo-tx-005", nil, nil, 255)
		if _, err := ParseEscrowAccount(data); !IsCode(err, ERR_ENCODING) {
			t.Fatalf("want ERR_ENCODING, got %v", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		if _, err := ParseEscrowAccount([]byte{1, 2, 3}); !IsCode(err, ERR_ENCODING) {
			t.Fatalf("want ERR_ENCODING, got %v", err)
		}
	})

	t.Run("marshal_parse_round_trip", func(t *testing.T) {
		want := &EscrowAccount{
			Payer:         payer,
			Payee:         payee,
			Amount:        1_000_000,
			Status:        StatusResolved,
			CreatedAt:     1_700_000_000,
			ExpiresAt:     1_700_003_600,
			TransactionID: "demo-tx-006",
			QualityScore:  &score,
			RefundPct:     &refund,
			Bump:          254,
		}
		data, err := want.MarshalBinary()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		// Same bytes as the hand-assembled layout.
		manual := buildEscrowBytes(t, payer, payee, 1_000_000, StatusResolved,
			1_700_000_000, 1_700_003_600, "demo-tx-006", &score, &refund, 254)
		if !bytes.Equal(data, manual) {
			t.Fatalf("marshal layout drifted:\n got %x\nwant %x", data, manual)
		}
		got, err := ParseEscrowAccount(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if got.TransactionID != want.TransactionID || *got.QualityScore != *want.QualityScore {
			t.Fatalf("round trip mismatch: %+v", got)
		}
	})
}

func TestParseReputationAccount(t *testing.T) {
	entity := solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")

	build := func(filed, won, partial, lost uint64, score uint32) []byte {
		w := newWriter(128)
		w.writeBytes(accDiscReputation[:])
		w.writeBytes(entity.Bytes())
		w.writeU8(uint8(EntityProvider))
		w.writeU64LE(12)     // total transactions
		w.writeU64LE(filed)  // disputes filed
		w.writeU64LE(won)    // won
		w.writeU64LE(partial)
		w.writeU64LE(lost)
		w.writeU32LE(7250) // avg quality bps
		w.writeU32LE(score)
		w.writeI64LE(1_700_000_000)
		w.writeI64LE(1_700_003_600)
		w.writeU8(253)
		return w.bytes()
	}

	acc, err := ParseReputationAccount(build(3, 1, 1, 1, 640))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !acc.Entity.Equals(entity) || acc.EntityType != EntityProvider {
		t.Fatalf("entity mismatch: %+v", acc)
	}
	if acc.DisputesFiled != 3 || acc.ReputationScore != 640 || acc.AvgQualityBps != 7250 {
		t.Fatalf("counter mismatch: %+v", acc)
	}

	if _, err := ParseReputationAccount(build(1, 1, 1, 0, 640)); !IsCode(err, ERR_ENCODING) {
		t.Fatalf("sub-counts exceeding filed: want ERR_ENCODING, got %v", err)
	}
	if _, err := ParseReputationAccount(build(3, 1, 1, 1, 1001)); !IsCode(err, ERR_ENCODING) {
		t.Fatalf("score above 1000: want ERR_ENCODING, got %v", err)
	}
}
