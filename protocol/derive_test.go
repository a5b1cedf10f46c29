package protocol

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
)

var testProgramID = solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")

func TestDeriveEscrowDeterministic(t *testing.T) {
	addr1, bump1, err := DeriveEscrow(testProgramID, "demo-tx-001")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	addr2, bump2, err := DeriveEscrow(testProgramID, "demo-tx-001")
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if !addr1.Equals(addr2) || bump1 != bump2 {
		t.Fatalf("derivation not deterministic: (%s,%d) vs (%s,%d)", addr1, bump1, addr2, bump2)
	}
	if addr1.IsOnCurve() {
		t.Fatalf("derived address %s is on curve", addr1)
	}
}

func TestDeriveDistinctSeedsDistinctAddresses(t *testing.T) {
	a, _, err := DeriveEscrow(testProgramID, "demo-tx-001")
	if err != nil {
		t.Fatalf("derive a: %v", err)
	}
	b, _, err := DeriveEscrow(testProgramID, "demo-tx-002")
	if err != nil {
		t.Fatalf("derive b: %v", err)
	}
	if a.Equals(b) {
		t.Fatalf("different transaction ids derived the same address %s", a)
	}

	entity := solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
	rep, _, err := DeriveReputation(testProgramID, entity)
	if err != nil {
		t.Fatalf("derive reputation: %v", err)
	}
	rl, _, err := DeriveRateLimit(testProgramID, entity)
	if err != nil {
		t.Fatalf("derive rate limit: %v", err)
	}
	if rep.Equals(rl) {
		t.Fatalf("domain seeds did not separate: %s", rep)
	}
}

func TestDeriveOracleRegistryNoVariableSeed(t *testing.T) {
	a, bump, err := DeriveOracleRegistry(testProgramID)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, bump2, err := DeriveOracleRegistry(testProgramID)
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if !a.Equals(b) || bump != bump2 {
		t.Fatalf("registry derivation not deterministic")
	}
}

func TestDeriveInputValidation(t *testing.T) {
	cases := []struct {
		name string
		txID string
	}{
		{"empty", ""},
		{"too_long", strings.Repeat("x", solana.MaxSeedLength+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DeriveEscrow(testProgramID, tc.txID)
			if !IsCode(err, ERR_INPUT) {
				t.Fatalf("want ERR_INPUT, got %v", err)
			}
		})
	}
}
