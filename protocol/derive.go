package protocol

import (
	"github.com/gagliardetto/solana-go"
)

// Domain seeds shared with the on-chain program. These must match the program
// bit-for-bit or the derived addresses will not resolve.
const (
	SeedEscrow         = "escrow"
	SeedReputation     = "reputation"
	SeedRateLimit      = "rate_limit"
	SeedOracleRegistry = "oracle_registry"
)

// DeriveAddress searches for the canonical program-derived address for the
// given domain seed and variable seed segments. The domain seed goes first,
// variable segments follow in declared order, and a single trailing bump byte
// is appended, starting at 255 and decreasing. The first bump whose digest
// does not land on the ed25519 curve is canonical. Identical seeds always
// yield the identical (address, bump) pair.
func DeriveAddress(programID solana.PublicKey, domain string, variable ...[]byte) (solana.PublicKey, uint8, error) {
	if domain == "" {
		return solana.PublicKey{}, 0, Errf(ERR_INPUT, "derive: empty domain seed")
	}
	if len(domain) > solana.MaxSeedLength {
		return solana.PublicKey{}, 0, Errf(ERR_INPUT, "derive: domain seed %q exceeds %d bytes", domain, solana.MaxSeedLength)
	}
	seeds := make([][]byte, 0, len(variable)+2)
	seeds = append(seeds, []byte(domain))
	for i, seg := range variable {
		if len(seg) == 0 {
			return solana.PublicKey{}, 0, Errf(ERR_INPUT, "derive: variable seed %d is empty", i)
		}
		if len(seg) > solana.MaxSeedLength {
			return solana.PublicKey{}, 0, Errf(ERR_INPUT, "derive: variable seed %d exceeds %d bytes", i, solana.MaxSeedLength)
		}
		seeds = append(seeds, seg)
	}

	for bump := 255; bump >= 0; bump-- {
		full := append(seeds, []byte{byte(bump)})
		addr, err := solana.CreateProgramAddress(full, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
	}
	return solana.PublicKey{}, 0, Errf(ERR_DERIVE_EXHAUSTED, "derive: no off-curve address for domain %q", domain)
}

// DeriveEscrow derives the escrow account address for a transaction
// identifier. The identifier's raw UTF-8 bytes are the variable seed.
func DeriveEscrow(programID solana.PublicKey, transactionID string) (solana.PublicKey, uint8, error) {
	if err := ValidateTransactionID(transactionID); err != nil {
		return solana.PublicKey{}, 0, err
	}
	return DeriveAddress(programID, SeedEscrow, []byte(transactionID))
}

// DeriveReputation derives the reputation account address for an entity.
func DeriveReputation(programID solana.PublicKey, entity solana.PublicKey) (solana.PublicKey, uint8, error) {
	return DeriveAddress(programID, SeedReputation, entity.Bytes())
}

// DeriveRateLimit derives the rate-limit account address for an entity.
func DeriveRateLimit(programID solana.PublicKey, entity solana.PublicKey) (solana.PublicKey, uint8, error) {
	return DeriveAddress(programID, SeedRateLimit, entity.Bytes())
}

// DeriveOracleRegistry derives the singleton oracle registry address.
func DeriveOracleRegistry(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return DeriveAddress(programID, SeedOracleRegistry)
}

// ValidateTransactionID enforces the limits the derivation scheme imposes on
// transaction identifiers: non-empty, and short enough to act as a seed.
func ValidateTransactionID(transactionID string) error {
	if transactionID == "" {
		return Errf(ERR_INPUT, "transaction id is empty")
	}
	if len(transactionID) > solana.MaxSeedLength {
		return Errf(ERR_INPUT, "transaction id %q exceeds %d bytes", transactionID, solana.MaxSeedLength)
	}
	return nil
}
