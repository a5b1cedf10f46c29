package oracle

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/sha3"

	"verdict.dev/client/protocol"
)

// Registry is an explicitly constructed set of oracle identities. Callers pass
// it by reference wherever assessments are produced; there is no ambient
// process-wide registry.
type Registry struct {
	signers []*Signer
}

// NewRegistry builds a registry from private keys. Duplicate identities are
// rejected: the protocol admits exactly one assessment per oracle per
// transaction.
func NewRegistry(keys []solana.PrivateKey) (*Registry, error) {
	if len(keys) == 0 {
		return nil, protocol.Errf(protocol.ERR_INPUT, "oracle registry: no keys")
	}
	signers := make([]*Signer, 0, len(keys))
	seen := make(map[solana.PublicKey]struct{}, len(keys))
	for i, key := range keys {
		s, err := NewSigner(key)
		if err != nil {
			return nil, fmt.Errorf("oracle %d: %w", i, err)
		}
		pub := s.PublicKey()
		if _, ok := seen[pub]; ok {
			return nil, protocol.Errf(protocol.ERR_INPUT, "oracle registry: duplicate identity %s", pub)
		}
		seen[pub] = struct{}{}
		signers = append(signers, s)
	}
	return &Registry{signers: signers}, nil
}

const devSeedLabel = "verdict/oracle/v1"

// NewDevRegistry derives n deterministic development identities. Each seed is
// SHA3-256 of a label and the oracle index, so repeated construction yields
// the same identities. Not for production use: real deployments load isolated
// oracle keys.
func NewDevRegistry(n int) (*Registry, error) {
	if n <= 0 {
		return nil, protocol.Errf(protocol.ERR_INPUT, "oracle registry: size must be > 0, got %d", n)
	}
	keys := make([]solana.PrivateKey, 0, n)
	for i := 0; i < n; i++ {
		seed := sha3.Sum256([]byte(fmt.Sprintf("%s:%d", devSeedLabel, i)))
		keys = append(keys, solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:])))
	}
	return NewRegistry(keys)
}

func (r *Registry) Size() int { return len(r.signers) }

func (r *Registry) PublicKeys() []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(r.signers))
	for _, s := range r.signers {
		out = append(out, s.PublicKey())
	}
	return out
}

// Contains reports whether pub is one of the registry's identities. Used to
// keep payer/payee identities out of the oracle set.
func (r *Registry) Contains(pub solana.PublicKey) bool {
	for _, s := range r.signers {
		if s.PublicKey().Equals(pub) {
			return true
		}
	}
	return false
}

// ScoreFunc produces oracle i's quality score for the response under
// assessment. Oracles score independently; a ScoreFunc must not let one
// oracle observe another's score. The context is the collection's context:
// implementations must return when it is cancelled so no worker outlives
// the CollectAssessments call.
type ScoreFunc func(ctx context.Context, oracleIndex int) (uint8, error)

// FixedScores adapts a pre-decided score list to a ScoreFunc.
func FixedScores(scores []uint8) ScoreFunc {
	return func(_ context.Context, i int) (uint8, error) {
		if i < 0 || i >= len(scores) {
			return 0, protocol.Errf(protocol.ERR_INPUT, "no score for oracle %d", i)
		}
		return scores[i], nil
	}
}

// CollectAssessments has every oracle in the registry sign concurrently and
// blocks until the full set is in. Partial sets are never returned: if any
// oracle fails or the context is cancelled, the whole collection fails.
func (r *Registry) CollectAssessments(ctx context.Context, transactionID string, score ScoreFunc) ([]*Assessment, error) {
	if err := protocol.ValidateTransactionID(transactionID); err != nil {
		return nil, err
	}
	if score == nil {
		return nil, protocol.Errf(protocol.ERR_INPUT, "oracle registry: nil score func")
	}

	out := make([]*Assessment, len(r.signers))
	errs := make([]error, len(r.signers))
	var wg sync.WaitGroup
	for i, s := range r.signers {
		wg.Add(1)
		go func(i int, s *Signer) {
			defer wg.Done()
			sc, err := score(ctx, i)
			if err != nil {
				errs[i] = fmt.Errorf("oracle %d score: %w", i, err)
				return
			}
			a, err := s.Assess(transactionID, sc)
			if err != nil {
				errs[i] = fmt.Errorf("oracle %d: %w", i, err)
				return
			}
			out[i] = a
		}(i, s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	for _, a := range out {
		if err := a.VerifyFor(transactionID); err != nil {
			return nil, err
		}
	}
	return out, nil
}
