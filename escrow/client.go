// Package escrow drives the escrow lifecycle against the remote ledger:
// create → (dispute → resolve) | release, plus reputation bootstrap and
// read-only history views.
package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/decred/slog"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"verdict.dev/client/consensus"
	"verdict.dev/client/oracle"
	"verdict.dev/client/protocol"
	"verdict.dev/client/store"
)

// ledgerRPC is the slice of the node's RPC surface the client drives.
// *rpc.Client satisfies it; tests substitute in-memory fakes.
type ledgerRPC interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SimulateTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts *rpc.SimulateTransactionOpts) (*rpc.SimulateTransactionResponse, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetSignaturesForAddressWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
}

type Client struct {
	cfg     Config
	rpc     ledgerRPC
	log     slog.Logger
	journal *store.Journal
}

func New(cfg Config) (*Client, error) {
	if cfg.Log == nil {
		cfg.Log = slog.Disabled
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	c := &Client{
		cfg: cfg,
		rpc: rpc.New(cfg.RPCURL),
		log: cfg.Log,
	}
	if cfg.JournalPath != "" {
		j, err := store.Open(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		c.journal = j
	}
	return c, nil
}

func (c *Client) Close() error {
	if c.journal != nil {
		return c.journal.Close()
	}
	return nil
}

func (c *Client) Payer() solana.PublicKey {
	return c.cfg.Payer.PublicKey()
}

// EscrowAddress derives the escrow account address for a transaction id.
func (c *Client) EscrowAddress(transactionID string) (solana.PublicKey, uint8, error) {
	return protocol.DeriveEscrow(c.cfg.ProgramID, transactionID)
}

// fetchAccountData reads raw account bytes; exists=false means no account at
// that address.
func (c *Client) fetchAccountData(ctx context.Context, addr solana.PublicKey) ([]byte, bool, error) {
	out, err := c.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, protocol.Errf(protocol.ERR_NETWORK, "read account %s: %v", addr, err)
	}
	if out == nil || out.Value == nil {
		return nil, false, nil
	}
	return out.Value.Data.GetBinary(), true, nil
}

// FetchEscrow reads and decodes the escrow account for a transaction id.
func (c *Client) FetchEscrow(ctx context.Context, transactionID string) (*protocol.EscrowAccount, error) {
	addr, _, err := c.EscrowAddress(transactionID)
	if err != nil {
		return nil, err
	}
	data, exists, err := c.fetchAccountData(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, protocol.Errf(protocol.ERR_PRECONDITION, "no escrow for transaction id %q", transactionID)
	}
	return protocol.ParseEscrowAccount(data)
}

type CreateResult struct {
	TransactionID string
	Escrow        solana.PublicKey
	Bump          uint8
	Signature     solana.Signature // zero when AlreadyExists
	AlreadyExists bool
}

// CreateEscrow locks a payment pending the quality verdict. Creation is
// idempotent: if an escrow already exists for the transaction id — whether
// found up front or created by a concurrent racer — the call reports success
// with AlreadyExists set instead of failing.
func (c *Client) CreateEscrow(ctx context.Context, payee solana.PublicKey, amount uint64, timeLock time.Duration, transactionID string) (*CreateResult, error) {
	if payee.IsZero() {
		return nil, protocol.Errf(protocol.ERR_INPUT, "create: payee is required")
	}
	if payee.Equals(c.Payer()) {
		return nil, protocol.Errf(protocol.ERR_INPUT, "create: payer and payee must differ")
	}
	timeLockSecs := int64(timeLock / time.Second)

	addr, bump, err := c.EscrowAddress(transactionID)
	if err != nil {
		return nil, err
	}
	res := &CreateResult{TransactionID: transactionID, Escrow: addr, Bump: bump}

	// Check-then-act with race tolerance: a concurrent creator winning is
	// success, not failure.
	if _, exists, err := c.fetchAccountData(ctx, addr); err != nil {
		return nil, err
	} else if exists {
		c.log.Infof("create %s: escrow %s already exists, treating as no-op", transactionID, addr)
		c.cfg.Metrics.observeSubmission("create_escrow", "noop")
		res.AlreadyExists = true
		return res, nil
	}

	ix, err := protocol.NewCreateEscrowInstruction(c.cfg.ProgramID, c.Payer(), payee, addr, amount, timeLockSecs, transactionID)
	if err != nil {
		return nil, err
	}
	sig, err := c.submitInstructions(ctx, "create_escrow", []solana.Instruction{ix})
	if err != nil {
		var pe *ProgramError
		if errors.As(err, &pe) && pe.Code == codeEscrowAlreadyExists {
			res.AlreadyExists = true
			return res, nil
		}
		return nil, err
	}
	res.Signature = sig
	c.recordEvent(transactionID, "create_escrow", sig.String(), "")
	return res, nil
}

// MarkDisputed moves an active escrow into the disputed state. Only valid
// while the escrow is Active and the dispute window has not elapsed.
func (c *Client) MarkDisputed(ctx context.Context, transactionID string) (solana.Signature, error) {
	acc, err := c.FetchEscrow(ctx, transactionID)
	if err != nil {
		return solana.Signature{}, err
	}
	if !acc.Status.CanTransition(protocol.StatusDisputed) {
		return solana.Signature{}, protocol.Errf(protocol.ERR_PRECONDITION, "cannot dispute escrow in status %s", acc.Status)
	}
	if now := time.Now().Unix(); now >= acc.ExpiresAt {
		return solana.Signature{}, protocol.Errf(protocol.ERR_PRECONDITION, "dispute window elapsed at %d (now %d)", acc.ExpiresAt, now)
	}

	addr, _, err := c.EscrowAddress(transactionID)
	if err != nil {
		return solana.Signature{}, err
	}
	ix := protocol.NewMarkDisputedInstruction(c.cfg.ProgramID, c.Payer(), addr)
	sig, err := c.submitInstructions(ctx, "mark_disputed", []solana.Instruction{ix})
	if err != nil {
		return solana.Signature{}, err
	}
	c.recordEvent(transactionID, "mark_disputed", sig.String(), "")
	return sig, nil
}

type ResolveResult struct {
	Consensus   *consensus.Result
	Submissions int
	Signature   solana.Signature
}

// ResolveWithConsensus aggregates the oracle assessments, and — when
// consensus holds — submits the resolve instruction alongside one signature
// verification instruction per assessment, all in one atomic submission.
//
// The full set of assessments must be in hand: partial sets are never
// submitted. Failed consensus rejects resolution outright rather than
// resolving with an untrusted median.
func (c *Client) ResolveWithConsensus(ctx context.Context, transactionID string, assessments []*oracle.Assessment) (*ResolveResult, error) {
	if len(assessments) < c.cfg.MinOracles {
		return nil, protocol.Errf(protocol.ERR_PRECONDITION, "resolve: %d oracle submissions, need at least %d", len(assessments), c.cfg.MinOracles)
	}

	acc, err := c.FetchEscrow(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !acc.Status.CanTransition(protocol.StatusResolved) {
		return nil, protocol.Errf(protocol.ERR_PRECONDITION, "cannot resolve escrow in status %s", acc.Status)
	}

	scores := make([]uint8, 0, len(assessments))
	seen := make(map[solana.PublicKey]struct{}, len(assessments))
	for _, a := range assessments {
		if err := a.VerifyFor(transactionID); err != nil {
			return nil, err
		}
		if a.Oracle.Equals(acc.Payer) || a.Oracle.Equals(acc.Payee) {
			return nil, protocol.Errf(protocol.ERR_PRECONDITION, "resolve: oracle %s is a transaction party", a.Oracle)
		}
		if _, dup := seen[a.Oracle]; dup {
			return nil, protocol.Errf(protocol.ERR_PRECONDITION, "resolve: duplicate assessment from oracle %s", a.Oracle)
		}
		seen[a.Oracle] = struct{}{}
		scores = append(scores, a.Score)
	}

	result, err := consensus.Compute(scores, c.cfg.MaxDeviationPct)
	if err != nil {
		return nil, err
	}
	c.cfg.Metrics.observeConsensus(result.Reached, result.DeviationPct, result.RefundPct)
	if !result.Reached {
		return nil, protocol.Errf(protocol.ERR_PRECONDITION, "resolve: deviation %.2f%% exceeds threshold %.2f%%", result.DeviationPct, c.cfg.MaxDeviationPct)
	}

	// Both parties' reputation accounts must exist before the program will
	// accept a resolve referencing them.
	if err := c.InitReputation(ctx, acc.Payer); err != nil {
		return nil, err
	}
	if err := c.InitReputation(ctx, acc.Payee); err != nil {
		return nil, err
	}

	escrowAddr, _, err := c.EscrowAddress(transactionID)
	if err != nil {
		return nil, err
	}
	payerRep, _, err := protocol.DeriveReputation(c.cfg.ProgramID, acc.Payer)
	if err != nil {
		return nil, err
	}
	payeeRep, _, err := protocol.DeriveReputation(c.cfg.ProgramID, acc.Payee)
	if err != nil {
		return nil, err
	}
	registry, _, err := protocol.DeriveOracleRegistry(c.cfg.ProgramID)
	if err != nil {
		return nil, err
	}

	instrs := make([]solana.Instruction, 0, len(assessments)+1)
	subs := make([]protocol.OracleSubmission, 0, len(assessments))
	for _, a := range assessments {
		verify, err := protocol.NewVerificationInstruction(a.Oracle, a.Signature, []byte(a.Message))
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, verify)
		subs = append(subs, a.Submission())
	}
	resolveIx, err := protocol.NewResolveInstruction(c.cfg.ProgramID, c.Payer(), escrowAddr, payerRep, payeeRep, registry, subs)
	if err != nil {
		return nil, err
	}
	instrs = append(instrs, resolveIx)

	sig, err := c.submitInstructions(ctx, "resolve", instrs)
	if err != nil {
		return nil, err
	}
	c.recordEvent(transactionID, "resolve", sig.String(), "")
	c.recordAssessments(transactionID, assessments)
	return &ResolveResult{Consensus: result, Submissions: len(subs), Signature: sig}, nil
}

// ReleaseFunds releases an undisputed escrow directly to the payee once the
// time-lock permits. Valid only from the Active state; the program enforces
// the time-lock itself and its refusal surfaces through the simulation
// taxonomy.
func (c *Client) ReleaseFunds(ctx context.Context, transactionID string) (solana.Signature, error) {
	acc, err := c.FetchEscrow(ctx, transactionID)
	if err != nil {
		return solana.Signature{}, err
	}
	if !acc.Status.CanTransition(protocol.StatusReleased) {
		return solana.Signature{}, protocol.Errf(protocol.ERR_PRECONDITION, "cannot release escrow in status %s", acc.Status)
	}

	addr, _, err := c.EscrowAddress(transactionID)
	if err != nil {
		return solana.Signature{}, err
	}
	ix := protocol.NewReleaseFundsInstruction(c.cfg.ProgramID, c.Payer(), acc.Payee, addr)
	sig, err := c.submitInstructions(ctx, "release_funds", []solana.Instruction{ix})
	if err != nil {
		return solana.Signature{}, err
	}
	c.recordEvent(transactionID, "release_funds", sig.String(), "")
	return sig, nil
}

// InitReputation initializes an entity's reputation account if it does not
// exist yet. Losing the creation race to a concurrent initializer is success.
func (c *Client) InitReputation(ctx context.Context, entity solana.PublicKey) error {
	addr, _, err := protocol.DeriveReputation(c.cfg.ProgramID, entity)
	if err != nil {
		return err
	}
	if _, exists, err := c.fetchAccountData(ctx, addr); err != nil {
		return err
	} else if exists {
		return nil
	}

	ix := protocol.NewInitReputationInstruction(c.cfg.ProgramID, c.Payer(), entity, addr)
	if _, err := c.submitInstructions(ctx, "init_reputation", []solana.Instruction{ix}); err != nil {
		var pe *ProgramError
		if errors.As(err, &pe) && pe.Code == codeReputationExists {
			return nil
		}
		return err
	}
	return nil
}

// InitOracleRegistry initializes the singleton registry account; idempotent
// like InitReputation.
func (c *Client) InitOracleRegistry(ctx context.Context) error {
	addr, _, err := protocol.DeriveOracleRegistry(c.cfg.ProgramID)
	if err != nil {
		return err
	}
	if _, exists, err := c.fetchAccountData(ctx, addr); err != nil {
		return err
	} else if exists {
		return nil
	}

	ix := protocol.NewInitOracleRegistryInstruction(c.cfg.ProgramID, c.Payer(), addr)
	if _, err := c.submitInstructions(ctx, "init_oracle_registry", []solana.Instruction{ix}); err != nil {
		var pe *ProgramError
		if errors.As(err, &pe) && pe.Code == codeRegistryExists {
			return nil
		}
		return err
	}
	return nil
}

// FetchReputation reads and decodes an entity's reputation account.
func (c *Client) FetchReputation(ctx context.Context, entity solana.PublicKey) (*protocol.ReputationAccount, error) {
	addr, _, err := protocol.DeriveReputation(c.cfg.ProgramID, entity)
	if err != nil {
		return nil, err
	}
	data, exists, err := c.fetchAccountData(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, protocol.Errf(protocol.ERR_PRECONDITION, "no reputation account for %s", entity)
	}
	return protocol.ParseReputationAccount(data)
}

// RecentSignatures lists recent submissions touching the program's address,
// for read-only history views.
func (c *Client) RecentSignatures(ctx context.Context, limit int) ([]*rpc.TransactionSignature, error) {
	if limit <= 0 {
		return nil, protocol.Errf(protocol.ERR_INPUT, "history: limit must be > 0")
	}
	out, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, c.cfg.ProgramID, &rpc.GetSignaturesForAddressOpts{
		Limit: &limit,
	})
	if err != nil {
		return nil, protocol.Errf(protocol.ERR_NETWORK, "history: %v", err)
	}
	return out, nil
}

// JournalEvents returns the locally recorded lifecycle steps for a
// transaction id. Empty without a configured journal.
func (c *Client) JournalEvents(transactionID string) ([]store.Event, error) {
	if c.journal == nil {
		return nil, nil
	}
	return c.journal.Events(transactionID)
}

func (c *Client) recordEvent(transactionID, op, sig, note string) {
	if c.journal == nil {
		return
	}
	err := c.journal.AppendEvent(store.Event{
		TransactionID: transactionID,
		Op:            op,
		Signature:     sig,
		Note:          note,
		At:            time.Now().UTC(),
	})
	if err != nil {
		c.log.Warnf("journal: %v", err)
	}
}

func (c *Client) recordAssessments(transactionID string, assessments []*oracle.Assessment) {
	if c.journal == nil {
		return
	}
	recs := make([]store.AssessmentRecord, 0, len(assessments))
	for _, a := range assessments {
		recs = append(recs, store.AssessmentRecord{
			Oracle:    a.Oracle.String(),
			Score:     a.Score,
			Message:   a.Message,
			Signature: a.Signature.String(),
		})
	}
	if err := c.journal.PutAssessments(transactionID, recs); err != nil {
		c.log.Warnf("journal: %v", err)
	}
}
