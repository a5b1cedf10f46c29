package escrow

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"verdict.dev/client/protocol"
)

// maxTransactionBytes is the ledger's packet-size ceiling for one serialized
// submission.
const maxTransactionBytes = 1232

// submitInstructions combines the given instructions into one atomic
// versioned submission: fetch a fresh blockhash, build a v0 message with the
// client's payer as the single fee payer, dry-run it, broadcast, and wait for
// confirmation within the blockhash validity window.
//
// The versioned format is required rather than optional: signature
// verification instructions scale linearly with oracle count, and the legacy
// fixed-capacity format runs out of room past two or three oracles.
func (c *Client) submitInstructions(ctx context.Context, op string, instrs []solana.Instruction) (solana.Signature, error) {
	if len(instrs) == 0 {
		return solana.Signature{}, protocol.Errf(protocol.ERR_INPUT, "%s: no instructions", op)
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		c.cfg.Metrics.observeSubmission(op, "rejected")
		return solana.Signature{}, protocol.Errf(protocol.ERR_NETWORK, "%s: latest blockhash: %v", op, err)
	}

	payer := c.cfg.Payer.PublicKey()
	tx, err := solana.NewTransaction(instrs, recent.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		c.cfg.Metrics.observeSubmission(op, "rejected")
		return solana.Signature{}, protocol.Errf(protocol.ERR_INPUT, "%s: build transaction: %v", op, err)
	}
	tx.Message.SetVersion(solana.MessageVersionV0)

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			k := c.cfg.Payer
			return &k
		}
		return nil
	}); err != nil {
		c.cfg.Metrics.observeSubmission(op, "rejected")
		return solana.Signature{}, protocol.Errf(protocol.ERR_INPUT, "%s: sign: %v", op, err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		c.cfg.Metrics.observeSubmission(op, "rejected")
		return solana.Signature{}, protocol.Errf(protocol.ERR_ENCODING, "%s: serialize: %v", op, err)
	}
	if len(raw) > maxTransactionBytes {
		c.cfg.Metrics.observeSubmission(op, "rejected")
		return solana.Signature{}, protocol.Errf(protocol.ERR_INPUT, "%s: submission of %d bytes exceeds the %d-byte packet limit", op, len(raw), maxTransactionBytes)
	}

	sim, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		Commitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		c.cfg.Metrics.observeSubmission(op, "rejected")
		return solana.Signature{}, protocol.Errf(protocol.ERR_NETWORK, "%s: simulate: %v", op, err)
	}
	if sim.Value.Err != nil {
		c.cfg.Metrics.observeSubmission(op, "rejected")
		return solana.Signature{}, translateSimulationError(sim.Value.Err, sim.Value.Logs)
	}

	// Preflight already happened above; skip the node's duplicate run.
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		c.cfg.Metrics.observeSubmission(op, "rejected")
		return solana.Signature{}, protocol.Errf(protocol.ERR_NETWORK, "%s: send: %v", op, err)
	}
	c.log.Debugf("%s: broadcast %s (valid through height %d)", op, sig, recent.Value.LastValidBlockHeight)

	if err := c.waitForConfirmation(ctx, sig, recent.Value.LastValidBlockHeight); err != nil {
		if protocol.IsCode(err, protocol.ERR_UNCONFIRMED) {
			c.cfg.Metrics.observeSubmission(op, "unconfirmed")
		} else {
			c.cfg.Metrics.observeSubmission(op, "rejected")
		}
		return sig, err
	}
	c.cfg.Metrics.observeSubmission(op, "confirmed")
	return sig, nil
}

// waitForConfirmation polls signature status until the submission confirms
// or the blockhash validity window closes. Expiry is indeterminate, not
// failure: the transaction may still have landed, so the caller must re-query
// state. The same signed payload is never re-broadcast; a retry needs a fresh
// blockhash.
func (c *Client) waitForConfirmation(ctx context.Context, sig solana.Signature, lastValidHeight uint64) error {
	ticker := time.NewTicker(c.cfg.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			st := statuses.Value[0]
			if st.Err != nil {
				return translateSimulationError(st.Err, nil)
			}
			switch st.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}
		if err != nil {
			c.log.Debugf("confirmation poll: %v", err)
		}

		height, err := c.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
		if err == nil && height > lastValidHeight {
			return protocol.Errf(protocol.ERR_UNCONFIRMED, "submission %s not confirmed within the validity window (height %d > %d)", sig, height, lastValidHeight)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
