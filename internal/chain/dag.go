package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/incident-coordinator/internal/config"
	"github.com/spec-kit/incident-coordinator/internal/domain"
)

// DAGAdapter talks to a feeless DAG ledger node. Transactions are units
// attached to the tangle; finality means the unit is referenced by a
// milestone. There is no allowance step: approve ops complete locally
// without touching the ledger.
type DAGAdapter struct {
	client      *nodeClient
	explorerURL string
}

// NewDAGAdapter builds the adapter from chain configuration.
func NewDAGAdapter(cfg config.ChainConfig) *DAGAdapter {
	return &DAGAdapter{
		client:      newNodeClient(cfg.Endpoint, cfg.ContractRef),
		explorerURL: cfg.ExplorerURLTemplate,
	}
}

// Chain identifies the ledger.
func (a *DAGAdapter) Chain() domain.Chain {
	return domain.ChainDAG
}

// SubmitFundedTransaction attaches one unit to the tangle.
func (a *DAGAdapter) SubmitFundedTransaction(ctx context.Context, req TxRequest) (*TxHandle, error) {
	if req.Op == OpApprove {
		// Feeless ledger: no token allowance exists, the stake op moves
		// value directly.
		return &TxHandle{Chain: domain.ChainDAG, TxRef: "", SubmittedAt: time.Now()}, nil
	}

	actor, err := domain.NormalizeAddress(domain.ChainDAG, req.Actor)
	if err != nil {
		return nil, fmt.Errorf("invalid actor address: %w", err)
	}
	req.Actor = actor

	unitRef, err := a.client.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return &TxHandle{Chain: domain.ChainDAG, TxRef: unitRef, SubmittedAt: time.Now()}, nil
}

// AwaitReceipt blocks until the unit is milestone-confirmed or timeout.
func (a *DAGAdapter) AwaitReceipt(ctx context.Context, handle *TxHandle, timeout time.Duration) (*Receipt, error) {
	if handle.TxRef == "" {
		// Local no-op handle from the approve shortcut.
		return &Receipt{Success: true}, nil
	}

	status, err := a.client.awaitReceipt(ctx, handle.TxRef, timeout)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		Success:  status.Status == "confirmed",
		TxRef:    handle.TxRef,
		BlockRef: status.BlockRef,
		Reason:   status.Reason,
	}
	if status.Record != nil {
		record, err := recordFromBody(status.Record)
		if err != nil {
			return nil, err
		}
		receipt.Record = record
	}
	return receipt, nil
}

// ReadRecord fetches the program's persisted ticket record.
func (a *DAGAdapter) ReadRecord(ctx context.Context, ref string) (*OnChainRecord, error) {
	body, err := a.client.readRecord(ctx, ref)
	if err != nil {
		return nil, err
	}
	return recordFromBody(body)
}

// ReadPool fetches the staking pool's on-ledger totals.
func (a *DAGAdapter) ReadPool(ctx context.Context, poolRef string) (*domain.PoolState, error) {
	body, err := a.client.readPool(ctx, poolRef)
	if err != nil {
		return nil, err
	}
	return poolFromBody(body)
}

// ExplorerURL renders an audit link for a unit. Display only.
func (a *DAGAdapter) ExplorerURL(txRef string) string {
	return fmt.Sprintf(a.explorerURL, txRef)
}
