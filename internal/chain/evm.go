package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/incident-coordinator/internal/config"
	"github.com/spec-kit/incident-coordinator/internal/domain"
)

// EVMAdapter talks to an EVM-compatible chain through a transaction relay
// node. Actor addresses are normalized to EIP-55 before submission so the
// contract sees one canonical spelling per account.
type EVMAdapter struct {
	client      *nodeClient
	explorerURL string
}

// NewEVMAdapter builds the adapter from chain configuration.
func NewEVMAdapter(cfg config.ChainConfig) *EVMAdapter {
	return &EVMAdapter{
		client:      newNodeClient(cfg.Endpoint, cfg.ContractRef),
		explorerURL: cfg.ExplorerURLTemplate,
	}
}

// Chain identifies the ledger.
func (a *EVMAdapter) Chain() domain.Chain {
	return domain.ChainEVM
}

// SubmitFundedTransaction broadcasts one contract call.
func (a *EVMAdapter) SubmitFundedTransaction(ctx context.Context, req TxRequest) (*TxHandle, error) {
	actor, err := domain.NormalizeAddress(domain.ChainEVM, req.Actor)
	if err != nil {
		return nil, fmt.Errorf("invalid actor address: %w", err)
	}
	req.Actor = actor

	txRef, err := a.client.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return &TxHandle{Chain: domain.ChainEVM, TxRef: txRef, SubmittedAt: time.Now()}, nil
}

// AwaitReceipt blocks until finality or timeout.
func (a *EVMAdapter) AwaitReceipt(ctx context.Context, handle *TxHandle, timeout time.Duration) (*Receipt, error) {
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

// ReadRecord fetches the contract's persisted ticket record.
func (a *EVMAdapter) ReadRecord(ctx context.Context, ref string) (*OnChainRecord, error) {
	body, err := a.client.readRecord(ctx, ref)
	if err != nil {
		return nil, err
	}
	return recordFromBody(body)
}

// ReadPool fetches the staking pool's on-chain totals.
func (a *EVMAdapter) ReadPool(ctx context.Context, poolRef string) (*domain.PoolState, error) {
	body, err := a.client.readPool(ctx, poolRef)
	if err != nil {
		return nil, err
	}
	return poolFromBody(body)
}

// ExplorerURL renders an audit link for a transaction. Display only.
func (a *EVMAdapter) ExplorerURL(txRef string) string {
	return fmt.Sprintf(a.explorerURL, txRef)
}
