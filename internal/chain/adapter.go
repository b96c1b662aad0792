package chain

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/spec-kit/incident-coordinator/internal/domain"
)

// Op enumerates the ledger operations the coordinator can submit.
type Op string

const (
	OpApprove               Op = "approve"
	OpCreateTicket          Op = "create_ticket"
	OpStake                 Op = "stake"
	OpAssignAnalyst         Op = "assign_analyst"
	OpSubmitReport          Op = "submit_report"
	OpAssignCertifier       Op = "assign_certifier"
	OpValidateAndDistribute Op = "validate_and_distribute"
	OpRejectReport          Op = "reject_report"
)

// TxRequest describes one funded transaction. Params carry op-specific
// arguments (target address, report hash, distribution shares).
type TxRequest struct {
	Op        Op
	Actor     string
	TicketRef string
	PoolRef   string
	Amount    *big.Int
	Params    map[string]string
}

// TxHandle identifies a broadcast transaction whose outcome may still be
// unknown. It cannot be cancelled; only re-queried.
type TxHandle struct {
	Chain       domain.Chain
	TxRef       string
	SubmittedAt time.Time
}

// Receipt is the confirmed outcome of a transaction.
type Receipt struct {
	Success  bool
	TxRef    string
	BlockRef string
	Reason   string
	Record   *OnChainRecord
}

// OnChainRecord is the ledger's persisted view of a ticket and its pool.
// Reading it is side-effect free: replaying a read for the same reference
// always yields the same result.
type OnChainRecord struct {
	TicketRef    string
	PoolRef      string
	Status       domain.TicketStatus
	Client       string
	Analyst      string
	Certifier    string
	RewardAmount *big.Int
	TotalStaked  *big.Int
	TxRef        string
	BlockRef     string
}

// ErrRecordNotFound is returned by ReadRecord when the ledger has no record
// for the reference.
var ErrRecordNotFound = errors.New("on-chain record not found")

// Adapter is the uniform ledger boundary. A Timeout from AwaitReceipt does
// not imply failure: callers must re-read on-chain state before retrying
// rather than resubmitting, to avoid double submission.
type Adapter interface {
	Chain() domain.Chain
	SubmitFundedTransaction(ctx context.Context, req TxRequest) (*TxHandle, error)
	AwaitReceipt(ctx context.Context, handle *TxHandle, timeout time.Duration) (*Receipt, error)
	ReadRecord(ctx context.Context, ref string) (*OnChainRecord, error)
	ReadPool(ctx context.Context, poolRef string) (*domain.PoolState, error)
	ExplorerURL(txRef string) string
}
