package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/spec-kit/incident-coordinator/internal/domain"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

const receiptPollInterval = 2 * time.Second

// nodeClient handles JSON-over-HTTP communication with one ledger node.
type nodeClient struct {
	endpoint    string
	contractRef string
	httpClient  *http.Client
}

func newNodeClient(endpoint, contractRef string) *nodeClient {
	return &nodeClient{
		endpoint:    endpoint,
		contractRef: contractRef,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type submitRequest struct {
	Contract  string            `json:"contract"`
	Op        string            `json:"op"`
	Actor     string            `json:"actor"`
	TicketRef string            `json:"ticket_ref,omitempty"`
	PoolRef   string            `json:"pool_ref,omitempty"`
	Amount    string            `json:"amount,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

type submitResponse struct {
	TxRef  string `json:"tx_ref"`
	Status string `json:"status"`
}

type txStatusResponse struct {
	Status   string      `json:"status"`
	BlockRef string      `json:"block_ref"`
	Reason   string      `json:"reason,omitempty"`
	Record   *recordBody `json:"record,omitempty"`
}

type recordBody struct {
	TicketRef    string `json:"ticket_ref"`
	PoolRef      string `json:"pool_ref"`
	Status       string `json:"status"`
	Client       string `json:"client"`
	Analyst      string `json:"analyst,omitempty"`
	Certifier    string `json:"certifier,omitempty"`
	RewardAmount string `json:"reward_amount"`
	TotalStaked  string `json:"total_staked"`
	TxRef        string `json:"tx_ref"`
	BlockRef     string `json:"block_ref"`
}

type poolBody struct {
	PoolRef     string `json:"pool_ref"`
	TotalStaked string `json:"total_staked"`
	RewardRate  string `json:"reward_rate"`
	RewardPaid  string `json:"reward_paid"`
	BlockRef    string `json:"block_ref"`
	BlockHeight uint64 `json:"block_height"`
}

type nodeErrorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (c *nodeClient) submit(ctx context.Context, req TxRequest) (string, error) {
	body := submitRequest{
		Contract:  c.contractRef,
		Op:        string(req.Op),
		Actor:     req.Actor,
		TicketRef: req.TicketRef,
		PoolRef:   req.PoolRef,
		Params:    req.Params,
	}
	if req.Amount != nil {
		body.Amount = req.Amount.String()
	}

	var resp submitResponse
	if err := c.post(ctx, "/v1/transactions", body, &resp); err != nil {
		return "", err
	}
	if resp.TxRef == "" {
		return "", apperrors.NewChainError(apperrors.CodeChainNetwork, "node returned empty tx ref")
	}
	return resp.TxRef, nil
}

// awaitReceipt polls transaction status until finality or deadline. On
// deadline the transaction's true outcome is unknown and a Timeout error is
// returned; the caller must re-query, never resubmit.
func (c *nodeClient) awaitReceipt(ctx context.Context, txRef string, timeout time.Duration) (*txStatusResponse, error) {
	deadline := time.Now().Add(timeout)
	for {
		var status txStatusResponse
		err := c.get(ctx, "/v1/transactions/"+txRef, &status)
		if err == nil && status.Status != "pending" {
			return &status, nil
		}
		if err != nil && !apperrors.HasCode(err, apperrors.CodeChainNetwork) && err != ErrRecordNotFound {
			return nil, err
		}

		if time.Now().After(deadline) {
			return nil, apperrors.NewChainError(apperrors.CodeChainTimeout, fmt.Sprintf("no finality for %s within %s", txRef, timeout))
		}
		select {
		case <-ctx.Done():
			return nil, apperrors.NewChainError(apperrors.CodeChainTimeout, ctx.Err().Error())
		case <-time.After(receiptPollInterval):
		}
	}
}

func (c *nodeClient) readRecord(ctx context.Context, ref string) (*recordBody, error) {
	var record recordBody
	if err := c.get(ctx, "/v1/records/"+ref, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *nodeClient) readPool(ctx context.Context, poolRef string) (*poolBody, error) {
	var pool poolBody
	if err := c.get(ctx, "/v1/pools/"+poolRef, &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

func (c *nodeClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *nodeClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.do(req, out)
}

func (c *nodeClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewChainError(apperrors.CodeChainNetwork, err.Error())
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewChainError(apperrors.CodeChainNetwork, err.Error())
	}

	if resp.StatusCode >= 400 {
		return c.mapNodeError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewChainError(apperrors.CodeChainNetwork, fmt.Sprintf("malformed node response: %v", err))
	}
	return nil
}

func (c *nodeClient) mapNodeError(status int, raw []byte) error {
	var body nodeErrorBody
	_ = json.Unmarshal(raw, &body)
	reason := body.Reason
	if reason == "" {
		reason = body.Error
	}

	switch status {
	case http.StatusNotFound:
		return ErrRecordNotFound
	case http.StatusPaymentRequired:
		return apperrors.NewChainError(apperrors.CodeChainInsufficientFunds, reason)
	case http.StatusConflict:
		return apperrors.NewChainError(apperrors.CodeChainRejected, reason)
	case http.StatusUnprocessableEntity:
		return apperrors.NewChainError(apperrors.CodeChainReverted, reason)
	default:
		return apperrors.NewChainError(apperrors.CodeChainNetwork, fmt.Sprintf("node status %d: %s", status, reason))
	}
}

func recordFromBody(body *recordBody) (*OnChainRecord, error) {
	rewardAmount, err := parseAmount(body.RewardAmount)
	if err != nil {
		return nil, err
	}
	totalStaked, err := parseAmount(body.TotalStaked)
	if err != nil {
		return nil, err
	}
	return &OnChainRecord{
		TicketRef:    body.TicketRef,
		PoolRef:      body.PoolRef,
		Status:       domain.TicketStatus(body.Status),
		Client:       body.Client,
		Analyst:      body.Analyst,
		Certifier:    body.Certifier,
		RewardAmount: rewardAmount,
		TotalStaked:  totalStaked,
		TxRef:        body.TxRef,
		BlockRef:     body.BlockRef,
	}, nil
}

func poolFromBody(body *poolBody) (*domain.PoolState, error) {
	totalStaked, err := parseAmount(body.TotalStaked)
	if err != nil {
		return nil, err
	}
	rewardRate, err := parseAmount(body.RewardRate)
	if err != nil {
		return nil, err
	}
	rewardPaid, err := parseAmount(body.RewardPaid)
	if err != nil {
		return nil, err
	}
	return &domain.PoolState{
		Ref:         body.PoolRef,
		TotalStaked: totalStaked,
		RewardRate:  rewardRate,
		RewardPaid:  rewardPaid,
		BlockRef:    body.BlockRef,
		BlockHeight: body.BlockHeight,
	}, nil
}

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, apperrors.NewChainError(apperrors.CodeChainNetwork, fmt.Sprintf("node returned invalid amount %q", value))
	}
	return amount, nil
}
