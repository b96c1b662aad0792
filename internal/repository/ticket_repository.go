package repository

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-coordinator/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Client      *string
	Analyst     *string
	Chain       *domain.Chain
	Statuses    []domain.TicketStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository is the record-store boundary for ticket mirrors. Patch is
// an idempotent upsert of individual fields keyed by ticket id, so retries
// after partial failure are safe.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Patch(ctx context.Context, id string, fields map[string]any) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListPendingReconciliation(ctx context.Context, olderThan time.Time, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, chain, title, description, client_address, analyst_address, certifier_address,
               severity, staking_pool_ref, reward_amount, status, tx_ref,
               pending_reconciliation, pending_action, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (chain, title, description, client_address, severity, staking_pool_ref, reward_amount, status, tx_ref)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Chain,
		ticket.Title,
		ticket.Description,
		ticket.Client,
		ticket.Severity,
		ticket.StakingPoolRef,
		amountToString(ticket.RewardAmount),
		ticket.Status,
		ticket.TxRef,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	row := r.pool.QueryRow(ctx, query, id)
	return scanTicketRow(row)
}

// ticketPatchColumns whitelists patchable fields; anything else is a
// programming error surfaced immediately.
var ticketPatchColumns = map[string]string{
	"analyst":                "analyst_address",
	"certifier":              "certifier_address",
	"status":                 "status",
	"tx_ref":                 "tx_ref",
	"reward_amount":          "reward_amount",
	"staking_pool_ref":       "staking_pool_ref",
	"title":                  "title",
	"description":            "description",
	"severity":               "severity",
	"pending_reconciliation": "pending_reconciliation",
	"pending_action":         "pending_action",
}

func (r *ticketRepository) Patch(ctx context.Context, id string, fields map[string]any) (*domain.Ticket, error) {
	if len(fields) == 0 {
		return r.GetByID(ctx, id)
	}
	sets := make([]string, 0, len(fields)+1)
	args := []any{id}
	for key, value := range fields {
		column, ok := ticketPatchColumns[key]
		if !ok {
			return nil, fmt.Errorf("unpatchable ticket field %q", key)
		}
		if amt, ok := value.(*big.Int); ok {
			value = amountToString(amt)
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	sets = append(sets, "updated_at=NOW()")

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$1 RETURNING %s`,
		strings.Join(sets, ", "), ticketColumns)
	row := r.pool.QueryRow(ctx, query, args...)
	return scanTicketRow(row)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Client != nil {
		args = append(args, *filter.Client)
		clauses = append(clauses, fmt.Sprintf("client_address=$%d", len(args)))
	}
	if filter.Analyst != nil {
		args = append(args, *filter.Analyst)
		clauses = append(clauses, fmt.Sprintf("analyst_address=$%d", len(args)))
	}
	if filter.Chain != nil {
		args = append(args, *filter.Chain)
		clauses = append(clauses, fmt.Sprintf("chain=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListPendingReconciliation(ctx context.Context, olderThan time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets
             WHERE pending_reconciliation AND updated_at <= $1
             ORDER BY updated_at ASC LIMIT %d`, ticketColumns, limit)
	rows, err := r.pool.Query(ctx, query, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicketRow(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var rewardAmount string
	if err := row.Scan(
		&ticket.ID,
		&ticket.Chain,
		&ticket.Title,
		&ticket.Description,
		&ticket.Client,
		&ticket.Analyst,
		&ticket.Certifier,
		&ticket.Severity,
		&ticket.StakingPoolRef,
		&rewardAmount,
		&ticket.Status,
		&ticket.TxRef,
		&ticket.PendingReconciliation,
		&ticket.PendingAction,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	amount, err := amountFromString(rewardAmount)
	if err != nil {
		return nil, err
	}
	ticket.RewardAmount = amount
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

// Amounts are stored as decimal strings; TEXT columns sidestep driver
// numeric codecs for 256-bit values.
func amountToString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func amountFromString(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}
