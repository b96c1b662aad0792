package repository

import (
	"context"
	"errors"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-coordinator/internal/domain"
)

// StakePositionRepository persists per-(pool, staker) collateral mirrors.
type StakePositionRepository interface {
	Upsert(ctx context.Context, position *domain.StakePosition) error
	Get(ctx context.Context, pool, staker string) (*domain.StakePosition, error)
	ListByPool(ctx context.Context, pool string) ([]domain.StakePosition, error)
	TotalStaked(ctx context.Context, pool string) (*big.Int, error)
}

type stakePositionRepository struct {
	pool *pgxpool.Pool
}

// NewStakePositionRepository instantiates repository.
func NewStakePositionRepository(pool *pgxpool.Pool) StakePositionRepository {
	return &stakePositionRepository{pool: pool}
}

func (r *stakePositionRepository) Upsert(ctx context.Context, position *domain.StakePosition) error {
	const query = `
        INSERT INTO stake_positions (pool_ref, staker_address, amount, reward_debt)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (pool_ref, staker_address)
        DO UPDATE SET amount=EXCLUDED.amount, reward_debt=EXCLUDED.reward_debt, updated_at=NOW()
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		position.Pool,
		position.Staker,
		amountToString(position.Amount),
		amountToString(position.RewardDebt),
	).Scan(&position.UpdatedAt)
}

func (r *stakePositionRepository) Get(ctx context.Context, pool, staker string) (*domain.StakePosition, error) {
	const query = `
        SELECT pool_ref, staker_address, amount, reward_debt, updated_at
        FROM stake_positions WHERE pool_ref=$1 AND staker_address=$2`
	return scanStakePosition(r.pool.QueryRow(ctx, query, pool, staker))
}

func (r *stakePositionRepository) ListByPool(ctx context.Context, pool string) ([]domain.StakePosition, error) {
	const query = `
        SELECT pool_ref, staker_address, amount, reward_debt, updated_at
        FROM stake_positions WHERE pool_ref=$1 ORDER BY staker_address`
	rows, err := r.pool.Query(ctx, query, pool)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StakePosition
	for rows.Next() {
		position, err := scanStakePosition(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *position)
	}
	return result, rows.Err()
}

func (r *stakePositionRepository) TotalStaked(ctx context.Context, pool string) (*big.Int, error) {
	positions, err := r.ListByPool(ctx, pool)
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for i := range positions {
		total.Add(total, positions[i].Amount)
	}
	return total, nil
}

func scanStakePosition(row pgx.Row) (*domain.StakePosition, error) {
	var position domain.StakePosition
	var amount, rewardDebt string
	if err := row.Scan(
		&position.Pool,
		&position.Staker,
		&amount,
		&rewardDebt,
		&position.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}
	var err error
	if position.Amount, err = amountFromString(amount); err != nil {
		return nil, err
	}
	if position.RewardDebt, err = amountFromString(rewardDebt); err != nil {
		return nil, err
	}
	return &position, nil
}
