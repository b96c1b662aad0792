package coordinator

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-coordinator/internal/accountant"
	"github.com/spec-kit/incident-coordinator/internal/domain"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

const poolStatsTTL = 30 * time.Second

// PoolStats is the read model for one ticket's collateral pool. Totals come
// from the ledger; positions and shares are the local mirror.
type PoolStats struct {
	PoolRef            string              `json:"pool_ref"`
	TotalStaked        string              `json:"total_staked"`
	RequiredCollateral string              `json:"required_collateral"`
	RewardRate         string              `json:"reward_rate"`
	RewardPaid         string              `json:"reward_paid"`
	Positions          []PoolShare         `json:"positions"`
	Status             domain.TicketStatus `json:"ticket_status"`
}

// PoolShare is one staker's slice of the pool. PendingReward is the accrual
// since pool creation net of reward already paid out.
type PoolShare struct {
	Staker        string `json:"staker"`
	Amount        string `json:"amount"`
	Share         string `json:"share"`
	RewardDebt    string `json:"reward_debt"`
	PendingReward string `json:"pending_reward"`
}

// PoolStats reads the ticket's pool state, caching the chain read briefly:
// pool totals are dashboard data, not transition preconditions.
func (c *Coordinator) PoolStats(ctx context.Context, ticketID string) (*PoolStats, error) {
	ticket, err := c.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.StakingPoolRef == "" {
		return nil, apperrors.NewPreconditionViolation("ticket has no confirmed pool yet", nil)
	}

	cacheKey := "pool:stats:" + ticket.StakingPoolRef
	if c.cache != nil {
		if payload, hit, err := c.cache.CacheGet(ctx, cacheKey); err == nil && hit {
			var stats PoolStats
			if json.Unmarshal(payload, &stats) == nil {
				return &stats, nil
			}
		}
	}

	adapter, err := c.adapter(ticket.Chain)
	if err != nil {
		return nil, err
	}
	pool, err := adapter.ReadPool(ctx, ticket.StakingPoolRef)
	if err != nil {
		return nil, err
	}
	positions, err := c.stakes.ListByPool(ctx, ticket.StakingPoolRef)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}

	stats := &PoolStats{
		PoolRef:            pool.Ref,
		TotalStaked:        pool.TotalStaked.String(),
		RequiredCollateral: accountant.RequiredCollateral(ticket.Severity).String(),
		RewardRate:         pool.RewardRate.String(),
		RewardPaid:         pool.RewardPaid.String(),
		Status:             ticket.Status,
	}
	for i := range positions {
		share := accountant.ComputeShare(pool.TotalStaked, positions[i].Amount)
		pending := accountant.ComputeReward(pool.RewardRate, pool.BlockHeight, share, positions[i].RewardDebt)
		stats.Positions = append(stats.Positions, PoolShare{
			Staker:        positions[i].Staker,
			Amount:        positions[i].Amount.String(),
			Share:         share.String(),
			RewardDebt:    positions[i].RewardDebt.String(),
			PendingReward: pending.String(),
		})
	}

	if c.cache != nil {
		if payload, err := json.Marshal(stats); err == nil {
			if err := c.cache.CacheSet(ctx, cacheKey, payload, poolStatsTTL); err != nil {
				c.logger.Debug("pool stats cache write failed", zap.Error(err))
			}
		}
	}
	return stats, nil
}
