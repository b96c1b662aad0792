package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-coordinator/internal/domain"
)

// RoleRepository persists address-to-role bindings. Insert never overwrites:
// inserted reports false when the address already holds a role.
type RoleRepository interface {
	Insert(ctx context.Context, binding *domain.RoleBinding) (inserted bool, err error)
	Get(ctx context.Context, address string) (*domain.RoleBinding, error)
}

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository instantiates repository.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) Insert(ctx context.Context, binding *domain.RoleBinding) (bool, error) {
	const query = `
        INSERT INTO roles (address, role)
        VALUES ($1,$2)
        ON CONFLICT (address) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, binding.Address, binding.Role)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *roleRepository) Get(ctx context.Context, address string) (*domain.RoleBinding, error) {
	const query = `SELECT address, role, assigned_at FROM roles WHERE address=$1`
	var binding domain.RoleBinding
	if err := r.pool.QueryRow(ctx, query, address).Scan(
		&binding.Address,
		&binding.Role,
		&binding.AssignedAt,
	); err != nil {
		return nil, err
	}
	return &binding, nil
}
