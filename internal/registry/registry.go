// Package registry enforces the one-role-per-address rule. Roles are stable
// for the lifetime of the system; certifier/analyst exclusivity on a ticket
// leans on that stability.
package registry

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-coordinator/internal/domain"
	"github.com/spec-kit/incident-coordinator/internal/repository"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

// RoleRegistry looks up and assigns participant roles.
type RoleRegistry struct {
	roles repository.RoleRepository
}

// NewRoleRegistry constructs the registry over the role repository.
func NewRoleRegistry(roles repository.RoleRepository) *RoleRegistry {
	return &RoleRegistry{roles: roles}
}

// Assign binds a role to an address. A second assignment attempt always
// fails, even for the same role; reassignment is an explicit administrative
// action that this service does not offer.
func (r *RoleRegistry) Assign(ctx context.Context, address string, role domain.Role) (*domain.RoleBinding, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}

	binding := &domain.RoleBinding{Address: address, Role: role}
	inserted, err := r.roles.Insert(ctx, binding)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	if !inserted {
		existing, err := r.roles.Get(ctx, address)
		details := map[string]any{"address": address}
		if err == nil && existing != nil {
			details["existing_role"] = existing.Role
		}
		return nil, apperrors.NewDomainError(apperrors.CodeAlreadyHasRole, "address already has a role", 409, details)
	}
	return binding, nil
}

// Get returns the address's role binding, or nil when none is assigned.
func (r *RoleRegistry) Get(ctx context.Context, address string) (*domain.RoleBinding, error) {
	binding, err := r.roles.Get(ctx, address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	return binding, nil
}

// Require verifies the address holds the wanted role.
func (r *RoleRegistry) Require(ctx context.Context, address string, want domain.Role) error {
	binding, err := r.Get(ctx, address)
	if err != nil {
		return err
	}
	if binding == nil || binding.Role != want {
		return apperrors.NewRoleViolation("address does not hold required role",
			map[string]any{"address": address, "required": want})
	}
	return nil
}
