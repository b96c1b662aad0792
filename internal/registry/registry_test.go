package registry

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-coordinator/internal/domain"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

type fakeRoleRepo struct {
	bindings map[string]*domain.RoleBinding
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{bindings: make(map[string]*domain.RoleBinding)}
}

func (r *fakeRoleRepo) Insert(_ context.Context, binding *domain.RoleBinding) (bool, error) {
	if _, exists := r.bindings[binding.Address]; exists {
		return false, nil
	}
	r.bindings[binding.Address] = binding
	return true, nil
}

func (r *fakeRoleRepo) Get(_ context.Context, address string) (*domain.RoleBinding, error) {
	binding, ok := r.bindings[address]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return binding, nil
}

func TestAssign(t *testing.T) {
	reg := NewRoleRegistry(newFakeRoleRepo())

	binding, err := reg.Assign(context.Background(), "0xabc", domain.RoleAnalyst)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAnalyst, binding.Role)

	got, err := reg.Get(context.Background(), "0xabc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.RoleAnalyst, got.Role)
}

func TestAssignSecondRoleFails(t *testing.T) {
	reg := NewRoleRegistry(newFakeRoleRepo())

	_, err := reg.Assign(context.Background(), "0xabc", domain.RoleAnalyst)
	require.NoError(t, err)

	// A different role is refused.
	_, err = reg.Assign(context.Background(), "0xabc", domain.RoleCertifier)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyHasRole))

	// Re-assigning the same role is refused too.
	_, err = reg.Assign(context.Background(), "0xabc", domain.RoleAnalyst)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyHasRole))

	// The original binding is untouched.
	got, err := reg.Get(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAnalyst, got.Role)
}

func TestAssignUnknownRole(t *testing.T) {
	reg := NewRoleRegistry(newFakeRoleRepo())

	_, err := reg.Assign(context.Background(), "0xabc", domain.Role("SUPERVISOR"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestGetUnassigned(t *testing.T) {
	reg := NewRoleRegistry(newFakeRoleRepo())

	binding, err := reg.Get(context.Background(), "0xnobody")
	require.NoError(t, err)
	assert.Nil(t, binding)
}

func TestRequire(t *testing.T) {
	reg := NewRoleRegistry(newFakeRoleRepo())

	_, err := reg.Assign(context.Background(), "0xabc", domain.RoleCertifier)
	require.NoError(t, err)

	assert.NoError(t, reg.Require(context.Background(), "0xabc", domain.RoleCertifier))

	err = reg.Require(context.Background(), "0xabc", domain.RoleAnalyst)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRoleViolation))

	err = reg.Require(context.Background(), "0xnobody", domain.RoleClient)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRoleViolation))
}
