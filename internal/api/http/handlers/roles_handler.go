package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-coordinator/internal/api/dto"
	"github.com/spec-kit/incident-coordinator/internal/registry"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

// RolesHandler exposes role registry endpoints.
type RolesHandler struct {
	roles *registry.RoleRegistry
}

// NewRolesHandler constructs handler.
func NewRolesHandler(roles *registry.RoleRegistry) *RolesHandler {
	return &RolesHandler{roles: roles}
}

// Assign POST /roles.
func (h *RolesHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Address == "" {
		return apperrors.NewValidationError("address required", nil)
	}
	binding, err := h.roles.Assign(c.UserContext(), req.Address, req.Role)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.RoleResponse{
		Address:    binding.Address,
		Role:       binding.Role,
		AssignedAt: binding.AssignedAt,
	}})
}

// Get GET /roles/:address.
func (h *RolesHandler) Get(c *fiber.Ctx) error {
	binding, err := h.roles.Get(c.UserContext(), c.Params("address"))
	if err != nil {
		return err
	}
	if binding == nil {
		return apperrors.NewNotFound("role", map[string]any{"address": c.Params("address")})
	}
	return c.JSON(fiber.Map{"data": dto.RoleResponse{
		Address:    binding.Address,
		Role:       binding.Role,
		AssignedAt: binding.AssignedAt,
	}})
}
