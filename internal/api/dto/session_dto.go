package dto

import (
	"time"

	"github.com/spec-kit/incident-coordinator/internal/domain"
)

// ConnectRequest payload.
type ConnectRequest struct {
	Chain   domain.Chain `json:"chain"`
	Address string       `json:"address"`
}

// AccountChangeRequest payload for wallet account-switch notifications.
type AccountChangeRequest struct {
	Address string `json:"address"`
}

// SessionResponse describes the active wallet session.
type SessionResponse struct {
	ID          string       `json:"id"`
	Chain       domain.Chain `json:"chain"`
	Address     string       `json:"address"`
	ConnectedAt time.Time    `json:"connected_at"`
	Token       string       `json:"token,omitempty"`
}

// AssignRoleRequest payload.
type AssignRoleRequest struct {
	Address string      `json:"address"`
	Role    domain.Role `json:"role"`
}

// RoleResponse describes an address's role binding.
type RoleResponse struct {
	Address    string      `json:"address"`
	Role       domain.Role `json:"role"`
	AssignedAt time.Time   `json:"assigned_at"`
}
