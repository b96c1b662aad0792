package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-coordinator/internal/api/dto"
	"github.com/spec-kit/incident-coordinator/internal/session"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

// SessionHandler manages wallet session endpoints.
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Connect POST /session/connect.
func (h *SessionHandler) Connect(c *fiber.Ctx) error {
	var req dto.ConnectRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	sess, token, err := h.sessions.Connect(c.UserContext(), req.Chain, req.Address)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.SessionResponse{
		ID:          sess.ID,
		Chain:       sess.Chain,
		Address:     sess.Address,
		ConnectedAt: sess.ConnectedAt,
		Token:       token,
	}})
}

// Disconnect DELETE /session.
func (h *SessionHandler) Disconnect(c *fiber.Ctx) error {
	if err := h.sessions.Disconnect(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Current GET /session.
func (h *SessionHandler) Current(c *fiber.Ctx) error {
	sess := h.sessions.Current()
	if sess == nil {
		return apperrors.NewNotFound("session", nil)
	}
	return c.JSON(fiber.Map{"data": dto.SessionResponse{
		ID:          sess.ID,
		Chain:       sess.Chain,
		Address:     sess.Address,
		ConnectedAt: sess.ConnectedAt,
	}})
}

// AccountChanged POST /session/account-changed. Called by the wallet
// bridge when the user switches accounts in the extension.
func (h *SessionHandler) AccountChanged(c *fiber.Ctx) error {
	var req dto.AccountChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.sessions.HandleAccountChange(c.UserContext(), req.Address); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
