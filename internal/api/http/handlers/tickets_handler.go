package handlers

import (
	"math/big"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-coordinator/internal/api/dto"
	"github.com/spec-kit/incident-coordinator/internal/coordinator"
	"github.com/spec-kit/incident-coordinator/internal/domain"
	"github.com/spec-kit/incident-coordinator/internal/repository"
	apperrors "github.com/spec-kit/incident-coordinator/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle operations.
type TicketsHandler struct {
	coord *coordinator.Coordinator
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(coord *coordinator.Coordinator) *TicketsHandler {
	return &TicketsHandler{coord: coord}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	amount, err := parseAmount(req.RewardAmount)
	if err != nil {
		return err
	}

	result, opErr := h.coord.CreateTicket(c.UserContext(), coordinator.CreateTicketInput{
		Title:        req.Title,
		Description:  req.Description,
		Severity:     req.Severity,
		RewardAmount: amount,
	})
	if opErr != nil {
		return opErr
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.operationResponse(result)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := repository.TicketFilter{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if client := c.Query("client"); client != "" {
		filter.Client = &client
	}
	if chainParam := c.Query("chain"); chainParam != "" {
		chainValue := domain.Chain(strings.ToUpper(chainParam))
		if !chainValue.Valid() {
			return apperrors.NewValidationError("unknown chain", map[string]any{"chain": chainParam})
		}
		filter.Chain = &chainValue
	}
	for _, status := range strings.Split(c.Query("status"), ",") {
		if status = strings.TrimSpace(status); status != "" {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(status)))
		}
	}

	tickets, err := h.coord.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, h.ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.coord.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// Stake POST /tickets/:id/stake.
func (h *TicketsHandler) Stake(c *fiber.Ctx) error {
	var req dto.StakeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return err
	}
	result, opErr := h.coord.StakeCollateral(c.UserContext(), c.Params("id"), amount)
	if opErr != nil {
		return opErr
	}
	return c.JSON(fiber.Map{"data": h.operationResponse(result)})
}

// AssignAnalyst POST /tickets/:id/assign-analyst.
func (h *TicketsHandler) AssignAnalyst(c *fiber.Ctx) error {
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.coord.AssignAnalyst(c.UserContext(), c.Params("id"), req.Address)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.operationResponse(result)})
}

// SubmitReport POST /tickets/:id/report.
func (h *TicketsHandler) SubmitReport(c *fiber.Ctx) error {
	var req dto.ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.coord.SubmitReport(c.UserContext(), c.Params("id"), req.ReportHash)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.operationResponse(result)})
}

// AssignCertifier POST /tickets/:id/assign-certifier.
func (h *TicketsHandler) AssignCertifier(c *fiber.Ctx) error {
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.coord.AssignCertifier(c.UserContext(), c.Params("id"), req.Address)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.operationResponse(result)})
}

// Approve POST /tickets/:id/approve.
func (h *TicketsHandler) Approve(c *fiber.Ctx) error {
	result, err := h.coord.CertifierApprove(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.operationResponse(result)})
}

// Reject POST /tickets/:id/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	var req dto.RejectRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.coord.CertifierReject(c.UserContext(), c.Params("id"), req.Reason, req.Final)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.operationResponse(result)})
}

// Reconcile POST /tickets/:id/reconcile.
func (h *TicketsHandler) Reconcile(c *fiber.Ctx) error {
	outcome, err := h.coord.Reconcile(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ReconcileResponse{Outcome: string(outcome)}})
}

// PoolStats GET /tickets/:id/pool.
func (h *TicketsHandler) PoolStats(c *fiber.Ctx) error {
	stats, err := h.coord.PoolStats(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

func (h *TicketsHandler) ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	reward := "0"
	if ticket.RewardAmount != nil {
		reward = ticket.RewardAmount.String()
	}
	return dto.TicketResponse{
		ID:                    ticket.ID,
		Chain:                 ticket.Chain,
		Title:                 ticket.Title,
		Description:           ticket.Description,
		Client:                ticket.Client,
		Analyst:               ticket.Analyst,
		Certifier:             ticket.Certifier,
		Severity:              ticket.Severity,
		StakingPoolRef:        ticket.StakingPoolRef,
		RewardAmount:          reward,
		Status:                ticket.Status,
		TxRef:                 ticket.TxRef,
		ExplorerURL:           h.coord.ExplorerURL(ticket),
		PendingReconciliation: ticket.PendingReconciliation,
		CreatedAt:             ticket.CreatedAt,
		UpdatedAt:             ticket.UpdatedAt,
	}
}

func (h *TicketsHandler) operationResponse(result *coordinator.OpResult) dto.OperationResponse {
	return dto.OperationResponse{
		Outcome: string(result.Outcome),
		TxRef:   result.TxRef,
		Ticket:  h.ticketResponse(result.Ticket),
	}
}

func parseAmount(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, apperrors.NewValidationError("amount required", nil)
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, apperrors.NewValidationError("amount must be a base-10 integer", map[string]any{"amount": value})
	}
	return amount, nil
}
