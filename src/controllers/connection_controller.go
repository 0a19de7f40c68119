package controllers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/theleywin/Collab-Nest/src/apperr"
	"github.com/theleywin/Collab-Nest/src/lib"
	"github.com/theleywin/Collab-Nest/src/middleware"
	"github.com/theleywin/Collab-Nest/src/models"
	"github.com/theleywin/Collab-Nest/src/services"
)

type ConnectionController struct {
	connections     *services.ConnectionService
	defaultPageSize int
}

func NewConnectionController(connections *services.ConnectionService, defaultPageSize int) *ConnectionController {
	if defaultPageSize <= 0 {
		defaultPageSize = 10
	}
	return &ConnectionController{connections: connections, defaultPageSize: defaultPageSize}
}

type sendRequestBody struct {
	Message string `json:"message" validate:"max=500"`
}

type listRequestsQuery struct {
	Tab      string `query:"tab" validate:"required,oneof=incoming outgoing accepted"`
	Page     int    `query:"page" validate:"min=1"`
	PageSize int    `query:"pageSize" validate:"min=1"`
}

// SendConnectionRequest sends a connection request from the authenticated user to another user
func (h *ConnectionController) SendConnectionRequest(c *fiber.Ctx) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}
	targetID, err := parseUserID(c.Params("userId"))
	if err != nil {
		return err
	}

	var body sendRequestBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("Invalid request body")
		}
	}
	if err := validateInput(body); err != nil {
		return err
	}

	request, err := h.connections.Send(c.UserContext(), accountID, targetID, body.Message)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(lib.DataResponse(request.ToDto()))
}

// GetConnectionRequests returns one page of the requests shown under a tab
func (h *ConnectionController) GetConnectionRequests(c *fiber.Ctx) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	query := listRequestsQuery{Tab: string(models.TabIncoming), Page: 1, PageSize: h.defaultPageSize}
	if err := c.QueryParser(&query); err != nil {
		return apperr.Validation("Invalid query parameters")
	}
	if err := validateInput(query); err != nil {
		return err
	}

	requests, page, err := h.connections.List(c.UserContext(), accountID, models.Tab(query.Tab), query.Page, query.PageSize)
	if err != nil {
		return err
	}

	data := make([]models.ConnectionRequestDto, 0, len(requests))
	for i := range requests {
		data = append(data, requests[i].ToDto())
	}
	return c.JSON(fiber.Map{
		"data":       data,
		"pagination": page,
	})
}

// AcceptConnectionRequest accepts a pending request addressed to the authenticated user
func (h *ConnectionController) AcceptConnectionRequest(c *fiber.Ctx) error {
	return h.respond(c, h.connections.Accept)
}

// RejectConnectionRequest rejects a pending request addressed to the authenticated user
func (h *ConnectionController) RejectConnectionRequest(c *fiber.Ctx) error {
	return h.respond(c, h.connections.Reject)
}

// WithdrawConnectionRequest withdraws a pending request the authenticated user sent
func (h *ConnectionController) WithdrawConnectionRequest(c *fiber.Ctx) error {
	return h.respond(c, h.connections.Withdraw)
}

// GetConnectionStatus reports how the authenticated user relates to another user
func (h *ConnectionController) GetConnectionStatus(c *fiber.Ctx) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}
	otherID, err := parseUserID(c.Params("userId"))
	if err != nil {
		return err
	}

	status, err := h.connections.Status(c.UserContext(), accountID, otherID)
	if err != nil {
		return err
	}
	return c.JSON(lib.DataResponse(status))
}

// GetUserConnections lists the users the authenticated user is connected with
func (h *ConnectionController) GetUserConnections(c *fiber.Ctx) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}

	users, err := h.connections.Connections(c.UserContext(), accountID)
	if err != nil {
		return err
	}
	return c.JSON(lib.DataResponse(users))
}

type transitionFunc func(ctx context.Context, actorID uint, requestID string) (*models.ConnectionRequest, error)

func (h *ConnectionController) respond(c *fiber.Ctx, transition transitionFunc) error {
	accountID, err := middleware.AccountID(c)
	if err != nil {
		return err
	}
	requestID := c.Params("requestId")
	if requestID == "" {
		return apperr.Validation("Request id is required")
	}

	request, err := transition(c.UserContext(), accountID, requestID)
	if err != nil {
		return err
	}
	return c.JSON(lib.DataResponse(request.ToDto()))
}

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid user ID format")
	}
	return uint(id), nil
}
