package api

import (
	"encoding/base64"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/bridgeguard/nodeguard/internal/noderpc"
)

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func ok[T any](c *fiber.Ctx, data T) error {
	return c.Status(fiber.StatusOK).JSON(StdResponse[T]{Success: true, Data: data, RequestID: requestID(c)})
}

func fail(c *fiber.Ctx, status int, apiErr *APIError, data any) error {
	return c.Status(status).JSON(StdResponse[any]{Data: data, Error: apiErr, RequestID: requestID(c)})
}

// statusForCategory maps the failure taxonomy onto an HTTP status.
func statusForCategory(ce *noderpc.CallError) int {
	if ce.Kind == noderpc.KindInvalidRequest {
		return fiber.StatusBadRequest
	}
	switch ce.Category() {
	case noderpc.CategoryUnreachable:
		return fiber.StatusServiceUnavailable
	case noderpc.CategoryTimeout, noderpc.CategoryAmbiguousOutcome:
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusBadGateway
}

func failCall(c *fiber.Ctx, ce *noderpc.CallError, attempts int, data any) error {
	return fail(c, statusForCategory(ce), &APIError{
		Code:     strings.ToUpper(string(ce.Kind)),
		Category: ce.Category(),
		Message:  ce.Error(),
		Attempts: attempts,
	}, data)
}

func respond[T any](c *fiber.Ctx, res noderpc.CallResult[T]) error {
	if !res.Success {
		return failCall(c, res.Err, res.Attempts, nil)
	}
	return ok(c, res)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	ep := s.node.Endpoint()
	return c.JSON(HealthResponse{
		Status:  "ok",
		Phase:   s.node.State().Phase,
		Node:    ep.Moniker,
		ChainID: ep.ChainID,
	})
}

// handleNodeStatus runs a live health check. An unreachable node still returns the report.
func (s *Server) handleNodeStatus(c *fiber.Ctx) error {
	report := s.node.CheckHealth(c.UserContext())
	if !report.Healthy && report.Err != nil {
		return failCall(c, report.Err, report.Attempts, report)
	}
	return ok(c, report)
}

func (s *Server) handleSyncState(c *fiber.Ctx) error {
	return ok(c, s.node.State())
}

func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	if s.snapshots == nil {
		return fail(c, fiber.StatusNotFound, &APIError{Code: CodeNoSnapshot, Message: "snapshot store is not configured"}, nil)
	}
	report, found, err := s.snapshots.LatestSnapshot(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load latest snapshot")
		return fail(c, fiber.StatusInternalServerError, &APIError{Code: CodeInternal, Message: err.Error()}, nil)
	}
	if !found {
		return fail(c, fiber.StatusNotFound, &APIError{Code: CodeNoSnapshot, Message: "no snapshot recorded yet"}, nil)
	}
	return ok(c, report)
}

func (s *Server) handleSnapshotHistory(c *fiber.Ctx) error {
	if s.snapshots == nil {
		return ok(c, []noderpc.HealthReport{})
	}
	history, err := s.snapshots.History(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		log.Error().Err(err).Msg("Failed to load snapshot history")
		return fail(c, fiber.StatusInternalServerError, &APIError{Code: CodeInternal, Message: err.Error()}, nil)
	}
	return ok(c, history)
}

func (s *Server) handleLatestBlock(c *fiber.Ctx) error {
	return respond(c, s.node.GetLatestBlock(c.UserContext()))
}

func (s *Server) handleValidatorInfo(c *fiber.Ctx) error {
	address := strings.TrimSpace(c.Query("address"))
	if address == "" {
		return fail(c, fiber.StatusBadRequest, &APIError{Code: CodeMissingAddress, Message: "query parameter 'address' is required"}, nil)
	}
	return respond(c, s.node.GetValidatorInfo(c.UserContext(), address))
}

func (s *Server) handleAccount(c *fiber.Ctx) error {
	return respond(c, s.node.QueryBalance(c.UserContext(), c.Params("address")))
}

func (s *Server) handleBroadcast(c *fiber.Ctx) error {
	var req BroadcastRequest
	if err := sonic.Unmarshal(c.Body(), &req); err != nil {
		log.Error().Err(err).Msg("Failed to parse broadcast request body")
		return fail(c, fiber.StatusBadRequest, &APIError{Code: CodeInvalidBody, Message: "body must be {\"tx\": \"<base64>\"}"}, nil)
	}
	tx, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.Tx))
	if err != nil || len(tx) == 0 {
		return fail(c, fiber.StatusBadRequest, &APIError{Code: CodeInvalidTx, Message: "tx must be non-empty base64"}, nil)
	}
	return respond(c, s.node.BroadcastTransaction(c.UserContext(), tx))
}
