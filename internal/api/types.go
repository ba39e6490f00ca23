package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bridgeguard/nodeguard/internal/config"
	"github.com/bridgeguard/nodeguard/internal/noderpc"
	"github.com/bridgeguard/nodeguard/internal/store"
)

const (
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8080
	DefaultBodyLimit  = 1024 * 1024
	DefaultRateLimit  = 60

	requestIDKey = "requestid"
)

// Error codes returned in the response envelope.
const (
	CodeMissingAddress = "MISSING_ADDRESS"
	CodeInvalidBody    = "INVALID_BODY"
	CodeInvalidTx      = "INVALID_TX"
	CodeNoSnapshot     = "NO_SNAPSHOT"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternal       = "INTERNAL_ERROR"
)

// NodeService is the part of noderpc.Client the API serves.
type NodeService interface {
	Endpoint() noderpc.Endpoint
	State() noderpc.SyncState
	CheckHealth(ctx context.Context) noderpc.HealthReport
	GetLatestBlock(ctx context.Context) noderpc.CallResult[noderpc.LatestBlock]
	QueryBalance(ctx context.Context, address string) noderpc.CallResult[noderpc.Balance]
	GetValidatorInfo(ctx context.Context, address string) noderpc.CallResult[noderpc.ValidatorRecord]
	BroadcastTransaction(ctx context.Context, signedTx []byte) noderpc.CallResult[noderpc.BroadcastResult]
}

// Server is the dashboard API.
type Server struct {
	App       *fiber.App
	config    *config.ServerEnvConfig
	node      NodeService
	snapshots store.SnapshotStore
	gatherer  prometheus.Gatherer
}

// StdResponse is the envelope every route answers with.
type StdResponse[T any] struct {
	Success   bool      `json:"success"`
	Data      T         `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	RequestID string    `json:"request_id"`
}

type APIError struct {
	Code     string           `json:"code"`
	Category noderpc.Category `json:"category,omitempty"`
	Message  string           `json:"message"`
	Attempts int              `json:"attempts,omitempty"`
}

type BroadcastRequest struct {
	Tx string `json:"tx"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Phase   noderpc.Phase `json:"phase"`
	Node    string        `json:"node"`
	ChainID string        `json:"chain_id"`
}
