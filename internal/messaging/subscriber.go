package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/internal/models"
)

const queueGroup = "aggregator"

// RunRequest asks the service for an immediate run. An empty message body
// is a valid request with default settings.
type RunRequest struct {
	Fresh       bool   `json:"fresh"`
	RequestedBy string `json:"requested_by"`
}

type RunReply struct {
	Status  string             `json:"status"`
	Error   string             `json:"error,omitempty"`
	Summary *models.RunSummary `json:"summary,omitempty"`
}

// Trigger performs a requested run. A nil summary with a nil error means
// the run was skipped.
type Trigger func(ctx context.Context, req RunRequest) (*models.RunSummary, error)

type Handler struct {
	logger  *zap.Logger
	nc      *nats.Conn
	trigger Trigger
	sub     *nats.Subscription
}

func NewHandler(logger *zap.Logger, nc *nats.Conn, trigger Trigger) *Handler {
	return &Handler{
		logger:  logger.Named("run_requests"),
		nc:      nc,
		trigger: trigger,
	}
}

func (h *Handler) RegisterSubscriptions(lc fx.Lifecycle) error {
	sub, err := h.nc.QueueSubscribe(RunRequestSubject, queueGroup, h.handleRunRequest)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", RunRequestSubject, err)
	}

	h.sub = sub
	h.logger.Info("registered NATS subscriptions", zap.String("subject", RunRequestSubject))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return h.sub.Unsubscribe()
		},
	})

	return nil
}

func (h *Handler) handleRunRequest(msg *nats.Msg) {
	ctx, span := tracer.Start(context.Background(), "handleRunRequest")
	defer span.End()

	req, err := DecodeRunRequest(msg.Data)
	if err != nil {
		h.logger.Warn("invalid run request", zap.String("subject", msg.Subject), zap.Error(err))
		h.reply(msg, RunReply{Status: "invalid", Error: err.Error()})
		return
	}

	h.logger.Info("run requested",
		zap.Bool("fresh", req.Fresh),
		zap.String("requested_by", req.RequestedBy))

	summary, err := h.trigger(ctx, req)
	switch {
	case err != nil:
		span.RecordError(err)
		h.logger.Error("requested run failed", zap.Error(err))
		h.reply(msg, RunReply{Status: "error", Error: err.Error(), Summary: summary})
	case summary == nil:
		h.reply(msg, RunReply{Status: "skipped"})
	default:
		h.reply(msg, RunReply{Status: "ok", Summary: summary})
	}
}

func (h *Handler) reply(msg *nats.Msg, r RunReply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		h.logger.Error("failed to encode run reply", zap.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		h.logger.Warn("failed to reply to run request", zap.Error(err))
	}
}

func DecodeRunRequest(data []byte) (RunRequest, error) {
	var req RunRequest
	if strings.TrimSpace(string(data)) == "" {
		return req, nil
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return RunRequest{}, fmt.Errorf("decode run request: %w", err)
	}
	return req, nil
}
