package dispatch

import (
	"context"

	"github.com/rumidev445/erysa/internal/domain/model"
	"github.com/rumidev445/erysa/pkg/logger"
)

// LogSubscriber writes delivered insights to the structured log. It
// stands in for an external notification transport.
type LogSubscriber struct {
	log logger.Logger
}

// NewLogSubscriber creates a subscriber logging at info level.
func NewLogSubscriber() *LogSubscriber {
	return &LogSubscriber{log: logger.Get().Named("subscriber")}
}

// Deliver implements Subscriber.
func (s *LogSubscriber) Deliver(ctx context.Context, in model.Insight) error {
	s.log.Info(ctx, "insight delivered",
		logger.String("playerID", in.PlayerID),
		logger.String("sessionID", in.SessionID),
		logger.String("category", in.Category),
		logger.Float64("confidence", in.Confidence),
		logger.String("message", in.Message),
	)
	return nil
}

// LogFailureHandler records undeliverable insights in the log so they
// are surfaced, never dropped silently.
type LogFailureHandler struct {
	log logger.Logger
}

// NewLogFailureHandler creates a failure handler logging at error level.
func NewLogFailureHandler() *LogFailureHandler {
	return &LogFailureHandler{log: logger.Get().Named("dispatch-failures")}
}

// Undelivered implements FailureHandler.
func (h *LogFailureHandler) Undelivered(ctx context.Context, in model.Insight, err error) {
	h.log.Error(ctx, "insight undelivered after retries",
		logger.String("playerID", in.PlayerID),
		logger.String("category", in.Category),
		logger.Error(err),
	)
}
