// Package sender holds OTP delivery adapters. Real SMS and email gateways
// live outside this service; LogSender stands in for them.
package sender

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"signflow/internal/lifecycle/models"
	"signflow/pkg/email"
)

// LogSender records each delivery request in the log and reports it as
// accepted. The plaintext code is never logged.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, channel, to, code string, ttl time.Duration) (models.DeliveryResult, error) {
	ref := uuid.NewString()
	s.logger.InfoContext(ctx, "otp delivery requested",
		"channel", channel,
		"to", email.Mask(to),
		"code_length", len(code),
		"ttl_seconds", int(ttl.Seconds()),
		"gateway_ref", ref,
	)
	return models.DeliveryResult{GatewayRef: ref, Status: "logged"}, nil
}
