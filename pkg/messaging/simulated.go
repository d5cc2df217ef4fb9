package messaging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// SimulatedEmailSender logs outbound email instead of delivering it. It is
// the default sender when no provider credentials are configured.
type SimulatedEmailSender struct {
	logger *slog.Logger
}

func NewSimulatedEmailSender(logger *slog.Logger) *SimulatedEmailSender {
	return &SimulatedEmailSender{logger: logger.With("module", "messaging")}
}

func (s *SimulatedEmailSender) SendEmail(_ context.Context, message EmailMessage) SendResult {
	id := uuid.New().String()

	s.logger.Info("Simulated email send",
		"message_id", id,
		"to", message.To,
		"subject", message.Subject)

	return SendResult{Success: true, Simulated: true, ID: id}
}

// SimulatedSMSSender logs outbound SMS instead of delivering it.
type SimulatedSMSSender struct {
	logger *slog.Logger
}

func NewSimulatedSMSSender(logger *slog.Logger) *SimulatedSMSSender {
	return &SimulatedSMSSender{logger: logger.With("module", "messaging")}
}

func (s *SimulatedSMSSender) SendSMS(_ context.Context, message SMSMessage) SendResult {
	id := uuid.New().String()
	info := GetMessageInfo(message.Message)

	s.logger.Info("Simulated SMS send",
		"message_id", id,
		"to", message.To,
		"segments", info.Segments,
		"encoding", info.Encoding)

	return SendResult{Success: true, Simulated: true, ID: id}
}
