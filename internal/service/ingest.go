package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReadingMessage is the incoming reading message from RabbitMQ. RecordedAt
// is informational; the engine stamps readings with its own clock.
type ReadingMessage struct {
	RequestID  string    `json:"request_id"`
	MeterID    string    `json:"meter_id"`
	Voltage    float64   `json:"voltage"`
	Current    float64   `json:"current"`
	ChargePct  *float64  `json:"charge_pct,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ProcessMessage handles one ingest message: parse, log the reading, let
// the alert engine do its work. Errors propagate so the consumer can dead
// letter the message.
func (s *PowerService) ProcessMessage(ctx context.Context, body []byte) error {
	var msg ReadingMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	meterID, err := uuid.Parse(msg.MeterID)
	if err != nil {
		return fmt.Errorf("invalid meter id %q: %w", msg.MeterID, err)
	}

	reqLogger := s.logger.With(zap.String("request_id", msg.RequestID))
	reqLogger.Info("processing reading",
		zap.String("meter_id", msg.MeterID),
		zap.Float64("voltage", msg.Voltage),
		zap.Float64("current", msg.Current),
	)

	reading, err := s.LogPower(ctx, meterID, msg.Voltage, msg.Current, msg.ChargePct)
	if err != nil {
		reqLogger.Error("failed to log reading", zap.Error(err))
		return fmt.Errorf("failed to log reading: %w", err)
	}

	reqLogger.Info("reading processed successfully",
		zap.String("reading_id", reading.ID.String()),
	)

	return nil
}
