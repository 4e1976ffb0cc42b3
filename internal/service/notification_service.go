package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mentorhub/mentorhub-api/pkg/jobs"
)

// Domain event types delivered to users.
const (
	EventBookingReserved     = "booking.reserved"
	EventCommitmentEnrolled  = "commitment.enrolled"
	EventCommitmentSuspended = "commitment.suspended"
	EventCommitmentWithdrawn = "commitment.withdrawn"
	EventAttendanceRecorded  = "attendance.recorded"
	EventTaskEscalated       = "task.escalated"
)

// NotificationPayload is the job body queued for async delivery.
type NotificationPayload struct {
	UserID    string                 `json:"user_id"`
	EventType string                 `json:"event_type"`
	Data      map[string]interface{} `json:"data"`
}

// NotificationService queues domain events for asynchronous delivery. The
// delivery channel is an external concern; this service guarantees only that
// enqueue failures never surface to the write paths.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the notification dispatcher.
func NewNotificationService(cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger

	s := &NotificationService{logger: logger}
	s.queue = jobs.NewQueue("notifications", s.deliver, cfg)
	return s
}

// Start launches the worker pool.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify queues an event for delivery. Fire and forget.
func (s *NotificationService) Notify(userID, eventType string, payload map[string]interface{}) {
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: eventType,
		Payload: NotificationPayload{
			UserID:    userID,
			EventType: eventType,
			Data:      payload,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("dropping notification",
			zap.String("user_id", userID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(NotificationPayload)
	if !ok {
		s.logger.Warn("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	// Delivery target (push, email, webhook) is configured downstream; the
	// core only records the emission.
	s.logger.Info("notification dispatched",
		zap.String("user_id", payload.UserID),
		zap.String("event_type", payload.EventType))
	return nil
}

// RewardLedger credits participants for completed sessions. Implementations
// talk to the external points system.
type RewardLedger interface {
	Credit(ctx context.Context, userID string, points int, reason string)
}

// LogRewardLedger records credits in the application log. Used until the
// external ledger integration is wired in deployment.
type LogRewardLedger struct {
	logger *zap.Logger
}

// NewLogRewardLedger constructs a logging reward ledger.
func NewLogRewardLedger(logger *zap.Logger) *LogRewardLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRewardLedger{logger: logger}
}

// Credit logs the reward emission.
func (l *LogRewardLedger) Credit(ctx context.Context, userID string, points int, reason string) {
	l.logger.Info("reward credited",
		zap.String("user_id", userID),
		zap.Int("points", points),
		zap.String("reason", reason))
}
