package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockcore/stockcore/internal/inventory"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeExpirySweep deactivates batches past their expiry date.
	TaskTypeExpirySweep = "inventory:expiry_sweep"
	// TaskTypeLedgerDaily regenerates daily ledger entries for a tenant.
	TaskTypeLedgerDaily = "inventory:ledger_daily"
)

// ExpirySweepPayload selects the tenant whose batches are swept.
type ExpirySweepPayload struct {
	TenantID string `json:"tenant_id"`
}

// LedgerDailyPayload selects the tenant and day to regenerate. An empty
// date means the previous UTC day.
type LedgerDailyPayload struct {
	TenantID string `json:"tenant_id"`
	Date     string `json:"date,omitempty"`
}

// NewExpirySweepTask constructs an Asynq task for an expiry sweep.
func NewExpirySweepTask(payload ExpirySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeExpirySweep, data), nil
}

// NewLedgerDailyTask constructs an Asynq task for a daily ledger run.
func NewLedgerDailyTask(payload LedgerDailyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLedgerDaily, data), nil
}

// ExpirySweepJob handles TaskTypeExpirySweep tasks.
type ExpirySweepJob struct {
	Service *inventory.Service
	Logger  *slog.Logger
}

// Handle runs the sweep for the tenant named in the payload.
func (j *ExpirySweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ExpirySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TenantID == "" {
		return asynq.SkipRetry
	}
	swept, err := j.Service.MarkExpiredBatches(ctx, payload.TenantID)
	if err != nil {
		j.Logger.Error("expiry sweep failed", slog.String("tenant", payload.TenantID), slog.Any("error", err))
		return err
	}
	if swept > 0 {
		j.Logger.Info("expiry sweep complete", slog.String("tenant", payload.TenantID), slog.Int("batches", swept))
	}
	return nil
}

// LedgerDailyJob handles TaskTypeLedgerDaily tasks.
type LedgerDailyJob struct {
	Ledger *inventory.LedgerService
	Logger *slog.Logger
}

// Handle regenerates ledger entries for every item/warehouse pair that
// moved on the requested day.
func (j *LedgerDailyJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerDailyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TenantID == "" {
		return asynq.SkipRetry
	}
	day := time.Now().UTC().AddDate(0, 0, -1)
	if payload.Date != "" {
		parsed, err := time.Parse("2006-01-02", payload.Date)
		if err != nil {
			return asynq.SkipRetry
		}
		day = parsed
	}
	generated, err := j.Ledger.GenerateForDate(ctx, payload.TenantID, day)
	if err != nil {
		j.Logger.Error("ledger run failed", slog.String("tenant", payload.TenantID), slog.Any("error", err))
		return err
	}
	j.Logger.Info("ledger run complete",
		slog.String("tenant", payload.TenantID),
		slog.String("date", day.Format("2006-01-02")),
		slog.Int("entries", generated))
	return nil
}
