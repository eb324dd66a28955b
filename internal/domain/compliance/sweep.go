package compliance

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// ReminderSender delivers reminders for items that need attention.
type ReminderSender interface {
	SendComplianceReminders(ctx context.Context, tenantID string, asOf Date, items []Item) (int, error)
}

// SweepResult is stored as the job run details.
type SweepResult struct {
	AsOf        Date   `json:"asOf"`
	Employees   int    `json:"employees"`
	Outstanding int    `json:"outstanding"`
	Overdue     int    `json:"overdue"`
	Expiring    int    `json:"expiring"`
	Reminded    int    `json:"reminded"`
	TopRisks    []Risk `json:"topRisks"`
}

// Sweep evaluates the whole tenant for today, stores the snapshot and sends reminders for
// expiring and overdue items. Reminder failures are logged; the snapshot still counts.
func (s *Service) Sweep(ctx context.Context, tenantID string, reminders ReminderSender) (SweepResult, error) {
	asOf := s.Today()
	m, err := s.matrix(ctx, tenantID, Scope{}, asOf, Window{Default: s.DefaultWindow})
	if err != nil {
		return SweepResult{}, goerr.Wrap(err, "sweep evaluation failed", goerr.V("tenantId", tenantID))
	}
	summary := Aggregate(m.Items, s.TopN)
	if err := s.Store.SaveSnapshot(ctx, tenantID, asOf, summary); err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{
		AsOf:        asOf,
		Employees:   summary.Employees,
		Outstanding: summary.ItemsByStatus.Outstanding(),
		Overdue:     summary.ItemsByStatus.Overdue,
		Expiring:    summary.ItemsByStatus.Expiring,
		TopRisks:    summary.TopRisks,
	}

	due := ReminderItems(m.Items)
	if reminders != nil && len(due) > 0 {
		sent, err := reminders.SendComplianceReminders(ctx, tenantID, asOf, due)
		if err != nil {
			ctxlog.From(ctx).Warn("compliance reminders failed", "tenantId", tenantID, "err", err)
		}
		result.Reminded = sent
	}
	return result, nil
}

// ReminderItems keeps expiring and overdue items ordered by urgency.
func ReminderItems(items []Item) []Item {
	var out []Item
	for _, item := range items {
		if item.Result.Status == StatusExpiring || item.Result.Status == StatusOverdue {
			out = append(out, item)
		}
	}
	SortByUrgency(out)
	return out
}

func (s *Service) ListSnapshots(ctx context.Context, tenantID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 30
	}
	return s.Store.ListSnapshots(ctx, tenantID, limit)
}
