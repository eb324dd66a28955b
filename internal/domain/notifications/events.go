package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/ctxlog"

	"workforce/internal/domain/auth"
)

// NotifyForcedAssignment tells HR that a compliance block was overridden on a shift.
func (s *Service) NotifyForcedAssignment(ctx context.Context, tenantID, shiftID, employeeID, reason string, overridden []string) error {
	n := Notification{
		Type:      TypeRosterForced,
		Title:     "Compliance block overridden",
		Body:      fmt.Sprintf("Employee %s assigned to shift %s despite %s. Reason: %s", employeeID, shiftID, strings.Join(overridden, ", "), reason),
		DedupeKey: "roster:" + shiftID + ":" + employeeID,
	}
	created, err := s.NotifyRole(ctx, tenantID, auth.RoleHR, n)
	if err != nil {
		return err
	}
	if created > 0 && s.Chat != nil {
		if err := s.Chat.Post(ctx, n.Title, []string{n.Body}); err != nil {
			ctxlog.From(ctx).Warn("roster override post failed", "shiftId", shiftID, "err", err)
		}
	}
	return nil
}

// NotifyChecklistAssigned tells the employee's own login about a new checklist.
// Employees without a login are skipped.
func (s *Service) NotifyChecklistAssigned(ctx context.Context, tenantID, employeeID, checklistID, name string) error {
	userID, err := s.store.UserForEmployee(ctx, tenantID, employeeID)
	if err != nil || userID == "" {
		return err
	}
	_, err = s.Create(ctx, Notification{
		TenantID:  tenantID,
		UserID:    userID,
		Type:      TypeChecklistAssigned,
		Title:     "New checklist: " + name,
		Body:      fmt.Sprintf("The checklist %q was assigned to you.", name),
		DedupeKey: "checklist:" + checklistID,
	})
	return err
}
