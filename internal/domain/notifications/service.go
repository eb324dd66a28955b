package notifications

import (
	"context"
	"fmt"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/auth"
	"workforce/internal/domain/compliance"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// ChatPoster posts a titled list of lines to a team channel.
type ChatPoster interface {
	Post(ctx context.Context, title string, lines []string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	Chat        ChatPoster
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer, chat ChatPoster) *Service {
	return &Service{store: store, Mailer: mailer, Chat: chat, DefaultFrom: "no-reply@example.com"}
}

// Create stores an in-app notification and mirrors it by e-mail when the tenant enabled it.
// A notification whose dedupe key was already delivered to the user is skipped.
func (s *Service) Create(ctx context.Context, n Notification) (bool, error) {
	created, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		return false, goerr.Wrap(err, "failed to create notification", goerr.V("type", n.Type))
	}
	if !created || s.Mailer == nil {
		return created, nil
	}

	enabled, from := s.getEmailSettings(ctx, n.TenantID)
	if !enabled {
		return true, nil
	}
	if from == "" {
		from = s.DefaultFrom
	}

	email, err := s.store.UserEmail(ctx, n.TenantID, n.UserID)
	if err != nil {
		ctxlog.From(ctx).Warn("notification email lookup failed", "userId", n.UserID, "err", err)
		return true, nil
	}
	if email == "" {
		return true, nil
	}
	if err := s.Mailer.Send(ctx, from, email, n.Title, n.Body); err != nil {
		ctxlog.From(ctx).Warn("notification email send failed", "userId", n.UserID, "err", err)
	}
	return true, nil
}

// NotifyRole fans n out to every active user holding roleName and returns how many were new.
func (s *Service) NotifyRole(ctx context.Context, tenantID, roleName string, n Notification) (int, error) {
	users, err := s.store.UsersWithRole(ctx, tenantID, roleName)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to list role members", goerr.V("role", roleName))
	}
	created := 0
	for _, userID := range users {
		n.TenantID = tenantID
		n.UserID = userID
		ok, err := s.Create(ctx, n)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// SendComplianceReminders notifies HR about expiring and overdue items. Each item is
// delivered once per state and date, so a daily sweep only reports changes. Newly reported
// items are also posted as one chat digest.
func (s *Service) SendComplianceReminders(ctx context.Context, tenantID string, asOf compliance.Date, items []compliance.Item) (int, error) {
	reminded := 0
	var lines []string
	for _, item := range items {
		n := ReminderFor(item)
		created, err := s.NotifyRole(ctx, tenantID, auth.RoleHR, n)
		if err != nil {
			return reminded, err
		}
		if created > 0 {
			reminded++
			lines = append(lines, n.Body)
		}
	}

	if len(lines) > 0 && s.Chat != nil {
		title := fmt.Sprintf("Compliance digest %s: %d item(s) need attention", asOf, len(lines))
		if err := s.Chat.Post(ctx, title, lines); err != nil {
			ctxlog.From(ctx).Warn("compliance digest post failed", "tenantId", tenantID, "err", err)
		}
	}
	return reminded, nil
}

// ReminderFor renders the notification for one classified item.
func ReminderFor(item compliance.Item) Notification {
	who := item.Employee.Name
	if item.Employee.EmployeeNumber != "" {
		who = fmt.Sprintf("%s (#%s)", who, item.Employee.EmployeeNumber)
	}
	what := fmt.Sprintf("%s [%s]", item.Requirement.Name, item.Requirement.Code)

	n := Notification{Type: TypeComplianceExpiring}
	validTo := ""
	if item.ValidTo != nil {
		validTo = item.ValidTo.String()
	}
	switch item.Result.Status {
	case compliance.StatusOverdue:
		n.Type = TypeComplianceOverdue
		n.Title = "Compliance overdue: " + item.Requirement.Code
		n.Body = fmt.Sprintf("%s: %s expired on %s", who, what, validTo)
	default:
		days := 0
		if item.Result.DaysLeft != nil {
			days = *item.Result.DaysLeft
		}
		n.Title = "Compliance expiring: " + item.Requirement.Code
		n.Body = fmt.Sprintf("%s: %s expires on %s (%d day(s) left)", who, what, validTo, days)
	}
	n.DedupeKey = fmt.Sprintf("compliance:%s:%s:%s:%s", item.Employee.ID, item.Requirement.ID, item.Result.Status, validTo)
	return n
}

func (s *Service) List(ctx context.Context, tenantID, userID string, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, tenantID, userID, limit, offset)
}

func (s *Service) Count(ctx context.Context, tenantID, userID string) (int, error) {
	return s.store.CountNotifications(ctx, tenantID, userID)
}

func (s *Service) MarkRead(ctx context.Context, tenantID, userID, notificationID string) (bool, error) {
	return s.store.MarkRead(ctx, tenantID, userID, notificationID)
}

func (s *Service) getEmailSettings(ctx context.Context, tenantID string) (bool, string) {
	enabled, from, err := s.store.EmailSettings(ctx, tenantID)
	if err != nil {
		return false, ""
	}
	return enabled, from
}

func (s *Service) GetSettings(ctx context.Context, tenantID string) (bool, string, error) {
	return s.store.EmailSettings(ctx, tenantID)
}

func (s *Service) UpdateSettings(ctx context.Context, tenantID string, enabled bool, from string) error {
	return s.store.UpdateSettings(ctx, tenantID, enabled, from)
}
