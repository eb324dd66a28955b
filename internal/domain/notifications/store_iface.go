package notifications

import "context"

type StoreAPI interface {
	CreateNotification(ctx context.Context, n Notification) (bool, error)
	UserEmail(ctx context.Context, tenantID, userID string) (string, error)
	UsersWithRole(ctx context.Context, tenantID, roleName string) ([]string, error)
	UserForEmployee(ctx context.Context, tenantID, employeeID string) (string, error)
	ListNotifications(ctx context.Context, tenantID, userID string, limit, offset int) ([]Notification, error)
	CountNotifications(ctx context.Context, tenantID, userID string) (int, error)
	MarkRead(ctx context.Context, tenantID, userID, notificationID string) (bool, error)
	EmailSettings(ctx context.Context, tenantID string) (bool, string, error)
	UpdateSettings(ctx context.Context, tenantID string, enabled bool, from string) error
}
