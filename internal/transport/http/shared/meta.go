package shared

import (
	"net/http"

	"workforce/internal/domain/audit"
	"workforce/internal/domain/auth"
	"workforce/internal/platform/requestctx"
)

// AuditMeta captures who is acting and from where for audit entries.
func AuditMeta(r *http.Request, user auth.UserContext) audit.Meta {
	return audit.Meta{
		TenantID:  user.TenantID,
		ActorID:   user.UserID,
		RequestID: requestctx.GetRequestID(r.Context()),
		IP:        ClientIP(r),
	}
}
