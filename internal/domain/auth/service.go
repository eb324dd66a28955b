package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	cryptoutil "workforce/internal/platform/crypto"
)

const SessionTTL = 8 * time.Hour

var ErrInvalidCredentials = goerr.New("invalid credentials")

// StoreAPI is the persistence surface the service depends on.
type StoreAPI interface {
	FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error)
	FindUser(ctx context.Context, tenantID, userID string) (AuthUser, error)
	CreateSession(ctx context.Context, userID, sessionHash string, expires time.Time) error
	UpdateLastLogin(ctx context.Context, userID string) error
	RevokeSession(ctx context.Context, userID, sessionHash string) error
	SessionValid(ctx context.Context, userID, sessionHash string) (bool, error)
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
	SaveMFASecret(ctx context.Context, userID string, sealed []byte) error
	MFASecret(ctx context.Context, userID string) ([]byte, error)
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error
}

type Service struct {
	Store  StoreAPI
	Secret string
	Sealer *cryptoutil.Sealer
	Now    func() time.Time
}

func NewService(store StoreAPI, secret string) *Service {
	return &Service{Store: store, Secret: secret, Now: time.Now}
}

type LoginResult struct {
	Token string
	User  AuthUser
}

// Login checks credentials and, when enabled, the TOTP code, then opens a session and issues
// a token bound to it.
func (s *Service) Login(ctx context.Context, email, password, mfaCode string) (LoginResult, error) {
	user, err := s.Store.FindActiveUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, goerr.Wrap(err, "failed to look up user")
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if user.MFAEnabled {
		if err := s.checkCode(ctx, user.MFASecret, mfaCode); err != nil {
			return LoginResult{}, err
		}
	}

	sessionID, err := NewSessionID()
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.Store.CreateSession(ctx, user.ID, HashToken(sessionID), s.Now().Add(SessionTTL)); err != nil {
		return LoginResult{}, goerr.Wrap(err, "failed to start session", goerr.V("userId", user.ID))
	}

	token, err := GenerateToken(s.Secret, Claims{
		UserID:     user.ID,
		TenantID:   user.TenantID,
		RoleID:     user.RoleID,
		RoleName:   user.RoleName,
		SessionID:  sessionID,
		EmployeeID: user.EmployeeID,
	}, SessionTTL)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.Store.UpdateLastLogin(ctx, user.ID); err != nil {
		ctxlog.From(ctx).Warn("update last_login failed", "userId", user.ID, "err", err)
	}
	user.Password = ""
	user.MFASecret = nil
	return LoginResult{Token: token, User: user}, nil
}

func (s *Service) Logout(ctx context.Context, user UserContext) error {
	if user.SessionID == "" {
		return nil
	}
	return s.Store.RevokeSession(ctx, user.UserID, HashToken(user.SessionID))
}

func (s *Service) SessionValid(ctx context.Context, userID, sessionID string) (bool, error) {
	return s.Store.SessionValid(ctx, userID, HashToken(sessionID))
}

func (s *Service) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	return s.Store.HasPermission(ctx, roleID, permission)
}

func (s *Service) Me(ctx context.Context, user UserContext) (AuthUser, error) {
	return s.Store.FindUser(ctx, user.TenantID, user.UserID)
}
