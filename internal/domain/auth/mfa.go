package auth

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const mfaIssuer = "Workforce"

var (
	ErrMFARequired    = goerr.New("mfa code required")
	ErrMFAInvalid     = goerr.New("invalid mfa code")
	ErrMFAUnavailable = goerr.New("mfa requires an encryption key")
	ErrMFANotSetUp    = goerr.New("mfa setup required")
)

type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// SetupMFA stores a fresh sealed TOTP secret for the user. MFA stays disabled until
// EnableMFA confirms a code generated from it.
func (s *Service) SetupMFA(ctx context.Context, user UserContext, accountName string) (MFASetup, error) {
	if !s.Sealer.Configured() {
		return MFASetup{}, ErrMFAUnavailable
	}
	if accountName == "" {
		accountName = user.UserID
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return MFASetup{}, goerr.Wrap(err, "failed to generate mfa secret")
	}
	sealed, err := s.Sealer.SealString(key.Secret())
	if err != nil {
		return MFASetup{}, err
	}
	if err := s.Store.SaveMFASecret(ctx, user.UserID, sealed); err != nil {
		return MFASetup{}, goerr.Wrap(err, "failed to store mfa secret", goerr.V("userId", user.UserID))
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

func (s *Service) EnableMFA(ctx context.Context, user UserContext, code string) error {
	return s.toggleMFA(ctx, user, code, true)
}

func (s *Service) DisableMFA(ctx context.Context, user UserContext, code string) error {
	return s.toggleMFA(ctx, user, code, false)
}

func (s *Service) toggleMFA(ctx context.Context, user UserContext, code string, enabled bool) error {
	if !s.Sealer.Configured() {
		return ErrMFAUnavailable
	}
	sealed, err := s.Store.MFASecret(ctx, user.UserID)
	if err != nil {
		return goerr.Wrap(err, "failed to load mfa secret", goerr.V("userId", user.UserID))
	}
	if len(sealed) == 0 {
		return ErrMFANotSetUp
	}
	if err := s.checkCode(ctx, sealed, code); err != nil {
		return err
	}
	if err := s.Store.SetMFAEnabled(ctx, user.UserID, enabled); err != nil {
		return goerr.Wrap(err, "failed to update mfa", goerr.V("userId", user.UserID), goerr.V("enabled", enabled))
	}
	return nil
}

func (s *Service) checkCode(ctx context.Context, sealed []byte, code string) error {
	if code == "" {
		return ErrMFARequired
	}
	secret := s.Sealer.OpenString(ctx, sealed)
	if secret == "" || !totp.Validate(code, secret) {
		return ErrMFAInvalid
	}
	return nil
}
