// Package services contains server-side business logic. This file implements
// AuthService, which handles signup, two-step login with optional TOTP and
// bearer token verification.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/cryptox"
	"github.com/dmitrijs2005/gophsocial/internal/server/auth"
	"github.com/dmitrijs2005/gophsocial/internal/server/config"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const minPasswordLength = 6

// CredentialKind tells Login what, if anything, is still required after
// the password matched.
type CredentialKind int

const (
	CredentialPasswordOnly CredentialKind = iota + 1
	CredentialNeedsTOTP
)

// CredentialResult is the outcome of a successful password check.
type CredentialResult struct {
	Kind CredentialKind
	User *models.User
}

// Session is an authenticated user together with a freshly issued token.
type Session struct {
	User  *models.User
	Token string
}

type AuthService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	bcryptCost                  int
	totpIssuer                  string

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		bcryptCost:                  cfg.BcryptCost,
		totpIssuer:                  cfg.TOTPIssuer,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a new account and returns it with a token.
func (s *AuthService) Signup(ctx context.Context, username, email, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	switch {
	case username == "" || email == "" || password == "":
		return nil, common.NewValidationError("Username, email and password are required")
	case !strings.Contains(email, "@"):
		return nil, common.NewValidationError("Invalid email address")
	case len(password) < minPasswordLength:
		return nil, common.NewValidationError(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	repo := s.repomanager.Users(s.db)

	exists, err := repo.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("error checking user: %w", err)
	}
	if exists {
		return nil, common.ErrorConflict
	}

	hash, err := cryptox.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := repo.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return s.newSession(user)
}

// CheckCredentials verifies email and password. Unknown emails and wrong
// passwords both yield common.ErrInvalidCredentials.
func (s *AuthService) CheckCredentials(ctx context.Context, email, password string) (*CredentialResult, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// spend the same bcrypt time as for a known address
			_ = cryptox.ComparePassword(s.getDummyHash(), password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if err := cryptox.ComparePassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, cryptox.ErrMismatch) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if user.TwoFactorEnabled {
		return &CredentialResult{Kind: CredentialNeedsTOTP, User: user}, nil
	}
	return &CredentialResult{Kind: CredentialPasswordOnly, User: user}, nil
}

// Login checks the credentials and, when two-factor login is enabled for
// the account, the TOTP code. No token is issued on any failure.
func (s *AuthService) Login(ctx context.Context, email, password, totpCode string) (*Session, error) {
	res, err := s.CheckCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	switch res.Kind {
	case CredentialNeedsTOTP:
		if !auth.ValidateTOTP(strings.TrimSpace(totpCode), res.User.TwoFactorSecret) {
			return nil, common.ErrInvalidTOTP
		}
	case CredentialPasswordOnly:
	default:
		return nil, common.ErrorInternal
	}

	return s.newSession(res.User)
}

// EnableTwoFactor stores a fresh TOTP secret for the user and returns the
// otpauth:// URI to load into an authenticator app.
func (s *AuthService) EnableTwoFactor(ctx context.Context, userID string) (string, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.WithMessage(common.ErrorNotFound, "User not found")
		}
		return "", fmt.Errorf("error loading user: %w", err)
	}

	secret, uri, err := auth.NewTOTPSecret(s.totpIssuer, user.Email)
	if err != nil {
		return "", fmt.Errorf("error generating totp secret: %w", err)
	}

	if err := repo.EnableTwoFactor(ctx, user.ID, secret); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.WithMessage(common.ErrorNotFound, "User not found")
		}
		return "", fmt.Errorf("error saving totp secret: %w", err)
	}

	return uri, nil
}

// Authenticate resolves a bearer token to its user. A token whose user no
// longer exists yields common.ErrorNotFound.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, common.ErrTokenMissing
	}

	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// --- helpers below ---

func (s *AuthService) newSession(user *models.User) (*Session, error) {
	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &Session{User: user, Token: token}, nil
}

func (s *AuthService) getDummyHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = cryptox.HashPassword(string(common.GenerateRandByteArray(16)), s.bcryptCost)
	})
	return s.dummyHash
}
