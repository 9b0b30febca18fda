package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/princinho/escolaportal/utils"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const minPasswordLength = 8

type AuthService struct {
	Users         repository.UserRepository
	Tokens        repository.RefreshTokenRepository
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
	Log           zerolog.Logger
}

func NewAuthService(users repository.UserRepository, tokens repository.RefreshTokenRepository, accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, log zerolog.Logger) *AuthService {
	return &AuthService{
		Users:         users,
		Tokens:        tokens,
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		Now:           time.Now,
		Log:           log,
	}
}

// Session is what a successful login or refresh hands back.
type Session struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"-"`
	User         *models.User `json:"user"`
}

type NewUser struct {
	Email    string
	Name     string
	Password string
	Role     models.Role
}

type UserPatch struct {
	Name     *string
	Role     *models.Role
	IsActive *bool
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// SeedAdmin creates the bootstrap admin once; later calls leave it untouched.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.Log.Warn().Msg("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	now := s.Now().UTC()
	created, err := s.Users.InsertIfAbsent(ctx, &models.User{
		ID:           bson.NewObjectID(),
		Email:        email,
		Name:         "Administrador",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return err
	}
	if created {
		s.Log.Info().Str("email", email).Msg("admin user seeded")
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, u *models.User) (*Session, error) {
	access, err := utils.GenerateAccessToken(s.AccessSecret, u.ID.Hex(), u.Email, u.Name, string(u.Role), s.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.GenerateRefreshToken(s.RefreshSecret, u.ID.Hex(), s.RefreshTTL)
	if err != nil {
		return nil, err
	}
	now := s.Now().UTC()
	err = s.Tokens.Insert(ctx, &models.RefreshToken{
		ID:        bson.NewObjectID(),
		UserID:    u.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: now.Add(s.RefreshTTL),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: access, RefreshToken: refresh, User: u}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.Users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := utils.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrAccountDisabled
	}
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := utils.ValidateToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	now := s.Now().UTC()
	stored, err := s.Tokens.FindActive(ctx, hashToken(refreshToken), now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if stored.UserID.Hex() != claims.UserID {
		return nil, ErrInvalidCredentials
	}
	u, err := s.Users.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, fromRepo(err)
	}
	if !u.IsActive {
		return nil, ErrAccountDisabled
	}
	sess, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	if err := s.Tokens.Revoke(ctx, stored.ID, now, hashToken(sess.RefreshToken)); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	err := s.Tokens.RevokeByHash(ctx, hashToken(refreshToken), s.Now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// Authenticate turns an access token into the caller's Actor.
func (s *AuthService) Authenticate(accessToken string) (models.Actor, error) {
	claims, err := utils.ValidateToken(accessToken, s.AccessSecret)
	if err != nil {
		return models.Actor{}, ErrInvalidCredentials
	}
	role := models.Role(claims.Role)
	if !role.Valid() {
		return models.Actor{}, ErrInvalidCredentials
	}
	return models.Actor{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   role,
	}, nil
}

func (s *AuthService) Me(ctx context.Context, actor models.Actor) (*models.User, error) {
	id, err := bson.ObjectIDFromHex(actor.UserID)
	if err != nil {
		return nil, ErrNotFound
	}
	u, err := s.Users.FindByID(ctx, id)
	return u, fromRepo(err)
}

func (s *AuthService) CreateUser(ctx context.Context, actor models.Actor, in NewUser) (*models.User, error) {
	if !actor.Can(models.FeatureManageUsers) {
		return nil, ErrForbidden
	}
	v := &ValidationError{}
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if !strings.Contains(email, "@") {
		v.add("email", "invalid email")
	}
	if name == "" {
		v.add("name", "required")
	}
	if len(in.Password) < minPasswordLength {
		v.add("password", "must be at least 8 characters")
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if !in.Role.Valid() {
		v.add("role", "unknown role")
	}
	if err := v.errOrNil(); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.Now().UTC()
	u := &models.User{
		ID:           bson.NewObjectID(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Users.Insert(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.Log.Info().Str("email", email).Str("role", string(u.Role)).Str("by", actor.Email).Msg("user created")
	return u, nil
}

func (s *AuthService) ListUsers(ctx context.Context, actor models.Actor) ([]models.User, error) {
	if !actor.Can(models.FeatureManageUsers) {
		return nil, ErrForbidden
	}
	return s.Users.List(ctx)
}

// UpdateUser changes name, role or active flag. Deactivating a user also
// revokes their refresh tokens.
func (s *AuthService) UpdateUser(ctx context.Context, actor models.Actor, id bson.ObjectID, p UserPatch) (*models.User, error) {
	if !actor.Can(models.FeatureManageUsers) {
		return nil, ErrForbidden
	}
	v := &ValidationError{}
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		if trimmed == "" {
			v.add("name", "must not be empty")
		}
		p.Name = &trimmed
	}
	if p.Role != nil && !p.Role.Valid() {
		v.add("role", "unknown role")
	}
	if actor.UserID == id.Hex() && p.IsActive != nil && !*p.IsActive {
		v.add("isActive", "cannot deactivate yourself")
	}
	if err := v.errOrNil(); err != nil {
		return nil, err
	}
	now := s.Now().UTC()
	if err := s.Users.Update(ctx, id, repository.UserUpdate{Name: p.Name, Role: p.Role, IsActive: p.IsActive, At: now}); err != nil {
		return nil, fromRepo(err)
	}
	if p.IsActive != nil && !*p.IsActive {
		if err := s.Tokens.RevokeAllForUser(ctx, id, now); err != nil {
			return nil, err
		}
	}
	u, err := s.Users.FindByID(ctx, id)
	return u, fromRepo(err)
}

// ChangePassword replaces the caller's password and signs out every session.
func (s *AuthService) ChangePassword(ctx context.Context, actor models.Actor, current, next string) error {
	u, err := s.Me(ctx, actor)
	if err != nil {
		return err
	}
	if err := utils.CheckPassword(u.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < minPasswordLength {
		return &ValidationError{Fields: []FieldError{{Field: "newPassword", Message: "must be at least 8 characters"}}}
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return err
	}
	now := s.Now().UTC()
	if err := s.Users.Update(ctx, u.ID, repository.UserUpdate{PasswordHash: &hash, At: now}); err != nil {
		return fromRepo(err)
	}
	return s.Tokens.RevokeAllForUser(ctx, u.ID, now)
}
