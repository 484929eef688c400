// Package auth отвечает за регистрацию, вход и проверку сессионных токенов.
//
// Роль учётной записи определяется в одном месте, ResolveIdentity:
// сохранённая запись важнее администратора из окружения, а выбранная при
// входе роль обязана совпадать с ролью учётной записи.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/campus-pass/internal/lib/apperr"
	"github.com/magabrotheeeer/campus-pass/internal/lib/jwt"
	"github.com/magabrotheeeer/campus-pass/internal/lib/password"
	"github.com/magabrotheeeer/campus-pass/internal/lib/sl"
	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/storage"
)

// Синтетическая учётная запись администратора из окружения.
const (
	SystemAdminID   = "system-admin"
	SystemAdminName = "System Admin"
)

var (
	ErrMissingFields = apperr.New(apperr.KindValidation, "missing_fields",
		"All fields are required")
	ErrMissingLoginFields = apperr.New(apperr.KindValidation, "missing_fields",
		"Email, password and role selection are required")
	ErrEmailTaken = apperr.New(apperr.KindConflict, "email_taken",
		"Email already registered. Please use another one or Sign In.")
	ErrInvalidCredentials = apperr.New(apperr.KindAuth, "invalid_credentials",
		"Invalid credentials")
	ErrRoleMismatch = apperr.New(apperr.KindForbidden, "role_mismatch",
		"Selected role does not match the account")
	ErrInvalidSession = apperr.New(apperr.KindAuth, "invalid_session",
		"invalid or expired token")
)

func roleMismatch(role models.Role) error {
	return ErrRoleMismatch.WithMessage(fmt.Sprintf(
		"This account is registered as %s. Please select the %s role to sign in.",
		role, strings.ToUpper(string(role))))
}

// UserRepository описывает контракт для работы с пользователями в хранилище.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя.
	CreateUser(ctx context.Context, u models.User) error
	// GetUserByEmail возвращает пользователя по e-mail без учёта регистра.
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// AdminOverride — учётные данные администратора из окружения.
type AdminOverride struct {
	Email    string
	Password string
}

// IdentityKind — результат определения личности при входе.
type IdentityKind int

const (
	// IdentityNotFound — учётная запись не найдена или пароль неверен.
	IdentityNotFound IdentityKind = iota
	// IdentityFound — пароль совпал с сохранённой записью.
	IdentityFound
	// IdentityEnvOverrideAdmin — вход администратора из окружения.
	IdentityEnvOverrideAdmin
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityFound:
		return "found"
	case IdentityEnvOverrideAdmin:
		return "env_override_admin"
	default:
		return "not_found"
	}
}

// Identity — помеченный результат ResolveIdentity.
type Identity struct {
	Kind IdentityKind
	User models.User
}

// AuthService отвечает за регистрацию, авторизацию и валидацию JWT.
type AuthService struct {
	users    UserRepository
	jwtMaker jwt.Maker
	admin    AdminOverride
	log      *slog.Logger
	now      func() time.Time
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, jwtMaker jwt.Maker, admin AdminOverride, log *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		jwtMaker: jwtMaker,
		admin: AdminOverride{
			Email:    normalizeEmail(admin.Email),
			Password: strings.TrimSpace(admin.Password),
		},
		log: log,
		now: time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register создает нового пользователя с ролью "user".
func (s *AuthService) Register(ctx context.Context, name, email, rawPassword string) (models.User, error) {
	const op = "auth.Register"

	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || rawPassword == "" {
		return models.User{}, ErrMissingFields
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	user := models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Role:         models.RoleUser,
		CreatedAt:    s.now().UTC(),
	}
	if err = s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", sl.Op(op), slog.String("user_id", user.ID))
	return user.Public(), nil
}

// ResolveIdentity определяет, кем является входящий пользователь.
//
// Роль учётной записи берётся из сохранённой записи, иначе e-mail
// администратора из окружения даёт роль admin. Несовпадение выбранной роли
// с ролью учётной записи даёт ErrRoleMismatch до проверки пароля.
func (s *AuthService) ResolveIdentity(ctx context.Context, email, rawPassword string, role models.Role) (Identity, error) {
	const op = "auth.ResolveIdentity"

	email = normalizeEmail(email)
	isAdminEmail := s.admin.Email != "" && email == s.admin.Email

	stored, err := s.users.GetUserByEmail(ctx, email)
	found := err == nil
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	var accountRole models.Role
	switch {
	case found:
		accountRole = stored.Role
		if accountRole == "" {
			accountRole = models.RoleUser
		}
	case isAdminEmail:
		accountRole = models.RoleAdmin
	default:
		return Identity{Kind: IdentityNotFound}, nil
	}

	if !strings.EqualFold(string(accountRole), string(role)) {
		return Identity{}, roleMismatch(accountRole)
	}

	if found && password.CompareHash(stored.PasswordHash, rawPassword) == nil {
		stored.Role = accountRole
		return Identity{Kind: IdentityFound, User: stored.Public()}, nil
	}

	if isAdminEmail && s.admin.Password != "" &&
		subtle.ConstantTimeCompare([]byte(rawPassword), []byte(s.admin.Password)) == 1 {
		return Identity{
			Kind: IdentityEnvOverrideAdmin,
			User: models.User{
				ID:    SystemAdminID,
				Name:  SystemAdminName,
				Email: email,
				Role:  models.RoleAdmin,
			},
		}, nil
	}

	return Identity{Kind: IdentityNotFound}, nil
}

// Login проверяет учётные данные и выдаёт сессионный JWT.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string, role models.Role) (string, models.User, error) {
	const op = "auth.Login"
	log := s.log.With(sl.Op(op))

	if strings.TrimSpace(email) == "" || rawPassword == "" || role == "" {
		return "", models.User{}, ErrMissingLoginFields
	}

	identity, err := s.ResolveIdentity(ctx, email, rawPassword, role)
	if err != nil {
		return "", models.User{}, err
	}
	if identity.Kind == IdentityNotFound {
		log.Info("login rejected", slog.String("role", string(role)))
		return "", models.User{}, ErrInvalidCredentials
	}

	u := identity.User
	token, err := s.jwtMaker.GenerateToken(u.ID, string(u.Role), u.Name)
	if err != nil {
		return "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("user logged in", slog.String("user_id", u.ID), slog.String("identity", identity.Kind.String()))
	return token, u, nil
}

// Session — данные сессии из проверенного токена.
type Session struct {
	UserID string
	Role   models.Role
	Name   string
}

// ParseToken проверяет сессионный JWT.
func (s *AuthService) ParseToken(token string) (Session, error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return Session{}, ErrInvalidSession
	}
	return Session{UserID: claims.UserID, Role: models.Role(claims.Role), Name: claims.Name}, nil
}
