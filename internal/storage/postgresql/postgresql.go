// Package postgresql реализует хранилище пропусков и пользователей на
// PostgreSQL через database/sql и драйвер pgx.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/storage"
)

const (
	pendingIndex = "passes_one_pending_per_user"
	emailIndex   = "users_email_key"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New открывает пул соединений и проверяет доступность базы.
func New(ctx context.Context, storageConnectionString string) (*Storage, error) {
	const op = "storage.postgresql.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Storage{DB: db}, nil
}

func (s *Storage) Close() error {
	return s.DB.Close()
}

// Ping проверяет доступность базы.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// mapConstraint переводит нарушение уникальности в ошибку пакета storage.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case pendingIndex:
		return storage.ErrPendingExists
	case emailIndex:
		return storage.ErrEmailTaken
	default:
		return storage.ErrDuplicateID
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPass(row scanner) (models.Pass, error) {
	var (
		p           models.Pass
		completedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.UserID, &p.UserName, &p.Purpose, &p.Type, &p.Status,
		&p.CreatedAt, &p.ExpiresAt, &completedAt, &p.QRCode)
	if err != nil {
		return models.Pass{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.ExpiresAt = p.ExpiresAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		p.CompletedAt = &t
	}
	return p, nil
}

const passColumns = `id, user_id, user_name, purpose, type, status, created_at, expires_at, completed_at, qr_code`

// CreatePass вставляет новый пропуск.
func (s *Storage) CreatePass(ctx context.Context, p models.Pass) error {
	const op = "storage.postgresql.CreatePass"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO passes (` + passColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.DB.ExecContext(ctx, query,
		p.ID, p.UserID, p.UserName, p.Purpose, p.Type, p.Status,
		p.CreatedAt, p.ExpiresAt, p.CompletedAt, p.QRCode)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapConstraint(err))
	}
	return nil
}

// GetPass возвращает пропуск по идентификатору.
func (s *Storage) GetPass(ctx context.Context, id string) (models.Pass, error) {
	const op = "storage.postgresql.GetPass"
	select {
	case <-ctx.Done():
		return models.Pass{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+passColumns+` FROM passes WHERE id = $1`, id)
	p, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Pass{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err != nil {
		return models.Pass{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// UpdatePass перезаписывает изменяемые поля пропуска.
func (s *Storage) UpdatePass(ctx context.Context, p models.Pass) error {
	const op = "storage.postgresql.UpdatePass"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE passes
			  SET status = $1, completed_at = $2, qr_code = $3
			  WHERE id = $4`
	res, err := s.DB.ExecContext(ctx, query, p.Status, p.CompletedAt, p.QRCode, p.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapConstraint(err))
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// DeletePass удаляет пропуск.
func (s *Storage) DeletePass(ctx context.Context, id string) error {
	const op = "storage.postgresql.DeletePass"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM passes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// ListPasses возвращает пропуска, подходящие под фильтр.
func (s *Storage) ListPasses(ctx context.Context, filter storage.PassFilter) ([]models.Pass, error) {
	const op = "storage.postgresql.ListPasses"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + passColumns + ` FROM passes`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	res := []models.Pass{}
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

const userColumns = `id, name, email, password_hash, role, created_at`

func scanUser(row scanner) (models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return models.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// CreateUser регистрирует пользователя.
func (s *Storage) CreateUser(ctx context.Context, u models.User) error {
	const op = "storage.postgresql.CreateUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.DB.ExecContext(ctx, query, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapConstraint(err))
	}
	return nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Storage) GetUser(ctx context.Context, id string) (models.User, error) {
	const op = "storage.postgresql.GetUser"
	return s.getUser(ctx, op, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByEmail возвращает пользователя по e-mail без учёта регистра.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgresql.GetUserByEmail"
	return s.getUser(ctx, op, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (s *Storage) getUser(ctx context.Context, op, query string, arg string) (models.User, error) {
	select {
	case <-ctx.Done():
		return models.User{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}
