// Package pg implementa los repositorios sobre PostgreSQL.
// Todas las consultas pasan por el dbpool.Manager: los repos nunca tocan el
// pgxpool directo.
package pg

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/qaaqit/qaaq-auth/internal/dbpool"
	"github.com/qaaqit/qaaq-auth/internal/domain/repository"
	"github.com/qaaqit/qaaq-auth/internal/security/password"
)

const userColumns = `id, email, whatsapp_number, full_name, maritime_rank,
	current_ship_name, city, email_verified, created_at, last_login_at, password_hash`

type userRepo struct {
	db *dbpool.Manager
}

// NewUserRepo crea el repositorio de usuarios.
func NewUserRepo(db *dbpool.Manager) repository.UserRepository {
	return &userRepo{db: db}
}

func scanUser(rows pgx.Rows) (*repository.User, error) {
	var u repository.User
	if err := rows.Scan(
		&u.ID, &u.Email, &u.Phone, &u.Name, &u.Rank,
		&u.ShipName, &u.City, &u.EmailVerified, &u.CreatedAt, &u.LastLoginAt,
		&u.PasswordHash,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// queryOne corre la query y espera cero o una fila.
func (r *userRepo) queryOne(ctx context.Context, sql string, args ...any) (*repository.User, error) {
	var u *repository.User
	err := r.db.ExecuteQuery(ctx, sql, args, func(rows pgx.Rows) error {
		if !rows.Next() {
			return nil
		}
		var err error
		u, err = scanUser(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, userID string) (*repository.User, error) {
	return r.queryOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return r.queryOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *userRepo) GetByPhone(ctx context.Context, phone string) (*repository.User, error) {
	return r.queryOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE whatsapp_number = $1`, normalizePhone(phone))
}

func (r *userRepo) FindByAnyIdentity(ctx context.Context, identifier string) (*repository.User, error) {
	// join contra el grafo unificado: cualquier provider_id vinculado sirve
	return r.queryOne(ctx, `
		SELECT `+userColumnsPrefixed("u")+`
		FROM users u
		JOIN provider_links pl ON pl.user_id = u.id
		WHERE pl.provider_id = $1
		LIMIT 1`, identifier)
}

func (r *userRepo) GetByLegacyProviderID(ctx context.Context, providerID string) (*repository.User, error) {
	// replit_id vive en la tabla de usuarios, herencia de la migración
	return r.queryOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE replit_id = $1`, providerID)
}

func (r *userRepo) CheckPassword(hash *string, plain string) bool {
	if hash == nil || *hash == "" {
		return false
	}
	return password.Verify(plain, *hash)
}

// normalizePhone deja solo dígitos y un + inicial.
func normalizePhone(s string) string {
	var b strings.Builder
	for i, c := range s {
		if c == '+' && i == 0 {
			b.WriteRune(c)
			continue
		}
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func userColumnsPrefixed(alias string) string {
	cols := strings.Split(userColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
