package pg

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/qaaqit/qaaq-auth/internal/dbpool"
	"github.com/qaaqit/qaaq-auth/internal/domain/repository"
)

const linkColumns = `id, user_id, provider, provider_user_id, verified, created_at`

type linkRepo struct {
	db *dbpool.Manager
}

// NewLinkRepo crea el repositorio del grafo de identidades.
func NewLinkRepo(db *dbpool.Manager) repository.LinkRepository {
	return &linkRepo{db: db}
}

func scanLink(rows pgx.Rows) (*repository.ProviderLink, error) {
	var l repository.ProviderLink
	if err := rows.Scan(
		&l.ID, &l.UserID, &l.Provider, &l.ProviderID, &l.Verified, &l.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *linkRepo) GetByProvider(ctx context.Context, provider, providerID string) (*repository.ProviderLink, error) {
	var l *repository.ProviderLink
	err := r.db.ExecuteQuery(ctx, `
		SELECT `+linkColumns+`
		FROM provider_links
		WHERE provider = $1 AND provider_user_id = $2`,
		[]any{provider, providerID},
		func(rows pgx.Rows) error {
			if !rows.Next() {
				return nil
			}
			var err error
			l, err = scanLink(rows)
			return err
		})
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, repository.ErrNotFound
	}
	return l, nil
}

func (r *linkRepo) ListByUser(ctx context.Context, userID string) ([]repository.ProviderLink, error) {
	var out []repository.ProviderLink
	err := r.db.ExecuteQuery(ctx, `
		SELECT `+linkColumns+`
		FROM provider_links
		WHERE user_id = $1
		ORDER BY created_at`,
		[]any{userID},
		func(rows pgx.Rows) error {
			for rows.Next() {
				l, err := scanLink(rows)
				if err != nil {
					return err
				}
				out = append(out, *l)
			}
			return rows.Err()
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *linkRepo) Ensure(ctx context.Context, userID, provider, providerID string) error {
	// ON CONFLICT hace la idempotencia; el id se genera acá para no depender
	// de extensiones del lado del server
	return r.db.ExecuteQuery(ctx, `
		INSERT INTO provider_links (id, user_id, provider, provider_user_id, verified)
		VALUES ($1, $2, $3, $4, false)
		ON CONFLICT (provider, provider_user_id) DO NOTHING`,
		[]any{uuid.NewString(), userID, provider, providerID},
		func(rows pgx.Rows) error { return nil })
}
