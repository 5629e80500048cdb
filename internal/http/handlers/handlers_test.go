package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qaaqit/qaaq-auth/internal/authcache"
	"github.com/qaaqit/qaaq-auth/internal/dbpool"
	"github.com/qaaqit/qaaq-auth/internal/domain/repository"
	"github.com/qaaqit/qaaq-auth/internal/domain/types"
	"github.com/qaaqit/qaaq-auth/internal/http/handlers"
	mw "github.com/qaaqit/qaaq-auth/internal/http/middlewares"
	"github.com/qaaqit/qaaq-auth/internal/resolver"
	"github.com/qaaqit/qaaq-auth/internal/security/password"
)

func authedRequest(method, path string, u *repository.User) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	ctx := mw.WithAuth(r.Context(), mw.AuthContext{
		Authenticated: true,
		Identity: types.ResolvedIdentity{
			User:       u,
			Method:     types.MethodToken,
			ResolvedAt: time.Now(),
		},
	})
	return r.WithContext(ctx)
}

func TestMeHandler(t *testing.T) {
	h := handlers.NewMeHandler()
	u := &repository.User{
		ID:       "u1",
		Email:    "cap@sea.example",
		Name:     "Capt. Rao",
		Rank:     "chief_engineer",
		ShipName: "MV Horizon",
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/v1/me", u))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "u1", body["id"])
	require.Equal(t, "chief_engineer", body["maritime_rank"])
	require.Equal(t, "MV Horizon", body["ship_name"])
	require.Equal(t, string(types.MethodToken), body["auth_method"])

	// sin identidad publicada: 401, nunca panic
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// método equivocado
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodPost, "/v1/me", u))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPoolStatsHandler(t *testing.T) {
	mgr := dbpool.New(nil, dbpool.Options{})
	h := handlers.NewPoolStatsHandler(mgr)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/pool/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats dbpool.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Zero(t, stats.TotalQueries)
}

func TestPoolResetHandler(t *testing.T) {
	mgr := dbpool.New(nil, dbpool.Options{})
	h := handlers.NewPoolResetHandler(mgr)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/admin/pool/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// GET no está permitido
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/pool/reset", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCacheClearHandler(t *testing.T) {
	t.Setenv("DISABLE_AUTH_CACHE", "")
	cache := authcache.New(authcache.Options{})
	cache.Set("k1", types.ResolvedIdentity{User: &repository.User{ID: "u1"}})
	cache.Set("k2", types.ResolvedIdentity{User: &repository.User{ID: "u2"}})

	h := handlers.NewCacheClearHandler(cache)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/admin/cache/clear", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.EqualValues(t, 2, body["evicted"])
	require.Zero(t, cache.Len())
}

// credUsers implementa UserRepository con un solo usuario indexado por email.
type credUsers struct {
	byEmail map[string]*repository.User
}

func (c *credUsers) GetByID(context.Context, string) (*repository.User, error) {
	return nil, repository.ErrNotFound
}
func (c *credUsers) FindByAnyIdentity(context.Context, string) (*repository.User, error) {
	return nil, repository.ErrNotFound
}
func (c *credUsers) GetByLegacyProviderID(context.Context, string) (*repository.User, error) {
	return nil, repository.ErrNotFound
}
func (c *credUsers) GetByPhone(context.Context, string) (*repository.User, error) {
	return nil, repository.ErrNotFound
}
func (c *credUsers) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	if u, ok := c.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}
func (c *credUsers) CheckPassword(hash *string, plain string) bool {
	if hash == nil {
		return false
	}
	return password.Verify(plain, *hash)
}

type credLinks struct{}

func (credLinks) GetByProvider(context.Context, string, string) (*repository.ProviderLink, error) {
	return nil, repository.ErrNotFound
}
func (credLinks) ListByUser(context.Context, string) ([]repository.ProviderLink, error) {
	return nil, nil
}
func (credLinks) Ensure(context.Context, string, string, string) error { return nil }

func TestCredentialCheckHandler(t *testing.T) {
	phc, err := password.Hash(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}, "hunter2")
	require.NoError(t, err)

	users := &credUsers{byEmail: map[string]*repository.User{
		"cap@sea.example": {ID: "u1", Email: "cap@sea.example", PasswordHash: &phc},
		"nopass@sea.example": {ID: "u2", Email: "nopass@sea.example"},
	}}
	h := handlers.NewCredentialCheckHandler(users, resolver.New(users, credLinks{}))

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/verify", strings.NewReader(body)))
		return rec
	}

	// credenciales correctas
	rec := post(`{"identifier":"cap@sea.example","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var ok map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	require.Equal(t, true, ok["valid"])
	require.Equal(t, "u1", ok["user_id"])

	// password incorrecto, usuario inexistente y cuenta sin password: mismo 401
	for _, body := range []string{
		`{"identifier":"cap@sea.example","password":"wrong"}`,
		`{"identifier":"ghost@sea.example","password":"hunter2"}`,
		`{"identifier":"nopass@sea.example","password":"hunter2"}`,
	} {
		rec := post(body)
		require.Equal(t, http.StatusUnauthorized, rec.Code, body)
		var e map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
		require.Equal(t, "authentication_required", e["error"], body)
	}

	// body inválido o incompleto
	require.Equal(t, http.StatusBadRequest, post(`{{{`).Code)
	require.Equal(t, http.StatusBadRequest, post(`{"identifier":"cap@sea.example"}`).Code)

	// método equivocado
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/verify", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.NewHealthzHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestReadyz(t *testing.T) {
	okPing := func(context.Context) error { return nil }

	rec := httptest.NewRecorder()
	handlers.NewReadyzHandler(okPing, nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// DB caída: 503 con el código esperado
	rec = httptest.NewRecorder()
	handlers.NewReadyzHandler(func(context.Context) error { return context.DeadlineExceeded }, nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "db_unavailable", body["error"])

	// redis caído también corta
	rec = httptest.NewRecorder()
	handlers.NewReadyzHandler(okPing, func(context.Context) error { return context.DeadlineExceeded }).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
