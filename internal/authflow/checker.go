package authflow

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/qaaqit/qaaq-auth/internal/authcache"
	"github.com/qaaqit/qaaq-auth/internal/config"
	"github.com/qaaqit/qaaq-auth/internal/domain/repository"
	"github.com/qaaqit/qaaq-auth/internal/domain/types"
	"github.com/qaaqit/qaaq-auth/internal/observability/logger"
	"github.com/qaaqit/qaaq-auth/internal/resolver"
	"github.com/qaaqit/qaaq-auth/internal/session"
	"github.com/qaaqit/qaaq-auth/internal/token"
)

// Result es el resultado de una pasada de autenticación.
type Result struct {
	Identity  types.ResolvedIdentity
	FromCache bool
}

// Deps agrupa los colaboradores del checker.
type Deps struct {
	Cache    *authcache.Cache
	Resolver *resolver.Resolver
	Tokens   *token.Verifier
	Sessions session.Store
}

// Checker implementa el orden de prioridad de métodos de autenticación.
//
// Orden optimizado (default): cache → token → sesión federada → sesión
// legacy, con write-through al cache en cada acierto. Orden legacy
// (USE_LEGACY_AUTH_ORDER=true): sesión legacy → sesión federada → token, sin
// tocar el cache. Preserva el comportamiento pre-optimización exacto para
// rollback seguro.
//
// El orden es contrato: los callers pueden asumir que un resultado de cache
// tiene a lo sumo TTL de staleness y que la resolución por token jamás
// depende de estado de sesión.
type Checker struct {
	deps Deps

	// sf colapsa resoluciones concurrentes de la misma clave: N requests con
	// la misma cookie en vuelo hacen UNA pasada de resolución, no N.
	sf singleflight.Group

	// legacyOrder se lee EN VIVO en cada llamada (toggle sin restart).
	legacyOrder func() bool
	now         func() time.Time
}

// New crea el checker.
func New(deps Deps) *Checker {
	return &Checker{
		deps:        deps,
		legacyOrder: config.LegacyOrder,
		now:         time.Now,
	}
}

// Check corre la cadena de métodos y retorna a lo sumo una identidad
// canónica. nil significa "no autenticado", que NO es un error: los fallos de
// cada método (token inválido, sesión inexistente, lookup sin resultado) se
// degradan a "este método no resolvió" y se loguean en debug.
func (c *Checker) Check(ctx context.Context, st State) *Result {
	if st.Empty() {
		return nil
	}
	if c.legacyOrder() {
		return c.checkLegacyOrder(ctx, st)
	}
	return c.checkOptimized(ctx, st)
}

func (c *Checker) checkOptimized(ctx context.Context, st State) *Result {
	log := logger.From(ctx).Named("authflow")

	// 1. cache
	key := st.CacheKey()
	if key != "" {
		if id, ok := c.deps.Cache.Get(key); ok {
			id.Method = types.MethodCache
			return &Result{Identity: id, FromCache: true}
		}
	}

	// Miss de cache: colapsar resoluciones concurrentes de la misma clave
	var res *Result
	if key != "" {
		v, _, _ := c.sf.Do(key, func() (any, error) {
			return c.resolveMethods(ctx, st, key), nil
		})
		res, _ = v.(*Result)
	} else {
		res = c.resolveMethods(ctx, st, key)
	}
	if res == nil {
		log.Debug("ningún método resolvió")
	}
	return res
}

// resolveMethods corre la cadena token → federada → legacy con write-through.
func (c *Checker) resolveMethods(ctx context.Context, st State, key string) *Result {
	// 2. token
	if u := c.tryToken(ctx, st.Bearer); u != nil {
		return c.hit(key, u, types.MethodToken)
	}

	// 3. sesión federada
	if u := c.tryFederated(ctx, st.FederatedSID); u != nil {
		return c.hit(key, u, types.MethodFederated)
	}

	// 4. sesión legacy
	if u := c.tryLegacy(ctx, st.LegacySID); u != nil {
		return c.hit(key, u, types.MethodLegacy)
	}
	return nil
}

// checkLegacyOrder replica el orden pre-optimización. Sin cache: ni lee ni
// escribe, sin importar cuántas resoluciones exitosas haya.
func (c *Checker) checkLegacyOrder(ctx context.Context, st State) *Result {
	if u := c.tryLegacy(ctx, st.LegacySID); u != nil {
		return &Result{Identity: c.identity(u, types.MethodLegacy)}
	}
	if u := c.tryFederated(ctx, st.FederatedSID); u != nil {
		return &Result{Identity: c.identity(u, types.MethodFederated)}
	}
	if u := c.tryToken(ctx, st.Bearer); u != nil {
		return &Result{Identity: c.identity(u, types.MethodToken)}
	}
	return nil
}

// tryToken verifica el bearer y resuelve el sub. Cualquier error de
// verificación (malformado, expirado, firma) se recupera acá: log debug y
// seguir con el próximo método, jamás subir al request.
func (c *Checker) tryToken(ctx context.Context, bearer BearerToken) *repository.User {
	if bearer == "" {
		return nil
	}
	claims, err := c.deps.Tokens.Verify(string(bearer))
	if err != nil {
		logger.From(ctx).Named("authflow").Debug("token no resolvió", logger.Err(err))
		return nil
	}
	sub := token.Subject(claims)
	if sub == "" {
		return nil
	}
	u, err := c.deps.Resolver.Resolve(ctx, sub, resolver.HintSession)
	if err != nil {
		return nil
	}
	return u
}

func (c *Checker) tryFederated(ctx context.Context, sid FederatedSessionID) *repository.User {
	if sid == "" {
		return nil
	}
	s, err := c.deps.Sessions.Get(ctx, string(sid))
	if err != nil || s.Kind != session.KindFederated {
		return nil
	}
	hint := resolver.HintSession
	if s.Provider == repository.ProviderReplit {
		hint = resolver.HintFederatedLegacy
	}
	u, err := c.deps.Resolver.Resolve(ctx, s.Subject, hint)
	if err != nil {
		return nil
	}
	return u
}

func (c *Checker) tryLegacy(ctx context.Context, sid LegacySessionID) *repository.User {
	if sid == "" {
		return nil
	}
	s, err := c.deps.Sessions.Get(ctx, string(sid))
	if err != nil || s.Kind != session.KindLegacy {
		return nil
	}
	u, err := c.deps.Resolver.Resolve(ctx, s.Subject, resolver.HintFederatedLegacy)
	if err != nil {
		return nil
	}
	return u
}

func (c *Checker) identity(u *repository.User, m types.Method) types.ResolvedIdentity {
	return types.ResolvedIdentity{User: u, Method: m, ResolvedAt: c.now()}
}

// hit arma el resultado y hace write-through al cache (solo orden optimizado;
// el hit de cache mismo nunca re-escribe).
func (c *Checker) hit(cacheKey string, u *repository.User, m types.Method) *Result {
	id := c.identity(u, m)
	if cacheKey != "" {
		c.deps.Cache.Set(cacheKey, id)
	}
	return &Result{Identity: id}
}
