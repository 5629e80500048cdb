package resolver

import (
	"context"
	"testing"

	"github.com/qaaqit/qaaq-auth/internal/domain/repository"
)

// fakeUsers es un user store en memoria que cuenta lookups por estrategia.
type fakeUsers struct {
	byID     map[string]*repository.User
	byLinked map[string]*repository.User
	byLegacy map[string]*repository.User
	byEmail  map[string]*repository.User
	byPhone  map[string]*repository.User

	calls map[string]int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byID:     map[string]*repository.User{},
		byLinked: map[string]*repository.User{},
		byLegacy: map[string]*repository.User{},
		byEmail:  map[string]*repository.User{},
		byPhone:  map[string]*repository.User{},
		calls:    map[string]int{},
	}
}

func (f *fakeUsers) lookup(m map[string]*repository.User, key, call string) (*repository.User, error) {
	f.calls[call]++
	if u, ok := m[key]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*repository.User, error) {
	return f.lookup(f.byID, id, "id")
}
func (f *fakeUsers) FindByAnyIdentity(_ context.Context, ident string) (*repository.User, error) {
	return f.lookup(f.byLinked, ident, "linked")
}
func (f *fakeUsers) GetByLegacyProviderID(_ context.Context, pid string) (*repository.User, error) {
	return f.lookup(f.byLegacy, pid, "legacy")
}
func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	return f.lookup(f.byEmail, email, "email")
}
func (f *fakeUsers) GetByPhone(_ context.Context, phone string) (*repository.User, error) {
	return f.lookup(f.byPhone, phone, "phone")
}
func (f *fakeUsers) CheckPassword(hash *string, _ string) bool { return hash != nil }

// fakeLinks registra las llamadas a Ensure.
type fakeLinks struct {
	ensured  [][3]string
	fail     bool
	onEnsure func(userID, provider, providerID string)
}

func (f *fakeLinks) GetByProvider(context.Context, string, string) (*repository.ProviderLink, error) {
	return nil, repository.ErrNotFound
}
func (f *fakeLinks) ListByUser(context.Context, string) ([]repository.ProviderLink, error) {
	return nil, nil
}
func (f *fakeLinks) Ensure(_ context.Context, userID, provider, providerID string) error {
	if f.fail {
		return repository.ErrConflict
	}
	f.ensured = append(f.ensured, [3]string{userID, provider, providerID})
	if f.onEnsure != nil {
		f.onEnsure(userID, provider, providerID)
	}
	return nil
}

func TestResolvePrimaryKeyShortCircuits(t *testing.T) {
	users := newFakeUsers()
	users.byID["42"] = &repository.User{ID: "42"}
	// el mismo identifier también existe en el grafo; no debe consultarse
	users.byLinked["42"] = &repository.User{ID: "other"}

	r := New(users, &fakeLinks{})
	u, err := r.Resolve(context.Background(), "42", HintSession)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.ID != "42" {
		t.Fatalf("wrong user %q", u.ID)
	}
	if users.calls["linked"] != 0 || users.calls["legacy"] != 0 ||
		users.calls["email"] != 0 || users.calls["phone"] != 0 {
		t.Fatalf("later strategies ran: %v", users.calls)
	}
}

func TestResolveUnifiedGraph(t *testing.T) {
	users := newFakeUsers()
	users.byLinked["g-123"] = &repository.User{ID: "u7"}

	r := New(users, &fakeLinks{})
	u, err := r.Resolve(context.Background(), "g-123", HintSession)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.ID != "u7" {
		t.Fatalf("wrong user %q", u.ID)
	}
	if users.calls["id"] != 1 {
		t.Fatal("primary key lookup must run first")
	}
}

func TestResolveLegacyOnlyWithHint(t *testing.T) {
	users := newFakeUsers()
	users.byLegacy["rep-9"] = &repository.User{ID: "u9"}

	r := New(users, &fakeLinks{})

	// sin hint: la estrategia legacy no corre
	if _, err := r.Resolve(context.Background(), "rep-9", HintSession); err == nil {
		t.Fatal("expected not found without legacy hint")
	}
	if users.calls["legacy"] != 0 {
		t.Fatal("legacy lookup ran without hint")
	}

	// con hint: resuelve
	u, err := r.Resolve(context.Background(), "rep-9", HintFederatedLegacy)
	if err != nil {
		t.Fatalf("resolve with hint: %v", err)
	}
	if u.ID != "u9" {
		t.Fatalf("wrong user %q", u.ID)
	}
}

func TestResolveLegacyBackfillsLink(t *testing.T) {
	users := newFakeUsers()
	users.byLegacy["rep-9"] = &repository.User{ID: "u9"}
	links := &fakeLinks{}

	r := New(users, links)
	if _, err := r.Resolve(context.Background(), "rep-9", HintFederatedLegacy); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(links.ensured) != 1 {
		t.Fatalf("expected 1 backfill, got %d", len(links.ensured))
	}
	got := links.ensured[0]
	if got[0] != "u9" || got[1] != repository.ProviderReplit || got[2] != "rep-9" {
		t.Fatalf("wrong backfill %v", got)
	}
}

func TestResolveLegacyBackfillEnablesGraphLookup(t *testing.T) {
	users := newFakeUsers()
	u9 := &repository.User{ID: "u9"}
	users.byLegacy["rep-9"] = u9

	// el backfill realmente inserta en el grafo, como el LinkRepository real
	links := &fakeLinks{}
	links.onEnsure = func(_, _, providerID string) {
		users.byLinked[providerID] = u9
	}

	r := New(users, links)

	// primera pasada: resuelve por la estrategia legacy y backfillea
	if _, err := r.Resolve(context.Background(), "rep-9", HintFederatedLegacy); err != nil {
		t.Fatalf("legacy resolve: %v", err)
	}
	if users.calls["legacy"] != 1 {
		t.Fatalf("legacy lookups: %d", users.calls["legacy"])
	}

	// segunda pasada SIN hint legacy: el grafo alcanza, la estrategia legacy
	// no vuelve a correr
	u, err := r.Resolve(context.Background(), "rep-9", HintSession)
	if err != nil {
		t.Fatalf("graph resolve after backfill: %v", err)
	}
	if u.ID != "u9" {
		t.Fatalf("wrong user %q", u.ID)
	}
	if users.calls["legacy"] != 1 {
		t.Fatalf("legacy strategy ran again: %d", users.calls["legacy"])
	}
}

func TestResolveBackfillFailureDoesNotFailResolution(t *testing.T) {
	users := newFakeUsers()
	users.byLegacy["rep-9"] = &repository.User{ID: "u9"}
	links := &fakeLinks{fail: true}

	r := New(users, links)
	u, err := r.Resolve(context.Background(), "rep-9", HintFederatedLegacy)
	if err != nil {
		t.Fatalf("backfill failure must not fail resolution: %v", err)
	}
	if u.ID != "u9" {
		t.Fatalf("wrong user %q", u.ID)
	}
}

func TestResolveEmailAndPhone(t *testing.T) {
	users := newFakeUsers()
	users.byEmail["cap@sea.example"] = &repository.User{ID: "ue"}
	users.byPhone["+91 98765 43210"] = &repository.User{ID: "up"}

	r := New(users, &fakeLinks{})

	u, err := r.Resolve(context.Background(), "cap@sea.example", HintSession)
	if err != nil || u.ID != "ue" {
		t.Fatalf("email resolve: %v %v", u, err)
	}

	u, err = r.Resolve(context.Background(), "+91 98765 43210", HintSession)
	if err != nil || u.ID != "up" {
		t.Fatalf("phone resolve: %v %v", u, err)
	}

	// un identifier que no es email ni teléfono no dispara esas estrategias
	if _, err := r.Resolve(context.Background(), "plain-id", HintSession); err == nil {
		t.Fatal("expected not found")
	}
	if users.calls["email"] != 1 || users.calls["phone"] != 1 {
		t.Fatalf("email/phone strategies gated wrong: %v", users.calls)
	}
}

func TestResolveEmptyAndExhausted(t *testing.T) {
	users := newFakeUsers()
	r := New(users, &fakeLinks{})

	if _, err := r.Resolve(context.Background(), "   ", HintSession); err == nil {
		t.Fatal("blank identifier should be not found")
	}
	if len(users.calls) != 0 {
		t.Fatal("blank identifier should not hit the store")
	}

	if _, err := r.Resolve(context.Background(), "ghost", HintSession); !repository.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveDeterministic(t *testing.T) {
	users := newFakeUsers()
	users.byLinked["dup"] = &repository.User{ID: "u1"}
	users.byEmail["dup"] = &repository.User{ID: "u2"} // nunca debería llegar acá

	r := New(users, &fakeLinks{})
	for i := 0; i < 5; i++ {
		u, err := r.Resolve(context.Background(), "dup", HintSession)
		if err != nil || u.ID != "u1" {
			t.Fatalf("iteration %d: %v %v", i, u, err)
		}
	}
}
