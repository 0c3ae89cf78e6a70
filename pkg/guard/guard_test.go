package guard_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Ayorinde-Codes/databyte-go/pkg/api"
	"github.com/Ayorinde-Codes/databyte-go/pkg/guard"
	"github.com/Ayorinde-Codes/databyte-go/pkg/model"
	"github.com/Ayorinde-Codes/databyte-go/pkg/rbac"
	"github.com/Ayorinde-Codes/databyte-go/pkg/session"
	"github.com/Ayorinde-Codes/databyte-go/pkg/store"
)

func testMatrix() rbac.Matrix {
	return rbac.Matrix{
		"company_admin": {"invoices.view", "invoices.create", "users.manage"},
		"accountant":    {"invoices.view", "invoices.create"},
		"viewer":        {"invoices.view"},
	}
}

// newGuard builds a guard over a manager hydrated from the given user. A nil
// user leaves the manager anonymous. No test here talks to a backend, so the
// client points at a sink address that is never dialed.
func newGuard(t *testing.T, user *model.User) (*guard.Guard, *session.Manager) {
	t.Helper()
	st := store.NewMemory()
	if user != nil {
		userJSON, err := json.Marshal(user)
		if err != nil {
			t.Fatalf("marshal user: %v", err)
		}
		companyJSON, err := json.Marshal(&model.Company{ID: 3, Name: "Obi Trading Ltd"})
		if err != nil {
			t.Fatalf("marshal company: %v", err)
		}
		for key, value := range map[string]string{
			store.KeyAuthToken: "tok_1",
			store.KeyUser:      string(userJSON),
			store.KeyCompany:   string(companyJSON),
		} {
			if err := st.Set(key, value); err != nil {
				t.Fatalf("seed %s: %v", key, err)
			}
		}
	}

	client := api.New(api.Options{BaseURL: "http://127.0.0.1:0"}, st)
	m := session.NewManager(client, st, time.Hour)
	t.Cleanup(m.Teardown)
	g := guard.New(m, rbac.NewEvaluator(testMatrix()), guard.Paths{})
	return g, m
}

func accountant() *model.User {
	return &model.User{ID: 7, Name: "Ada Obi", Email: "ada@example.com", Roles: []string{"accountant"}}
}

func TestEvaluateWhileLoading(t *testing.T) {
	g, _ := newGuard(t, accountant()) // Init never called: still uninitialized

	got := g.Evaluate(guard.Route{Path: "/invoices"})
	if got.Action != guard.Loading {
		t.Errorf("Action = %v, want loading", got.Action)
	}
	if got.Target != "" {
		t.Errorf("loading decision carries a target: %q", got.Target)
	}
}

func TestEvaluateAnonymousRedirectsToLogin(t *testing.T) {
	g, m := newGuard(t, nil)
	m.Init()

	got := g.Evaluate(guard.Route{Path: "/invoices/42", AllowedPermissions: []string{"invoices.view"}})
	want := guard.Decision{Action: guard.RedirectLogin, Target: "/login", ReturnTo: "/invoices/42"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Evaluate (-want +got):\n%s", diff)
	}
}

func TestEvaluateAccess(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		route guard.Route
		want  guard.Action
	}{
		{
			name:  "no requirements renders for any authenticated user",
			roles: []string{},
			route: guard.Route{Path: "/profile"},
			want:  guard.Render,
		},
		{
			name:  "permission grant renders",
			roles: []string{"accountant"},
			route: guard.Route{Path: "/invoices", AllowedPermissions: []string{"invoices.view"}},
			want:  guard.Render,
		},
		{
			name:  "missing permission falls back",
			roles: []string{"viewer"},
			route: guard.Route{Path: "/invoices/new", AllowedPermissions: []string{"invoices.create"}},
			want:  guard.RedirectFallback,
		},
		{
			name:  "role grant renders",
			roles: []string{"company_admin"},
			route: guard.Route{Path: "/settings/users", AllowedRoles: []string{"company_admin"}},
			want:  guard.Render,
		},
		{
			name:  "wrong role falls back",
			roles: []string{"accountant"},
			route: guard.Route{Path: "/settings/users", AllowedRoles: []string{"company_admin"}},
			want:  guard.RedirectFallback,
		},
		{
			name:  "unknown role is fail closed",
			roles: []string{"intern"},
			route: guard.Route{Path: "/invoices", AllowedPermissions: []string{"invoices.view"}},
			want:  guard.RedirectFallback,
		},
		{
			name:  "roles and permissions both required",
			roles: []string{"accountant"},
			route: guard.Route{
				Path:               "/settings/users",
				AllowedRoles:       []string{"company_admin"},
				AllowedPermissions: []string{"invoices.view"},
			},
			want: guard.RedirectFallback,
		},
		{
			name:  "roles and permissions both satisfied",
			roles: []string{"company_admin"},
			route: guard.Route{
				Path:               "/settings/users",
				AllowedRoles:       []string{"company_admin"},
				AllowedPermissions: []string{"users.manage"},
			},
			want: guard.Render,
		},
		{
			name:  "any of several permissions is enough",
			roles: []string{"viewer"},
			route: guard.Route{
				Path:               "/invoices",
				AllowedPermissions: []string{"invoices.create", "invoices.view"},
			},
			want: guard.Render,
		},
		{
			name:  "require all permissions denies a partial match",
			roles: []string{"viewer"},
			route: guard.Route{
				Path:               "/invoices/bulk",
				AllowedPermissions: []string{"invoices.view", "invoices.create"},
				RequireAll:         true,
			},
			want: guard.RedirectFallback,
		},
		{
			name:  "require all permissions satisfied",
			roles: []string{"accountant"},
			route: guard.Route{
				Path:               "/invoices/bulk",
				AllowedPermissions: []string{"invoices.view", "invoices.create"},
				RequireAll:         true,
			},
			want: guard.Render,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := accountant()
			user.Roles = tt.roles
			g, m := newGuard(t, user)
			m.Init()

			got := g.Evaluate(tt.route)
			if got.Action != tt.want {
				t.Errorf("Action = %v, want %v", got.Action, tt.want)
			}
			if tt.want == guard.RedirectFallback && got.Target != "/dashboard" {
				t.Errorf("fallback target = %q, want /dashboard", got.Target)
			}
		})
	}
}

func TestEvaluatePasswordChangePriority(t *testing.T) {
	user := accountant()
	user.Roles = []string{"company_admin"}
	user.RequiresPasswordChange = true
	g, m := newGuard(t, user)
	m.Init()

	// A pending forced password change overrides even a full grant.
	got := g.Evaluate(guard.Route{Path: "/settings/users", AllowedRoles: []string{"company_admin"}})
	want := guard.Decision{Action: guard.RedirectPasswordChange, Target: "/password/change"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Evaluate (-want +got):\n%s", diff)
	}

	// The password change screen itself must stay reachable.
	got = g.Evaluate(guard.Route{Path: "/password/change"})
	if got.Action != guard.Render {
		t.Errorf("password change screen blocked: %v", got.Action)
	}
}

func TestEvaluatePublicOnly(t *testing.T) {
	t.Run("loading", func(t *testing.T) {
		g, _ := newGuard(t, accountant())
		got := g.EvaluatePublicOnly(guard.Route{Path: "/login"})
		if got.Action != guard.Loading {
			t.Errorf("Action = %v, want loading", got.Action)
		}
	})

	t.Run("anonymous renders", func(t *testing.T) {
		g, m := newGuard(t, nil)
		m.Init()
		got := g.EvaluatePublicOnly(guard.Route{Path: "/login"})
		if got.Action != guard.Render {
			t.Errorf("Action = %v, want render", got.Action)
		}
	})

	t.Run("authenticated lands on dashboard", func(t *testing.T) {
		g, m := newGuard(t, accountant())
		m.Init()
		got := g.EvaluatePublicOnly(guard.Route{Path: "/login"})
		want := guard.Decision{Action: guard.RedirectFallback, Target: "/dashboard"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("EvaluatePublicOnly (-want +got):\n%s", diff)
		}
	})
}

func TestCustomPaths(t *testing.T) {
	st := store.NewMemory()
	client := api.New(api.Options{BaseURL: "http://127.0.0.1:0"}, st)
	m := session.NewManager(client, st, time.Hour)
	t.Cleanup(m.Teardown)
	m.Init()

	g := guard.New(m, rbac.NewEvaluator(testMatrix()), guard.Paths{Login: "/auth/sign-in"})
	got := g.Evaluate(guard.Route{Path: "/invoices"})
	if got.Target != "/auth/sign-in" {
		t.Errorf("Target = %q, want custom login path", got.Target)
	}
}
