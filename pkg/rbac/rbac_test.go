package rbac

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testMatrix() Matrix {
	return Matrix{
		"company_admin": {"invoices.view", "invoices.create", "settings.manage"},
		"company_user":  {"invoices.view"},
		"empty_role":    {},
	}
}

func TestHasAnyRole(t *testing.T) {
	e := NewEvaluator(testMatrix())

	tests := []struct {
		name      string
		userRoles []string
		roles     []string
		want      bool
	}{
		{"direct match", []string{"company_admin"}, []string{"company_admin"}, true},
		{"one of several", []string{"company_user"}, []string{"company_admin", "company_user"}, true},
		{"no match", []string{"company_user"}, []string{"company_admin"}, false},
		{"zero user roles", nil, []string{"company_admin"}, false},
		{"zero wanted roles", []string{"company_admin"}, nil, false},
		{"role not in matrix still matches by name", []string{"auditor"}, []string{"auditor"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.HasAnyRole(tt.userRoles, tt.roles...); got != tt.want {
				t.Errorf("HasAnyRole(%v, %v) = %v, want %v", tt.userRoles, tt.roles, got, tt.want)
			}
		})
	}
}

func TestHasAllRoles(t *testing.T) {
	e := NewEvaluator(testMatrix())

	tests := []struct {
		name      string
		userRoles []string
		roles     []string
		want      bool
	}{
		{"subset", []string{"company_admin", "company_user"}, []string{"company_user"}, true},
		{"exact", []string{"company_admin", "company_user"}, []string{"company_admin", "company_user"}, true},
		{"missing one", []string{"company_user"}, []string{"company_admin", "company_user"}, false},
		{"zero user roles", nil, []string{"company_user"}, false},
		{"vacuous", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.HasAllRoles(tt.userRoles, tt.roles...); got != tt.want {
				t.Errorf("HasAllRoles(%v, %v) = %v, want %v", tt.userRoles, tt.roles, got, tt.want)
			}
		})
	}
}

func TestHasPermission(t *testing.T) {
	e := NewEvaluator(testMatrix())

	tests := []struct {
		name      string
		userRoles []string
		perm      string
		want      bool
	}{
		{"granted", []string{"company_user"}, "invoices.view", true},
		{"granted via second role", []string{"empty_role", "company_admin"}, "settings.manage", true},
		{"not granted", []string{"company_user"}, "settings.manage", false},
		{"unknown role grants nothing", []string{"auditor"}, "invoices.view", false},
		{"zero roles fail closed", nil, "invoices.view", false},
		{"empty role set fails closed", []string{"empty_role"}, "invoices.view", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.HasPermission(tt.userRoles, tt.perm)
			if got != tt.want {
				t.Errorf("HasPermission(%v, %q) = %v, want %v", tt.userRoles, tt.perm, got, tt.want)
			}

			// Single-permission consistency: HasPermission(p) must equal
			// HasAnyPermission(p) for every role set.
			if any := e.HasAnyPermission(tt.userRoles, tt.perm); any != got {
				t.Errorf("HasAnyPermission(%v, %q) = %v, HasPermission = %v", tt.userRoles, tt.perm, any, got)
			}
		})
	}
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	e := NewEvaluator(testMatrix())
	user := []string{"company_user"}

	if !e.HasAnyPermission(user, "settings.manage", "invoices.view") {
		t.Errorf("HasAnyPermission should pass with one granted permission")
	}
	if e.HasAnyPermission(user, "settings.manage", "invoices.create") {
		t.Errorf("HasAnyPermission should fail with no granted permission")
	}
	if e.HasAllPermissions(user, "invoices.view", "invoices.create") {
		t.Errorf("HasAllPermissions should fail when one permission is missing")
	}
	if !e.HasAllPermissions([]string{"company_admin"}, "invoices.view", "invoices.create") {
		t.Errorf("HasAllPermissions should pass when every permission is granted")
	}
	if !e.HasAllPermissions(user) {
		t.Errorf("HasAllPermissions with no arguments should be vacuously true")
	}
}

func TestPermissionsFor(t *testing.T) {
	e := NewEvaluator(testMatrix())

	got := e.PermissionsFor([]string{"company_admin", "company_user"})
	sort.Strings(got)
	want := []string{"invoices.create", "invoices.view", "settings.manage"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PermissionsFor mismatch (-want +got):\n%s", diff)
	}

	if perms := e.PermissionsFor(nil); len(perms) != 0 {
		t.Errorf("PermissionsFor(nil) = %v, want empty", perms)
	}
}

func TestLoadMatrix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	data := []byte("roles:\n  company_admin: [invoices.view, invoices.create]\n  company_user: [invoices.view]\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write matrix file: %v", err)
	}

	m, err := LoadMatrix(path)
	if err != nil {
		t.Fatalf("LoadMatrix: unexpected error: %v", err)
	}
	want := Matrix{
		"company_admin": {"invoices.view", "invoices.create"},
		"company_user":  {"invoices.view"},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("LoadMatrix mismatch (-want +got):\n%s", diff)
	}

	if _, err := LoadMatrix(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("LoadMatrix of missing file should error")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("roles: [not, a, map]"), 0600); err != nil {
		t.Fatalf("write bad file: %v", err)
	}
	if _, err := LoadMatrix(bad); err == nil {
		t.Errorf("LoadMatrix of malformed file should error")
	}
}
