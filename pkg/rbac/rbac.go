// Package rbac provides role-based access control checks.
//
// Roles are string tags carried on the user record; permissions are resolved
// through an injected role→permission matrix. All checks are pure and
// fail closed: unknown roles grant nothing, and a user with no roles fails
// every check.
package rbac

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Matrix maps role names to the permissions they grant.
type Matrix map[string][]string

// LoadMatrix reads a role→permission matrix from a YAML file of the form:
//
//	roles:
//	  company_admin: [invoices.view, invoices.create, settings.manage]
//	  company_user:  [invoices.view]
func LoadMatrix(path string) (Matrix, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from client config
	if err != nil {
		return nil, fmt.Errorf("rbac: read matrix: %w", err)
	}
	var cfg struct {
		Roles Matrix `yaml:"roles"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("rbac: parse matrix: %w", err)
	}
	if cfg.Roles == nil {
		cfg.Roles = Matrix{}
	}
	return cfg.Roles, nil
}

// Evaluator answers role and permission checks against a fixed matrix.
type Evaluator struct {
	perms map[string]map[string]bool // role -> permission set
}

// NewEvaluator compiles a matrix into an Evaluator.
func NewEvaluator(m Matrix) *Evaluator {
	perms := make(map[string]map[string]bool, len(m))
	for role, list := range m {
		set := make(map[string]bool, len(list))
		for _, p := range list {
			set[p] = true
		}
		perms[role] = set
	}
	return &Evaluator{perms: perms}
}

// HasAnyRole reports whether the user holds at least one of the given roles.
// An empty roles argument is always false.
func (e *Evaluator) HasAnyRole(userRoles []string, roles ...string) bool {
	for _, want := range roles {
		for _, have := range userRoles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HasAllRoles reports whether the user holds every one of the given roles.
// An empty roles argument is vacuously true.
func (e *Evaluator) HasAllRoles(userRoles []string, roles ...string) bool {
	for _, want := range roles {
		found := false
		for _, have := range userRoles {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// HasPermission reports whether any of the user's roles grants the permission.
func (e *Evaluator) HasPermission(userRoles []string, perm string) bool {
	for _, role := range userRoles {
		if e.perms[role][perm] {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether the user holds at least one of the given
// permissions through any role.
func (e *Evaluator) HasAnyPermission(userRoles []string, perms ...string) bool {
	for _, p := range perms {
		if e.HasPermission(userRoles, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the user holds every one of the given
// permissions. An empty perms argument is vacuously true.
func (e *Evaluator) HasAllPermissions(userRoles []string, perms ...string) bool {
	for _, p := range perms {
		if !e.HasPermission(userRoles, p) {
			return false
		}
	}
	return true
}

// PermissionsFor returns the union of permissions granted by the given
// roles, in unspecified order.
func (e *Evaluator) PermissionsFor(userRoles []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, role := range userRoles {
		for p := range e.perms[role] {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
