package auth

import (
	"slices"
	"strings"

	"github.com/starland/ledger/internal/domain/models"
)

// Action is an operation on a resource.
type Action string

// Actions covered by the permission matrix.
const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Resources covered by the permission matrix.
const (
	ResourceSales      = "sales"
	ResourceExpenses   = "expenses"
	ResourceDiesel     = "diesel"
	ResourceRepairs    = "repairs"
	ResourceDamages    = "damages"
	ResourceProduction = "production"
	ResourceMaterials  = "materials"
	ResourceUsers      = "users"
	ResourceReports    = "reports"
	ResourceAudit      = "audit"
)

// Landing pages and the login page.
const (
	LoginPage             = "/index.html"
	ManagementLandingPage = "/management/dashboard.html"
	EntryLandingPage      = "/entry/sales.html"
)

var allActions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

// RecordResources are the bookkeeping entry resources.
var RecordResources = []string{
	ResourceSales, ResourceExpenses, ResourceDiesel, ResourceRepairs,
	ResourceDamages, ResourceProduction, ResourceMaterials,
}

// RouteRule restricts paths containing Prefix to Roles.
type RouteRule struct {
	Prefix string
	Roles  []models.Role
}

// Policy is the single source of truth for page access and resource permissions.
type Policy struct {
	Routes      []RouteRule
	Privileged  []models.Role
	Permissions map[models.Role]map[string][]Action
	Landing     map[models.Role]string
	Login       string
}

// Decision is the outcome of a route check.
type Decision struct {
	Allowed  bool
	Redirect string
}

// DefaultPolicy returns the Starland access rules.
func DefaultPolicy() Policy {
	all := map[string][]Action{}
	for _, r := range append(slices.Clone(RecordResources), ResourceUsers, ResourceReports, ResourceAudit) {
		all[r] = allActions
	}

	entry := map[string][]Action{}
	for _, r := range RecordResources {
		entry[r] = []Action{ActionCreate, ActionRead}
	}

	return Policy{
		Routes: []RouteRule{
			{Prefix: "/management/", Roles: []models.Role{models.RoleManagement}},
			{Prefix: "/entry/", Roles: []models.Role{models.RoleManagement, models.RoleEntry}},
		},
		Privileged: []models.Role{models.RoleManagement, models.RoleAdmin},
		Permissions: map[models.Role]map[string][]Action{
			models.RoleAdmin:      all,
			models.RoleManagement: all,
			models.RoleEntry:      entry,
		},
		Landing: map[models.Role]string{
			models.RoleAdmin:      ManagementLandingPage,
			models.RoleManagement: ManagementLandingPage,
			models.RoleEntry:      EntryLandingPage,
		},
		Login: LoginPage,
	}
}

// Guard decides whether role may open path. Rules match by substring and the first match wins.
func (p Policy) Guard(path string, role models.Role) Decision {
	if role == "" {
		return Decision{Redirect: p.Login}
	}
	if p.IsPrivileged(role) {
		return Decision{Allowed: true}
	}
	for _, rule := range p.Routes {
		if !strings.Contains(path, rule.Prefix) {
			continue
		}
		if slices.Contains(rule.Roles, role) {
			return Decision{Allowed: true}
		}
		return Decision{Redirect: p.LandingFor(role)}
	}
	return Decision{Allowed: true}
}

// Protects reports whether any route rule covers path.
func (p Policy) Protects(path string) bool {
	for _, rule := range p.Routes {
		if strings.Contains(path, rule.Prefix) {
			return true
		}
	}
	return false
}

// IsPrivileged reports whether role bypasses the route rules.
func (p Policy) IsPrivileged(role models.Role) bool {
	return slices.Contains(p.Privileged, role)
}

// LandingFor returns the page a role starts on, or the login page for unknown roles.
func (p Policy) LandingFor(role models.Role) string {
	if page, ok := p.Landing[role]; ok {
		return page
	}
	return p.Login
}

// Can reports whether role may perform action on resource.
func (p Policy) Can(role models.Role, action Action, resource string) bool {
	return slices.Contains(p.Permissions[role][resource], action)
}

func (p Policy) CanCreate(role models.Role, resource string) bool {
	return p.Can(role, ActionCreate, resource)
}

func (p Policy) CanRead(role models.Role, resource string) bool {
	return p.Can(role, ActionRead, resource)
}

func (p Policy) CanUpdate(role models.Role, resource string) bool {
	return p.Can(role, ActionUpdate, resource)
}

func (p Policy) CanDelete(role models.Role, resource string) bool {
	return p.Can(role, ActionDelete, resource)
}
