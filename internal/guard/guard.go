// Package guard decides, per request, whether to serve the page or redirect.
//
// The decision is an ordered rule table evaluated top to bottom; the first rule whose condition
// holds produces the outcome. Adding a rule means adding a row, not another branch.
package guard

import (
	"strings"

	"github.com/jwalitptl/consultorio/internal/model"
)

const (
	LoginPath = "/login"

	odontoPrefix = "/odonto"
	masterPrefix = "/odonto/maestro"
	adminPrefix  = "/administrativo"
)

// Decision is either Allow or a redirect to Location.
type Decision struct {
	Allow    bool
	Location string
	// Rule names the rule that produced the decision.
	Rule string
}

func allow() Decision { return Decision{Allow: true, Rule: "allow"} }

func redirectTo(rule, location string) Decision {
	return Decision{Location: location, Rule: rule}
}

// Request is what the guard looks at. Identity is nil for anonymous requests.
type Request struct {
	Path     string
	Identity *model.Identity
}

type Config struct {
	MasterEmail        string
	AdminModuleEnabled bool
	// Homes overrides the landing page per module.
	Homes map[model.Module]string
}

type rule struct {
	name    string
	when    func(Request) bool
	outcome func(Request) Decision
}

type Guard struct {
	masterEmail  string
	adminEnabled bool
	homes        map[model.Module]string
	rules        []rule
}

func New(cfg Config) *Guard {
	g := &Guard{
		masterEmail:  model.NormalizeEmail(cfg.MasterEmail),
		adminEnabled: cfg.AdminModuleEnabled,
		homes: map[model.Module]string{
			model.ModuleOdonto:         "/odonto/pacientes",
			model.ModuleAdministrativo: "/administrativo/expedientes",
		},
	}
	for m, home := range cfg.Homes {
		g.homes[m] = home
	}

	g.rules = []rule{
		{
			name:    "anonymous",
			when:    func(r Request) bool { return r.Identity == nil && isProtected(r.Path) },
			outcome: func(Request) Decision { return redirectTo("anonymous", LoginPath) },
		},
		{
			name: "master_only",
			when: func(r Request) bool {
				return r.Identity != nil && isMasterScoped(r.Path) && !g.IsMaster(r.Identity.Email())
			},
			outcome: g.toHome("master_only"),
		},
		{
			name: "module_disabled",
			when: func(r Request) bool {
				return r.Identity != nil && isAdminScoped(r.Path) && !g.adminEnabled
			},
			outcome: g.toHome("module_disabled"),
		},
		{
			name: "module_mismatch",
			when: func(r Request) bool {
				if r.Identity == nil {
					return false
				}
				scope, ok := Scope(r.Path)
				return ok && scope != r.Identity.Module
			},
			outcome: g.toHome("module_mismatch"),
		},
	}
	return g
}

// Evaluate returns the outcome of the first matching rule, or Allow.
func (g *Guard) Evaluate(r Request) Decision {
	for _, rl := range g.rules {
		if rl.when(r) {
			return rl.outcome(r)
		}
	}
	return allow()
}

func (g *Guard) toHome(name string) func(Request) Decision {
	return func(r Request) Decision {
		return redirectTo(name, g.Home(r.Identity.Module))
	}
}

// Home is the landing page of a module. A disabled or unknown module lands on the odonto home.
func (g *Guard) Home(m model.Module) string {
	if m == model.ModuleAdministrativo && !g.adminEnabled {
		m = model.ModuleOdonto
	}
	if home, ok := g.homes[m]; ok {
		return home
	}
	return g.homes[model.ModuleOdonto]
}

func (g *Guard) IsMaster(email string) bool {
	return g.masterEmail != "" && model.NormalizeEmail(email) == g.masterEmail
}

func (g *Guard) AdminEnabled() bool { return g.adminEnabled }

// Scope returns the module a path belongs to.
func Scope(path string) (model.Module, bool) {
	switch {
	case hasSegmentPrefix(path, odontoPrefix):
		return model.ModuleOdonto, true
	case hasSegmentPrefix(path, adminPrefix):
		return model.ModuleAdministrativo, true
	default:
		return "", false
	}
}

func isProtected(path string) bool {
	_, ok := Scope(path)
	return ok
}

func isMasterScoped(path string) bool { return hasSegmentPrefix(path, masterPrefix) }

func isAdminScoped(path string) bool { return hasSegmentPrefix(path, adminPrefix) }

// hasSegmentPrefix matches prefix itself and anything below it, but not /odontologia.
func hasSegmentPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
