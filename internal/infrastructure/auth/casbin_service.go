package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/you/findmyseat/domain"
	"gorm.io/gorm"
)

// intentModel matches a role against a resource pattern and an action regex
const intentModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

type CasbinService struct{ E *casbin.Enforcer }

var _ domain.CasbinEnforcer = (*CasbinService)(nil)

// NewCasbinService builds the intent enforcer. With a database the policies are
// persisted through the gorm adapter; without one they live in memory.
func NewCasbinService(db *gorm.DB) (*CasbinService, error) {
	m, err := model.NewModelFromString(intentModel)
	if err != nil {
		return nil, fmt.Errorf("casbin model: %w", err)
	}

	if db == nil {
		E, err := casbin.NewEnforcer(m)
		if err != nil {
			return nil, err
		}
		return &CasbinService{E}, nil
	}

	adp, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("casbin gorm adapter: %w", err)
	}
	E, err := casbin.NewEnforcer(m, adp)
	if err != nil {
		return nil, err
	}
	if err := E.LoadPolicy(); err != nil {
		return nil, err
	}
	return &CasbinService{E}, nil
}

// DefaultPolicies are seeded when the enforcer has none
var DefaultPolicies = [][]string{
	{"role_admin", "/admin/*", "(GET|POST|PATCH)"},
	{"role_user", "/organizer/*", "(GET|POST)"},
}

// SeedDefaults adds DefaultPolicies when no policy exists yet. It reports whether it seeded.
func (s *CasbinService) SeedDefaults() (bool, error) {
	policies, err := s.E.GetPolicy()
	if err != nil {
		return false, err
	}
	if len(policies) > 0 {
		return false, nil
	}
	for _, p := range DefaultPolicies {
		if _, err := s.E.AddPolicy(p[0], p[1], p[2]); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *CasbinService) AddPolicy(params ...interface{}) (bool, error) {
	return s.E.AddPolicy(params...)
}

func (s *CasbinService) Enforce(rvals ...interface{}) (bool, error) {
	return s.E.Enforce(rvals...)
}

func (s *CasbinService) GetPolicy() ([][]string, error) {
	return s.E.GetPolicy()
}

// SavePolicy writes through the gorm adapter; the in-memory enforcer has nothing to save.
func (s *CasbinService) SavePolicy() error {
	if s.E.GetAdapter() == nil {
		return nil
	}
	return s.E.SavePolicy()
}
