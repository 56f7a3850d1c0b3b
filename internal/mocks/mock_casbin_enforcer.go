package mocks

import (
	"path"
	"regexp"
	"slices"

	"github.com/you/findmyseat/domain"
)

// MockCasbinEnforcer implements the CasbinEnforcer interface for testing
type MockCasbinEnforcer struct {
	AddPolicyFunc  func(params ...interface{}) (bool, error)
	EnforceFunc    func(rvals ...interface{}) (bool, error)
	GetPolicyFunc  func() ([][]string, error)
	SavePolicyFunc func() error
	policies       [][]string
}

// Compile-time interface compliance verification
var _ domain.CasbinEnforcer = (*MockCasbinEnforcer)(nil)

// NewMockCasbinEnforcer creates a new MockCasbinEnforcer with default behaviors
func NewMockCasbinEnforcer() *MockCasbinEnforcer {
	return &MockCasbinEnforcer{
		policies: [][]string{
			{"role_admin", "/admin/*", "(GET|POST|PATCH)"},
			{"role_user", "/organizer/*", "(GET|POST)"},
		},
	}
}

// AddPolicy adds a new policy rule
func (m *MockCasbinEnforcer) AddPolicy(params ...interface{}) (bool, error) {
	if m.AddPolicyFunc != nil {
		return m.AddPolicyFunc(params...)
	}

	if len(params) >= 3 {
		policy := make([]string, len(params))
		for i, param := range params {
			if str, ok := param.(string); ok {
				policy[i] = str
			}
		}
		for _, existing := range m.policies {
			if slices.Equal(existing, policy) {
				return false, nil
			}
		}
		m.policies = append(m.policies, policy)
		return true, nil
	}
	return false, nil
}

// Enforce checks the request against the stored policies using glob resources
// and regex actions, approximating keyMatch2 and regexMatch.
func (m *MockCasbinEnforcer) Enforce(rvals ...interface{}) (bool, error) {
	if m.EnforceFunc != nil {
		return m.EnforceFunc(rvals...)
	}

	if len(rvals) < 3 {
		return false, nil
	}
	role, ok1 := rvals[0].(string)
	resource, ok2 := rvals[1].(string)
	action, ok3 := rvals[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return false, nil
	}

	for _, policy := range m.policies {
		if len(policy) < 3 || policy[0] != role {
			continue
		}
		if policy[1] != resource {
			if matched, _ := path.Match(policy[1], resource); !matched {
				continue
			}
		}
		if matched, _ := regexp.MatchString("^"+policy[2]+"$", action); matched {
			return true, nil
		}
	}
	return false, nil
}

// GetPolicy returns all policies
func (m *MockCasbinEnforcer) GetPolicy() ([][]string, error) {
	if m.GetPolicyFunc != nil {
		return m.GetPolicyFunc()
	}
	result := make([][]string, len(m.policies))
	for i, policy := range m.policies {
		result[i] = make([]string, len(policy))
		copy(result[i], policy)
	}
	return result, nil
}

// SavePolicy saves all policies
func (m *MockCasbinEnforcer) SavePolicy() error {
	if m.SavePolicyFunc != nil {
		return m.SavePolicyFunc()
	}
	return nil
}

// SetPolicies sets the internal policies (test helper)
func (m *MockCasbinEnforcer) SetPolicies(policies [][]string) {
	m.policies = make([][]string, len(policies))
	for i, policy := range policies {
		m.policies[i] = make([]string, len(policy))
		copy(m.policies[i], policy)
	}
}
