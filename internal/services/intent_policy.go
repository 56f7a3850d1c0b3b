package services

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/you/findmyseat/domain"
)

// rolePrefix keeps session roles apart from any other casbin subject
const rolePrefix = "role_"

var grantableMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
}

// IntentRules implements domain.IntentPolicy over a casbin enforcer. Callers
// speak in session roles ("admin"); the role_ subject is an enforcer detail.
type IntentRules struct {
	enforcer domain.CasbinEnforcer
}

// NewIntentRules creates the intent policy
func NewIntentRules(enforcer domain.CasbinEnforcer) *IntentRules {
	return &IntentRules{enforcer: enforcer}
}

// Allow reports whether role may send method to route. An empty role is never allowed.
func (r *IntentRules) Allow(role, method, route string) (bool, error) {
	if role == "" {
		return false, nil
	}
	allowed, err := r.enforcer.Enforce(rolePrefix+role, route, strings.ToUpper(method))
	if err != nil {
		return false, fmt.Errorf("failed to enforce %s %s for %s: %w", method, route, role, err)
	}
	return allowed, nil
}

// Grant adds rule and persists it. A duplicate rule is reported as
// ErrPolicyExists and nothing is saved.
func (r *IntentRules) Grant(rule domain.PolicyRule) error {
	rule, err := normalizeRule(rule)
	if err != nil {
		return err
	}
	added, err := r.enforcer.AddPolicy(rolePrefix+rule.Role, rule.Route, rule.Methods)
	if err != nil {
		return fmt.Errorf("failed to add policy: %w", err)
	}
	if !added {
		return domain.ErrPolicyExists
	}
	if err := r.enforcer.SavePolicy(); err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

// Rules lists the role rules; subjects that are not session roles are skipped.
func (r *IntentRules) Rules() []domain.PolicyRule {
	policies, err := r.enforcer.GetPolicy()
	if err != nil {
		return nil
	}
	rules := make([]domain.PolicyRule, 0, len(policies))
	for _, p := range policies {
		if len(p) < 3 || !strings.HasPrefix(p[0], rolePrefix) {
			continue
		}
		rules = append(rules, domain.PolicyRule{
			Role:    strings.TrimPrefix(p[0], rolePrefix),
			Route:   p[1],
			Methods: p[2],
		})
	}
	return rules
}

func normalizeRule(rule domain.PolicyRule) (domain.PolicyRule, error) {
	rule.Role = strings.TrimPrefix(strings.TrimSpace(rule.Role), rolePrefix)
	rule.Route = strings.TrimSpace(rule.Route)
	rule.Methods = strings.ToUpper(strings.TrimSpace(rule.Methods))

	switch {
	case rule.Role == "":
		return rule, fmt.Errorf("%w: role is required", domain.ErrInvalidPolicy)
	case !strings.HasPrefix(rule.Route, "/"):
		return rule, fmt.Errorf("%w: route must start with /", domain.ErrInvalidPolicy)
	case rule.Methods == "":
		return rule, fmt.Errorf("%w: methods are required", domain.ErrInvalidPolicy)
	}

	re, err := regexp.Compile("^" + rule.Methods + "$")
	if err != nil {
		return rule, fmt.Errorf("%w: methods: %v", domain.ErrInvalidPolicy, err)
	}
	for _, m := range grantableMethods {
		if re.MatchString(m) {
			return rule, nil
		}
	}
	return rule, fmt.Errorf("%w: methods match no HTTP method", domain.ErrInvalidPolicy)
}
