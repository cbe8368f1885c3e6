package ratelimit

import (
	"strings"

	"aspirasi-gateway/middleware/ratelimit/domain"
)

// ClassRule associa prefixos de rota a uma classe e ao seu limiter.
type ClassRule struct {
	Class    domain.RouteClass
	Prefixes []string
	Limiter  domain.Limiter
}

// ClassRouter escolhe a classe de uma rota. A primeira regra com prefixo
// compatível vence, então regras específicas devem vir antes da genérica.
type ClassRouter struct {
	rules []ClassRule
}

func NewClassRouter(rules ...ClassRule) *ClassRouter {
	return &ClassRouter{rules: rules}
}

func (c *ClassRouter) Match(path string) (ClassRule, bool) {
	if c == nil {
		return ClassRule{}, false
	}
	for _, rule := range c.rules {
		for _, p := range rule.Prefixes {
			if p != "" && strings.HasPrefix(path, p) {
				return rule, true
			}
		}
	}
	return ClassRule{}, false
}

func (c *ClassRouter) Rules() []ClassRule {
	if c == nil {
		return nil
	}
	out := make([]ClassRule, len(c.rules))
	copy(out, c.rules)
	return out
}

// DefaultPrefixes devolve os prefixos usados pelo portal para cada classe.
func DefaultPrefixes(class domain.RouteClass) []string {
	switch class {
	case domain.ClassEmail:
		return []string{"/api/send-email"}
	case domain.ClassSubmission:
		return []string{"/api/check-cooldown", "/api/aspirations"}
	case domain.ClassGeneral:
		return []string{"/api/"}
	default:
		return nil
	}
}
