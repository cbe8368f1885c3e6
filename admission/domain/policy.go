package domain

import (
	"fmt"
	"time"
)

type Category string

const (
	CategoryAcademic     Category = "Akademik"
	CategoryOrganization Category = "Organisasi"
	CategoryFacilities   Category = "Fasilitas"
	CategoryPolicy       Category = "Kebijakan"
	CategoryOther        Category = "Lainnya"
)

// DefaultNamespace é o appId usado pelo portal quando o cliente não informa.
const DefaultNamespace = "mpa-himakom"

const (
	Day                 = 24 * time.Hour
	DefaultCooldownDays = 7
	DefaultCooldown     = DefaultCooldownDays * Day
	DefaultMaxPerPeriod = 1
)

// AllCategories devolve a enumeração completa, na ordem de exibição.
func AllCategories() []Category {
	return []Category{CategoryAcademic, CategoryOrganization, CategoryFacilities, CategoryPolicy, CategoryOther}
}

func (c Category) Valid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Policy é a configuração de admissão editada pelo administrador.
// Com CooldownEnabled=false os demais campos são ignorados na decisão.
type Policy struct {
	CooldownEnabled         bool
	CooldownWindow          time.Duration
	MaxSubmissionsPerWindow int
	AllowedCategories       []Category
}

// DefaultPolicy é usada quando não existe registro de política.
func DefaultPolicy() Policy {
	return Policy{
		CooldownEnabled:         true,
		CooldownWindow:          DefaultCooldown,
		MaxSubmissionsPerWindow: DefaultMaxPerPeriod,
		AllowedCategories:       AllCategories(),
	}
}

// Normalize troca campos malformados pelos valores padrão, campo a campo.
// Categorias desconhecidas são descartadas; se nenhuma sobrar, vale a lista
// completa.
func (p Policy) Normalize() Policy {
	if p.CooldownWindow <= 0 {
		p.CooldownWindow = DefaultCooldown
	}
	if p.MaxSubmissionsPerWindow < 1 {
		p.MaxSubmissionsPerWindow = DefaultMaxPerPeriod
	}

	seen := make(map[Category]bool, len(p.AllowedCategories))
	cats := make([]Category, 0, len(p.AllowedCategories))
	for _, c := range p.AllowedCategories {
		if c.Valid() && !seen[c] {
			seen[c] = true
			cats = append(cats, c)
		}
	}
	if len(cats) == 0 {
		cats = AllCategories()
	}
	p.AllowedCategories = cats
	return p
}

func (p Policy) Allows(c Category) bool {
	for _, allowed := range p.AllowedCategories {
		if allowed == c {
			return true
		}
	}
	return false
}

// CooldownDays devolve a janela em dias inteiros, arredondando para cima.
func (p Policy) CooldownDays() int {
	days := int(p.CooldownWindow / Day)
	if p.CooldownWindow%Day != 0 {
		days++
	}
	return days
}

// Validate é usado nas escritas do administrador, que não passam por Normalize.
func (p Policy) Validate() error {
	if p.CooldownWindow < Day {
		return fmt.Errorf("%w: cooldownDays must be >= 1", ErrInvalidPolicy)
	}
	if p.MaxSubmissionsPerWindow < 1 {
		return fmt.Errorf("%w: maxAspirationsPerPeriod must be >= 1", ErrInvalidPolicy)
	}
	if len(p.AllowedCategories) == 0 {
		return fmt.Errorf("%w: allowedCategories must not be empty", ErrInvalidPolicy)
	}
	for _, c := range p.AllowedCategories {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidPolicy, c)
		}
	}
	return nil
}

// FailureMode define o que acontece quando a store de política/estado falha.
// O valor zero é FailOpen.
type FailureMode int

const (
	FailOpen FailureMode = iota
	FailClosed
)

func (m FailureMode) String() string {
	if m == FailClosed {
		return "closed"
	}
	return "open"
}

func ParseFailureMode(s string) (FailureMode, error) {
	switch s {
	case "", "open":
		return FailOpen, nil
	case "closed":
		return FailClosed, nil
	}
	return FailOpen, fmt.Errorf("unknown failure mode %q (want open|closed)", s)
}
