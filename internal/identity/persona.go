package identity

import "fmt"

// Persona is a guest persona type. The set is fixed; a persisted value
// outside it is treated as corrupt.
type Persona string

const (
	PersonaExplorer Persona = "explorer"
	PersonaReviewer Persona = "reviewer"
	PersonaAdmin    Persona = "admin"
)

// Personas lists all valid guest personas.
func Personas() []Persona {
	return []Persona{PersonaExplorer, PersonaReviewer, PersonaAdmin}
}

// ParsePersona validates a raw string against the known persona set.
func ParsePersona(raw string) (Persona, error) {
	p := Persona(raw)
	switch p {
	case PersonaExplorer, PersonaReviewer, PersonaAdmin:
		return p, nil
	}
	return "", fmt.Errorf("unknown guest persona %q", raw)
}
