package models

import "github.com/google/uuid"

// Principal is the identity an access token resolves to.
// Values returned by a principal store are snapshots and must not be mutated.
type Principal struct {
	UserID         uuid.UUID `json:"user_id"`
	Identifier     string    `json:"identifier"`
	CredentialHash string    `json:"-"`
	Authorities    []string  `json:"authorities"`
}

// HasAuthority reports whether the principal was granted the authority
func (p *Principal) HasAuthority(authority string) bool {
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}
