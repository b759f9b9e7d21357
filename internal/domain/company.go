package domain

import "time"

// CompanyRole is the relationship of a company to a game.
type CompanyRole string

const (
	CompanyRoleDeveloper CompanyRole = "developer"
	CompanyRolePublisher CompanyRole = "publisher"
)

// String returns the string representation of CompanyRole.
func (r CompanyRole) String() string {
	return string(r)
}

// IsValid checks if the company role is a valid value.
func (r CompanyRole) IsValid() bool {
	return r == CompanyRoleDeveloper || r == CompanyRolePublisher
}

// Company is a developer or publisher, unique by slug and by
// case-insensitive name.
// Corresponds to companies table in PostgreSQL.
type Company struct {
	ID        int64
	Name      string
	Slug      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GameCompanyRole links a game to a company in a given role. Unique per
// (game_id, company_id, role).
// Corresponds to game_company_roles table in PostgreSQL.
type GameCompanyRole struct {
	ID        int64
	GameID    int64
	CompanyID int64
	Role      CompanyRole
	CreatedAt time.Time
}

// CompanyRef is a source-side company reference carried on a ProcessedGame
// before it is resolved to a companies row.
type CompanyRef struct {
	Name string
	Slug string
	Role CompanyRole
}
