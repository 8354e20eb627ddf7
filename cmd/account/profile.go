package account

import (
	"strings"
	"time"
)

// Role is the league role attached to a profile.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCoach    Role = "coach"
	RoleGymAdmin Role = "gym_admin"
	RoleGymnast  Role = "gymnast"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCoach, RoleGymAdmin, RoleGymnast:
		return true
	default:
		return false
	}
}

// ParseRole parses a role name (case-insensitive).
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", Invalid("account.ParseRole", "unknown role")
	}
	return r, nil
}

// DateLayout is the wire format of Profile.DateOfBirth.
const DateLayout = "2006-01-02"

// Gym is the organizational unit a profile may belong to.
type Gym struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	City      *string   `json:"city,omitempty" yaml:"city,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Profile is the extended account record. It is replaced as a whole value,
// never edited field by field.
type Profile struct {
	ID          string    `json:"id" yaml:"id"`
	Email       string    `json:"email" yaml:"email"`
	FirstName   string    `json:"first_name" yaml:"first_name"`
	LastName    string    `json:"last_name" yaml:"last_name"`
	Role        Role      `json:"role" yaml:"role"`
	GymID       *string   `json:"gym_id" yaml:"gym_id"`
	Phone       *string   `json:"phone,omitempty" yaml:"phone,omitempty"`
	DateOfBirth *string   `json:"date_of_birth,omitempty" yaml:"date_of_birth,omitempty"`
	IsActive    bool      `json:"is_active" yaml:"is_active"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`

	// Gym is populated when the profile was loaded joined with its gym row.
	Gym *Gym `json:"gym,omitempty" yaml:"gym,omitempty"`
}

// Validate checks that p is a well-formed profile.
func (p Profile) Validate() error {
	const op = "account.Profile.Validate"

	if strings.TrimSpace(p.ID) == "" {
		return Invalid(op, "missing id")
	}
	if strings.TrimSpace(p.Email) == "" || !strings.Contains(p.Email, "@") {
		return Invalid(op, "missing or malformed email")
	}
	if !p.Role.Valid() {
		return Invalid(op, "unknown role")
	}
	if p.GymID != nil && strings.TrimSpace(*p.GymID) == "" {
		return Invalid(op, "empty gym_id")
	}
	if p.DateOfBirth != nil {
		if _, err := time.Parse(DateLayout, *p.DateOfBirth); err != nil {
			return Invalid(op, "malformed date_of_birth")
		}
	}
	if p.Gym != nil && (p.GymID == nil || p.Gym.ID != *p.GymID) {
		return Invalid(op, "gym does not match gym_id")
	}
	return nil
}

// Clone returns a deep copy so callers can hand profiles across goroutines
// without sharing the optional fields.
func (p Profile) Clone() Profile {
	out := p
	out.GymID = clonePtr(p.GymID)
	out.Phone = clonePtr(p.Phone)
	out.DateOfBirth = clonePtr(p.DateOfBirth)
	if p.Gym != nil {
		g := *p.Gym
		g.City = clonePtr(p.Gym.City)
		out.Gym = &g
	}
	return out
}

// ProfileSeed is the data collected at signup.
type ProfileSeed struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// NewSignupProfile builds the profile for a fresh signup.
// Signup never grants a role other than gymnast and never assigns a gym.
func NewSignupProfile(seed ProfileSeed, now time.Time) (Profile, error) {
	const op = "account.NewSignupProfile"

	if now.IsZero() {
		now = time.Now().UTC()
	}
	if strings.TrimSpace(seed.ID) == "" {
		return Profile{}, Invalid(op, "missing id")
	}
	email := strings.TrimSpace(seed.Email)
	if email == "" {
		return Profile{}, Invalid(op, "missing email")
	}

	p := Profile{
		ID:        seed.ID,
		Email:     email,
		FirstName: strings.TrimSpace(seed.FirstName),
		LastName:  strings.TrimSpace(seed.LastName),
		Role:      RoleGymnast,
		GymID:     nil,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return p, p.Validate()
}

// NormalizeOptional trims the optional text fields, turning blanks into nil.
func (p Profile) NormalizeOptional() Profile {
	p.GymID = trimPtr(p.GymID)
	p.Phone = trimPtr(p.Phone)
	p.DateOfBirth = trimPtr(p.DateOfBirth)
	return p
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}
