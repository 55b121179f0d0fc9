package users

// RoleType names an operator role on the delivery platform back office.
// Roles drive which navigation routes the backend grants.
type RoleType string

const (
	RoleAdmin      RoleType = "admin"      // Full back-office access
	RoleDispatcher RoleType = "dispatcher" // Order tracking and courier assignment
	RoleFinance    RoleType = "finance"    // Reports and settlements
	RoleSupport    RoleType = "support"    // Customer and order look-ups
)

// Profile is the operator profile persisted next to the token pair so the UI
// can read it synchronously without decoding the access token.
type Profile struct {
	ID          string `json:"id,omitempty"`          // Subject id, matches the token "sub" claim
	DisplayName string `json:"displayName,omitempty"` // Short name shown in headers
	FullName    string `json:"fullName,omitempty"`    // First and last name
	RoleName    string `json:"roleName,omitempty"`    // Role as reported by the backend
	PhotoURL    string `json:"photoUrl,omitempty"`    // Avatar location
	Email       string `json:"email,omitempty"`       // Contact address
}

// Role returns the profile role as a RoleType.
func (p Profile) Role() RoleType {
	return RoleType(p.RoleName)
}

// HasRole reports whether the profile carries the given role.
func (p Profile) HasRole(role RoleType) bool {
	return p.Role() == role
}

// IsZero reports whether no identifying field is set.
func (p Profile) IsZero() bool {
	return p == Profile{}
}

// Merge fills empty fields of p from fallback and returns the result.
func (p Profile) Merge(fallback Profile) Profile {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&p.ID, fallback.ID)
	fill(&p.DisplayName, fallback.DisplayName)
	fill(&p.FullName, fallback.FullName)
	fill(&p.RoleName, fallback.RoleName)
	fill(&p.PhotoURL, fallback.PhotoURL)
	fill(&p.Email, fallback.Email)
	return p
}
