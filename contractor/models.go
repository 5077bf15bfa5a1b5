package contractor

import "time"

// Profile is the contractor record joined into quote notifications.
type Profile struct {
	ID             string
	OrganizationID string
	UserID         *string
	CompanyName    string
	ContactName    string
	Email          string
	Phone          string
	Trade          string
	Active         bool
	CreatedAt      time.Time
}

// DisplayName prefers the company name, falling back to the contact name.
func (p Profile) DisplayName() string {
	if p.CompanyName != "" {
		return p.CompanyName
	}
	return p.ContactName
}
