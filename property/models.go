package property

import (
	"strings"
	"time"
)

// Profile captures the property details surfaced in contractor notifications.
type Profile struct {
	ID                  string
	OrganizationID      string
	Name                string
	AddressLine1        string
	AddressLine2        string
	City                string
	Postcode            string
	PracticeLeaderName  *string
	PracticeLeaderEmail *string
	PracticeLeaderPhone *string
	LandlordName        *string
	LandlordEmail       *string
	CreatedAt           time.Time
}

// Address joins the non-empty address parts with ", ".
func (p Profile) Address() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{p.AddressLine1, p.AddressLine2, p.City, p.Postcode} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
