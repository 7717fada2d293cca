package domain

import (
	"fmt"
	"strings"
)

// EmailType enumerates the three outreach email stages.
type EmailType string

const (
	EmailIntroduction EmailType = "introduction"
	EmailCheckup      EmailType = "checkup"
	EmailAcceptance   EmailType = "acceptance"
)

// EmailTypes lists all valid email types in pipeline order.
func EmailTypes() []EmailType {
	return []EmailType{EmailIntroduction, EmailCheckup, EmailAcceptance}
}

// ParseEmailType validates a raw email type string at the ingestion boundary.
// Unknown values are rejected rather than stored as free text.
func ParseEmailType(s string) (EmailType, error) {
	switch EmailType(strings.ToLower(strings.TrimSpace(s))) {
	case EmailIntroduction:
		return EmailIntroduction, nil
	case EmailCheckup:
		return EmailCheckup, nil
	case EmailAcceptance:
		return EmailAcceptance, nil
	default:
		return "", fmt.Errorf("unknown email type %q", s)
	}
}

// Club is one photography club from the roster, the unit of outreach.
type Club struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	Website string `json:"website"`

	// Primary contact from the roster, when known.
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	ContactRole  string `json:"contact_role"`
}

// NormalizeClubName produces the canonical lookup key for a club.
// Club names in the roster are matched case-insensitively.
func NormalizeClubName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// ClubSlug is the lowercase-hyphen form of a club name, used in response IDs
// and transport tags.
func ClubSlug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
