// Package roster loads the club contact list from CSV. The roster is an
// external input file with one row per contact; clubs appear once per
// contact, so lookups collapse rows by normalized club name.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/photoreach/club-outreach/internal/domain"
	"github.com/photoreach/club-outreach/internal/pkg/logger"
)

var (
	ErrNoHeader       = errors.New("no header row detected in roster CSV")
	ErrMissingColumns = errors.New("roster CSV is missing required columns")
)

// Roster is an in-memory index of the club contact list.
type Roster struct {
	clubs    map[string]domain.Club // keyed by normalized club name
	contacts map[string][]Contact
	order    []string
}

// Contact is one person attached to a club.
type Contact struct {
	Name  string
	Email string
	Role  string
}

// Load reads the roster CSV at path.
func Load(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening roster: %w", err)
	}
	defer f.Close()

	r, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}
	logger.Info("roster loaded", "path", path, "clubs", len(r.order))
	return r, nil
}

// Parse reads roster rows from an io.Reader. Required columns: Club,
// Country, Website; contact columns (Name, Email, Role) are optional.
// Malformed rows are skipped, matching how the roster files are produced.
func Parse(rd io.Reader) (*Roster, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, ErrNoHeader
	}

	idx := map[string]int{}
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	clubIdx, ok := idx["club"]
	if !ok {
		return nil, fmt.Errorf("%w: Club", ErrMissingColumns)
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	r := &Roster{
		clubs:    make(map[string]domain.Club),
		contacts: make(map[string][]Contact),
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip malformed rows rather than failing the whole load.
			continue
		}
		if clubIdx >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[clubIdx])
		if name == "" {
			continue
		}

		key := domain.NormalizeClubName(name)
		contact := Contact{
			Name:  field(row, "name"),
			Email: field(row, "email"),
			Role:  field(row, "role"),
		}

		if _, seen := r.clubs[key]; !seen {
			r.clubs[key] = domain.Club{
				Name:         name,
				Country:      field(row, "country"),
				Website:      field(row, "website"),
				ContactName:  contact.Name,
				ContactEmail: contact.Email,
				ContactRole:  contact.Role,
			}
			r.order = append(r.order, key)
		}
		if contact.Email != "" {
			r.contacts[key] = append(r.contacts[key], contact)
		}
	}

	return r, nil
}

// Lookup resolves a club by name, case-insensitively.
func (r *Roster) Lookup(clubName string) (domain.Club, error) {
	club, ok := r.clubs[domain.NormalizeClubName(clubName)]
	if !ok {
		return domain.Club{}, domain.ErrClubNotFound
	}
	return club, nil
}

// Contacts returns all known contacts for a club.
func (r *Roster) Contacts(clubName string) []Contact {
	return r.contacts[domain.NormalizeClubName(clubName)]
}

// ContactName resolves a contact's name by email, falling back to "Unknown".
func (r *Roster) ContactName(clubName, email string) string {
	for _, c := range r.Contacts(clubName) {
		if strings.EqualFold(c.Email, email) {
			if c.Name != "" {
				return c.Name
			}
			break
		}
	}
	return "Unknown"
}

// ClubForEmail resolves which club a contact email belongs to.
func (r *Roster) ClubForEmail(email string) (domain.Club, bool) {
	for _, key := range r.order {
		for _, c := range r.contacts[key] {
			if strings.EqualFold(c.Email, email) {
				return r.clubs[key], true
			}
		}
	}
	return domain.Club{}, false
}

// ClubForSlug resolves a club from its lowercase-hyphen slug, the form used
// in transport tags.
func (r *Roster) ClubForSlug(slug string) (domain.Club, bool) {
	for _, key := range r.order {
		club := r.clubs[key]
		if domain.ClubSlug(club.Name) == slug {
			return club, true
		}
	}
	return domain.Club{}, false
}

// Clubs returns all clubs in roster order.
func (r *Roster) Clubs() []domain.Club {
	out := make([]domain.Club, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.clubs[key])
	}
	return out
}

// Len returns the number of unique clubs.
func (r *Roster) Len() int { return len(r.order) }
