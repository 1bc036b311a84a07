package services

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/reconcile"
)

var (
	middleInitialRe = regexp.MustCompile(`\b[a-z]\.?\s`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	punctuationRe   = regexp.MustCompile(`['’.]`)
)

var nameSuffixes = []string{"jr", "sr", "ii", "iii", "iv", "phd", "md"}

// NormalizeName reduces a display name to the key used to recognise the same
// person across source systems: lower case, no diacritics, no suffixes or
// middle initials, and "Last, First" turned into "first last".
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return s
	}
	s = stripDiacritics(s)
	for _, suffix := range nameSuffixes {
		s = strings.TrimSuffix(s, " "+suffix)
		s = strings.TrimSuffix(s, ","+suffix)
	}
	s = middleInitialRe.ReplaceAllString(s, "")
	s = punctuationRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")

	if parts := strings.SplitN(s, ",", 2); len(parts) == 2 {
		first := strings.TrimSpace(parts[1])
		last := strings.TrimSpace(parts[0])
		if first != "" && last != "" {
			s = first + " " + last
		}
	}
	return strings.TrimSpace(s)
}

func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// mergeGroup accumulates the entries of one person.
type mergeGroup struct {
	employee *models.Employee
	emails   map[string]bool
	values   map[string][]models.SourceValue
}

// MergeEntries folds directory entries from every source into employee
// records, one per normalized name, in first-seen order. Emails are
// de-duplicated case-insensitively and the first primary address wins.
// Attributes reported differently by several sources become conflicts; the
// first reported value is kept as the current one. Each record is tagged with
// its dominant issue.
func MergeEntries(projectID uuid.UUID, entries []models.DirectoryEntry, required []string) []*models.Employee {
	fold := cases.Fold()
	groups := make(map[string]*mergeGroup)
	var order []*mergeGroup

	for _, entry := range entries {
		address := strings.TrimSpace(entry.Email)
		if address == "" {
			continue
		}
		key := NormalizeName(entry.Name)
		if key == "" {
			key = "@" + fold.String(address)
		}

		g, ok := groups[key]
		if !ok {
			name := strings.TrimSpace(entry.Name)
			if name == "" {
				name = address
			}
			g = &mergeGroup{
				employee: &models.Employee{
					ID:         uuid.New(),
					ProjectID:  projectID,
					Name:       name,
					IsIncluded: true,
				},
				emails: make(map[string]bool),
				values: make(map[string][]models.SourceValue),
			}
			groups[key] = g
			order = append(order, g)
		}
		g.add(entry, address, fold.String(address))
	}

	employees := make([]*models.Employee, 0, len(order))
	for _, g := range order {
		employees = append(employees, g.finish(required))
	}
	return employees
}

func (g *mergeGroup) add(entry models.DirectoryEntry, address, folded string) {
	e := g.employee
	if !g.emails[folded] {
		g.emails[folded] = true
		primary := entry.IsPrimary && !hasPrimary(e.Emails)
		e.Emails = append(e.Emails, models.EmailAddress{
			Address:   address,
			Source:    models.StringPtr(entry.Source),
			IsPrimary: primary,
		})
	}

	e.EmailCount += entry.EmailCount
	e.ChatCount += entry.ChatCount
	e.MeetingCount += entry.MeetingCount
	e.FileAccessCount += entry.FileAccessCount

	for field, value := range map[string]string{
		models.FieldDepartment: entry.Department,
		models.FieldPosition:   entry.Position,
		models.FieldLocation:   entry.Location,
	} {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		g.values[field] = append(g.values[field], models.SourceValue{Source: entry.Source, Value: value})
	}
}

func (g *mergeGroup) finish(required []string) *models.Employee {
	e := g.employee
	for _, field := range []string{models.FieldDepartment, models.FieldPosition, models.FieldLocation} {
		reported := g.values[field]
		if len(reported) == 0 {
			continue
		}
		current := models.StringPtr(reported[0].Value)
		switch field {
		case models.FieldDepartment:
			e.Department = current
		case models.FieldPosition:
			e.Position = current
		case models.FieldLocation:
			e.Location = current
		}
		conflict := models.AttributeConflict{Field: field, Values: reported}
		if len(conflict.DistinctValues()) > 1 {
			e.Conflicts = append(e.Conflicts, conflict)
		}
	}
	e.SetIssue(reconcile.DetectIssueType(e, required))
	return e
}

func hasPrimary(emails []models.EmailAddress) bool {
	for _, email := range emails {
		if email.IsPrimary {
			return true
		}
	}
	return false
}
