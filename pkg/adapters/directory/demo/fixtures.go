package demo

import (
	"strings"

	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// The three sources overlap on purpose: Slack knows people under a second
// domain (aliases), sources disagree on some departments and titles
// (conflicts), and a few people lack a department or title (missing data).

func aliasDomain(domain string) string {
	if i := strings.LastIndex(domain, "."); i > 0 {
		return domain[:i] + ".io"
	}
	return domain + ".io"
}

func googleEntries(domain string) []models.DirectoryEntry {
	src := models.ProviderLabel(models.ProviderGoogleWorkspace)
	return []models.DirectoryEntry{
		{Source: src, Name: "Sarah Chen", Email: "sarah.chen@" + domain, IsPrimary: true, Department: "Engineering", Position: "Senior Engineer", Location: "San Francisco", EmailCount: 412, MeetingCount: 58, FileAccessCount: 230},
		{Source: src, Name: "Marcus Johnson", Email: "marcus.johnson@" + domain, IsPrimary: true, Department: "Sales", Position: "Account Executive", Location: "New York", EmailCount: 655, MeetingCount: 91, FileAccessCount: 75},
		{Source: src, Name: "Priya Patel", Email: "priya.patel@" + domain, IsPrimary: true, Department: "Product", Location: "London", EmailCount: 380, MeetingCount: 77, FileAccessCount: 140},
		{Source: src, Name: "David Kim", Email: "david.kim@" + domain, IsPrimary: true, Department: "Engineering", Position: "Staff Engineer", Location: "Austin", EmailCount: 220, MeetingCount: 34, FileAccessCount: 310},
		{Source: src, Name: "Elena Rodríguez", Email: "elena.rodriguez@" + domain, IsPrimary: true, Department: "Marketing", Position: "Content Lead", Location: "Madrid", EmailCount: 298, MeetingCount: 40, FileAccessCount: 188},
		{Source: src, Name: "James O'Connor", Email: "james.oconnor@" + domain, IsPrimary: true, Department: "Finance", Position: "Controller", Location: "Dublin", EmailCount: 510, MeetingCount: 62, FileAccessCount: 96},
	}
}

func microsoftEntries(domain string) []models.DirectoryEntry {
	src := models.ProviderLabel(models.ProviderMicrosoft365)
	return []models.DirectoryEntry{
		{Source: src, Name: "Tom Wilson", Email: "tom.wilson@" + domain, IsPrimary: true, Location: "Chicago", EmailCount: 140, MeetingCount: 22},
		{Source: src, Name: "James O'Connor", Email: "james.oconnor@" + domain, IsPrimary: true, Department: "Finance", Position: "Financial Controller", EmailCount: 37, MeetingCount: 18},
		{Source: src, Name: "Aiko Tanaka", Email: "aiko.tanaka@" + domain, IsPrimary: true, Department: "Customer Success", Position: "CS Manager", Location: "Tokyo", EmailCount: 266, MeetingCount: 70, FileAccessCount: 52},
		{Source: src, Name: "Noah Williams", Email: "noah.williams@" + domain, IsPrimary: true, Department: "Engineering", EmailCount: 95, MeetingCount: 12, FileAccessCount: 44},
	}
}

func slackEntries(domain string) []models.DirectoryEntry {
	src := models.ProviderLabel(models.ProviderSlack)
	alias := aliasDomain(domain)
	return []models.DirectoryEntry{
		{Source: src, Name: "Sarah Chen", Email: "sarah@" + alias, Department: "Engineering", ChatCount: 1840},
		{Source: src, Name: "Marcus Johnson", Email: "marcus.j@" + alias, Department: "Sales", ChatCount: 960},
		{Source: src, Name: "David Kim", Email: "david.kim@" + domain, Department: "Platform", ChatCount: 2210},
		{Source: src, Name: "Elena Rodriguez", Email: "elena.rodriguez@" + domain, Department: "Brand", ChatCount: 730},
		{Source: src, Name: "Aiko Tanaka", Email: "aiko.tanaka@" + domain, Department: "Customer Success", ChatCount: 1505},
	}
}
