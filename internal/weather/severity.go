package weather

import "strings"

// Severity is the notification level of an alert.
type Severity string

const (
	SeveritySevere   Severity = "severe"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// SeverityRule maps a set of keywords to a severity.
type SeverityRule struct {
	Severity Severity
	Keywords []string
}

// SeverityTable is checked in order; the first rule with a matching keyword
// wins.
type SeverityTable []SeverityRule

// DefaultSeverityTable checks severe keywords before moderate before minor.
var DefaultSeverityTable = SeverityTable{
	{Severity: SeveritySevere, Keywords: []string{
		"tornado", "hurricane", "typhoon", "tsunami", "extreme", "severe thunderstorm",
		"blizzard", "flash flood", "cyclone", "emergency",
	}},
	{Severity: SeverityModerate, Keywords: []string{
		"storm", "flood", "warning", "heavy snow", "ice storm", "high wind", "heat", "winter storm",
	}},
	{Severity: SeverityMinor, Keywords: []string{
		"advisory", "watch", "fog", "frost", "wind", "rain", "statement",
	}},
}

// NewSeverityTable builds a table from per-level keyword lists, falling back
// to the default list for any level given as nil.
func NewSeverityTable(severe, moderate, minor []string) SeverityTable {
	pick := func(kw []string, i int) []string {
		if kw == nil {
			return DefaultSeverityTable[i].Keywords
		}
		return kw
	}
	return SeverityTable{
		{Severity: SeveritySevere, Keywords: pick(severe, 0)},
		{Severity: SeverityModerate, Keywords: pick(moderate, 1)},
		{Severity: SeverityMinor, Keywords: pick(minor, 2)},
	}
}

// Classify returns the severity of a. Matching is a case-insensitive
// substring test against the event and the description. No match is
// moderate.
func (t SeverityTable) Classify(a Alert) Severity {
	text := strings.ToLower(a.Event + "\n" + a.Description)
	for _, rule := range t {
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(text, kw) {
				return rule.Severity
			}
		}
	}
	return SeverityModerate
}

// Classify uses DefaultSeverityTable.
func Classify(a Alert) Severity {
	return DefaultSeverityTable.Classify(a)
}
