package status

import (
	"strings"
)

type display struct {
	label string
	color string
}

var displays = map[Status]display{
	Pending:     {"Pending", "secondary"},
	Reviewed:    {"Reviewed", "info"},
	Contacted:   {"Contacted", "info"},
	Interested:  {"Interested", "primary"},
	Shortlisted: {"Shortlisted", "primary"},
	Interview:   {"Interview", "warning"},
	Offered:     {"Offered", "success"},
	Hired:       {"Hired", "success"},
	Rejected:    {"Rejected", "danger"},
	Withdrawn:   {"Withdrawn", "dark"},
}

// Label returns the human readable name of s. Unknown values are title-cased.
func Label(s Status) string {
	if d, ok := displays[s]; ok {
		return d.label
	}
	raw := strings.ReplaceAll(string(s), "_", " ")
	if raw == "" {
		return ""
	}
	return strings.ToUpper(raw[:1]) + raw[1:]
}

// Color returns the UI color token of s.
func Color(s Status) string {
	if d, ok := displays[s]; ok {
		return d.color
	}
	return "secondary"
}

// Descriptor is one row of the label/color table.
type Descriptor struct {
	Value    Status `json:"value"`
	Label    string `json:"label"`
	Color    string `json:"color"`
	Terminal bool   `json:"terminal"`
}

// Describe returns the table for kind in enumeration order.
func Describe(kind Kind) []Descriptor {
	statuses := Statuses(kind)
	out := make([]Descriptor, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Descriptor{
			Value:    s,
			Label:    Label(s),
			Color:    Color(s),
			Terminal: IsTerminal(s),
		})
	}
	return out
}
