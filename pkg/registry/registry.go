// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	KeyApplicationStatusChanged = "application_status_changed"
	KeyJobPoolStatusChanged     = "job_pool_status_changed"
	KeyJobAlert                 = "job_alert"
)

// Defaults returns the built-in templates. A registry file only needs to list
// the templates it overrides.
func Defaults() *TemplateRegistry {
	return &TemplateRegistry{
		Version: "1.0.0",
		Templates: []Template{
			{
				Key:     KeyApplicationStatusChanged,
				Title:   "Application status updated",
				Subject: "Your application for {{parentName}} at {{companyName}} is now {{currentLabel}}",
				Body: "Hello {{recipientName}},\n\n" +
					"The status of your application for {{parentName}} at {{companyName}} " +
					"changed from {{previousLabel}} to {{currentLabel}}.\n\n{{note}}",
				SMS: "{{companyName}}: your application for {{parentName}} moved from {{previousLabel}} to {{currentLabel}}.",
			},
			{
				Key:     KeyJobPoolStatusChanged,
				Title:   "Talent pool status updated",
				Subject: "Update from {{companyName}}: {{parentName}}",
				Body: "Hello {{recipientName}},\n\n" +
					"Your status in the {{parentName}} talent pool at {{companyName}} " +
					"changed from {{previousLabel}} to {{currentLabel}}.\n\n{{note}}",
				SMS: "{{companyName}}: your {{parentName}} pool status moved from {{previousLabel}} to {{currentLabel}}.",
			},
			{
				Key:      KeyJobAlert,
				Title:    "New jobs for your alert",
				Subject:  "{{matchCount}} new jobs matching \"{{keywords}}\"",
				Body:     "Hello {{recipientName}},\n\n{{matchCount}} new jobs match your {{frequency}} alert:\n\n{{matchList}}",
				Channels: []string{"record", "email"},
			},
		},
	}
}

// LoadRegistry reads a registry file, validates it and layers it over the
// defaults. An empty path yields the defaults alone.
func LoadRegistry(path string) (*TemplateRegistry, error) {
	reg := Defaults()
	if path == "" {
		return reg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fromFile, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	reg.Merge(fromFile)
	return reg, nil
}

// Parse validates raw against the registry schema and decodes it.
func Parse(data []byte) (*TemplateRegistry, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(fileSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid registry json: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		sort.Strings(msgs)
		return nil, fmt.Errorf("registry does not match schema: %s", strings.Join(msgs, "; "))
	}

	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	if err := reg.checkDuplicates(); err != nil {
		return nil, err
	}
	if err := reg.checkStatusPlaceholders(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Merge replaces templates with the same key and appends new ones.
func (r *TemplateRegistry) Merge(other *TemplateRegistry) {
	if other == nil {
		return
	}
	if other.Version != "" {
		r.Version = other.Version
	}
	if other.LastUpdated != "" {
		r.LastUpdated = other.LastUpdated
	}
	for _, t := range other.Templates {
		replaced := false
		for i := range r.Templates {
			if r.Templates[i].Key == t.Key {
				r.Templates[i] = t
				replaced = true
				break
			}
		}
		if !replaced {
			r.Templates = append(r.Templates, t)
		}
	}
}

func (r *TemplateRegistry) Lookup(key string) (Template, bool) {
	for _, t := range r.Templates {
		if t.Key == key {
			return t, true
		}
	}
	return Template{}, false
}

func (r *TemplateRegistry) checkDuplicates() error {
	seen := make(map[string]bool, len(r.Templates))
	for _, t := range r.Templates {
		if seen[t.Key] {
			return fmt.Errorf("duplicate template key: %s", t.Key)
		}
		seen[t.Key] = true
	}
	return nil
}

// statusPlaceholders must appear in the body and SMS of both status templates.
var statusPlaceholders = []string{"parentName", "companyName", "previousLabel", "currentLabel"}

func (r *TemplateRegistry) checkStatusPlaceholders() error {
	for _, t := range r.Templates {
		if t.Key != KeyApplicationStatusChanged && t.Key != KeyJobPoolStatusChanged {
			continue
		}
		texts := map[string]string{"body": t.Body}
		if t.SMS != "" {
			texts["sms"] = t.SMS
		}
		for field, text := range texts {
			for _, name := range statusPlaceholders {
				if !strings.Contains(text, "{{"+name+"}}") {
					return fmt.Errorf("template %s: %s is missing {{%s}}", t.Key, field, name)
				}
			}
		}
	}
	return nil
}

// Render resolves every text of t against data.
func (t Template) Render(data map[string]interface{}) Rendered {
	return Rendered{
		Title:   Render(t.Title, data),
		Subject: Render(t.Subject, data),
		Body:    strings.TrimSpace(Render(t.Body, data)),
		SMS:     Render(t.SMS, data),
	}
}

// Render substitutes {{key}} markers from data. Markers without a value are
// removed.
func Render(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		switch tv := v.(type) {
		case string:
			value = tv
		case *string:
			if tv != nil {
				value = *tv
			}
		case int:
			value = fmt.Sprintf("%d", tv)
		case nil:
		default:
			value = fmt.Sprintf("%v", tv)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
