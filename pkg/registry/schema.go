// pkg/registry/schema.go
package registry

// TemplateRegistry is the on-disk catalogue of notification templates.
type TemplateRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Templates   []Template `json:"templates"`
}

// Template holds the texts of one notification type. Every text may use
// {{placeholder}} markers that are filled from the payload at send time.
type Template struct {
	Key         string   `json:"key"`
	Description string   `json:"description,omitempty"`
	Title       string   `json:"title"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	SMS         string   `json:"sms,omitempty"`
	Channels    []string `json:"channels,omitempty"`
}

// Rendered is a template with every placeholder resolved.
type Rendered struct {
	Title   string
	Subject string
	Body    string
	SMS     string
}

// fileSchema is checked before a registry file is decoded.
const fileSchema = `{
  "type": "object",
  "required": ["version", "templates"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "lastUpdated": {"type": "string"},
    "templates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key", "title", "subject", "body"],
        "properties": {
          "key": {"type": "string", "pattern": "^[a-z][a-z0-9_]*$"},
          "description": {"type": "string"},
          "title": {"type": "string", "minLength": 1},
          "subject": {"type": "string", "minLength": 1},
          "body": {"type": "string", "minLength": 1},
          "sms": {"type": "string"},
          "channels": {
            "type": "array",
            "items": {"type": "string", "enum": ["record", "email", "sms"]}
          }
        },
        "additionalProperties": false
      }
    }
  }
}`
