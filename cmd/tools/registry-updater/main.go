// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jobboard-workers/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	renderCmd := flag.NewFlagSet("render", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, updateCmd, validateCmd, renderCmd} {
		fs.StringVar(&registryPath, "path", "configs/notification-templates.json", "Path to registry file")
	}

	// Add command flags
	keyAdd := addCmd.String("key", "", "Template key (e.g., interview_scheduled)")
	title := addCmd.String("title", "", "In-app notification title")
	subject := addCmd.String("subject", "", "Email subject")
	body := addCmd.String("body", "", "Email and in-app body")
	sms := addCmd.String("sms", "", "SMS text")
	description := addCmd.String("description", "", "Description")
	channels := addCmd.String("channels", "", "Comma separated channels (record,email,sms)")

	// Update command flags
	keyUpdate := updateCmd.String("key", "", "Template key to update")
	field := updateCmd.String("field", "", "Field to update (title, subject, body, sms, description, channels)")
	value := updateCmd.String("value", "", "New value for the field")

	// Render command flags
	keyRender := renderCmd.String("key", "", "Template key to preview")
	dataJSON := renderCmd.String("data", "{}", "JSON object with placeholder values")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *keyAdd == "" || *title == "" || *subject == "" || *body == "" {
			fmt.Println("Error: key, title, subject, and body are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		tmpl := registry.Template{
			Key:         *keyAdd,
			Description: *description,
			Title:       *title,
			Subject:     *subject,
			Body:        *body,
			SMS:         *sms,
			Channels:    splitChannels(*channels),
		}
		if err := addTemplate(tmpl); err != nil {
			fmt.Printf("Error adding template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added template: %s\n", *keyAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *keyUpdate == "" || *field == "" {
			fmt.Println("Error: key and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateTemplate(*keyUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated template %s, field %s\n", *keyUpdate, *field)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "render":
		renderCmd.Parse(os.Args[2:])
		if err := renderTemplate(*keyRender, *dataJSON); err != nil {
			fmt.Printf("Render failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

// loadFile reads the registry file on its own, without the built-in
// defaults, so that saving it does not copy them in.
func loadFile(path string) (*registry.TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return registry.Parse(data)
}

func addTemplate(tmpl registry.Template) error {
	reg, err := loadFile(registryPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.TemplateRegistry{Version: "1.0.0"}
	}

	if _, exists := reg.Lookup(tmpl.Key); exists {
		return fmt.Errorf("template with key %s already exists", tmpl.Key)
	}

	reg.Templates = append(reg.Templates, tmpl)
	return saveRegistry(reg, registryPath)
}

func updateTemplate(key, field, value string) error {
	reg, err := loadFile(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	idx := -1
	for i := range reg.Templates {
		if reg.Templates[i].Key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("template with key %s not found", key)
	}

	t := &reg.Templates[idx]
	switch field {
	case "title":
		t.Title = value
	case "subject":
		t.Subject = value
	case "body":
		t.Body = value
	case "sms":
		t.SMS = value
	case "description":
		t.Description = value
	case "channels":
		t.Channels = splitChannels(value)
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	return saveRegistry(reg, registryPath)
}

func validateRegistry() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return err
	}
	for _, key := range []string{
		registry.KeyApplicationStatusChanged,
		registry.KeyJobPoolStatusChanged,
		registry.KeyJobAlert,
	} {
		if _, ok := reg.Lookup(key); !ok {
			return fmt.Errorf("required template %s is missing", key)
		}
	}

	fmt.Printf("Registry validation passed. Found %d templates (version %s).\n", len(reg.Templates), reg.Version)
	return nil
}

func renderTemplate(key, rawData string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return err
	}
	tmpl, ok := reg.Lookup(key)
	if !ok {
		return fmt.Errorf("template %s not found", key)
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(rawData), &data); err != nil {
		return fmt.Errorf("invalid -data: %w", err)
	}

	out := tmpl.Render(data)
	fmt.Printf("Title:   %s\nSubject: %s\nSMS:     %s\n\n%s\n", out.Title, out.Subject, out.SMS, out.Body)
	return nil
}

func splitChannels(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// saveRegistry validates the result against the file schema before writing.
func saveRegistry(reg *registry.TemplateRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if _, err := registry.Parse(data); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a notification template to the registry file
  update   Update one field of a template
  validate Validate the registry file and check the required templates
  render   Preview a template with sample data
  help     Show this help message

Examples:
  registry-updater add -key interview_scheduled -title "Interview scheduled" -subject "Interview with {{companyName}}" -body "See you on {{date}}" -channels record,email
  registry-updater update -key job_alert -field channels -value record,email,sms
  registry-updater validate -path configs/notification-templates.json
  registry-updater render -key job_alert -data '{"matchCount":3,"keywords":"golang"}'

Use 'registry-updater <command> -h' for more information about a command.
` + "\n")
}
