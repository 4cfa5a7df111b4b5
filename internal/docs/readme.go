// Package docs renders the command reference from the command registry.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"text/template"

	"ddmbot/internal/command"
	"ddmbot/pkg/cmd"
)

// DefaultTemplate is used when no README template is available.
const DefaultTemplate = `# {{.AppName}}

{{.Description}}

## Commands

Commands marked with 🔒 require the operator role.

{{.CommandSections}}`

// CommandSections renders every category as a markdown list.
func CommandSections(registry *cmd.Registry) string {
	var buf bytes.Buffer
	for i, sec := range command.Sections(registry.GetAll()) {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "### %s\n\n", sec.Category)
		for _, e := range sec.Entries {
			lock := ""
			if e.Operator {
				lock = " 🔒"
			}
			fmt.Fprintf(&buf, "- **`%s`**%s — %s\n", e.Usage, lock, e.Description)
		}
	}
	return buf.String()
}

// Data is what README templates can reference.
type Data struct {
	AppName         string
	Description     string
	CommandSections string
}

// Render executes tpl with the command reference of registry into w.
func Render(w io.Writer, tpl string, registry *cmd.Registry, appName, description string) error {
	t, err := template.New("readme").Parse(tpl)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return t.Execute(w, Data{
		AppName:         appName,
		Description:     description,
		CommandSections: CommandSections(registry),
	})
}
