// Package template renders rule and action templates against contact data.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/harvestcrm/automata/pkg/models"
)

// Parse validates a template string without executing it.
func Parse(templateStr string) (*template.Template, error) {
	return newTemplate(templateStr)
}

// Render executes a template string against arbitrary data.
func Render(templateStr string, data any) (string, error) {
	tmpl, err := newTemplate(templateStr)
	if err != nil {
		return "", err
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

// RenderContact executes a template with the contact as the dot value, so
// rule authors write {{.FirstName}}, {{.Company}}, {{.FullName}} and
// {{index .CustomFields "custom_industry"}}.
func RenderContact(templateStr string, contact *models.Contact) (string, error) {
	return Render(templateStr, contact)
}

func newTemplate(templateStr string) (*template.Template, error) {
	tmpl, err := template.
		New("automation").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	return tmpl, nil
}
