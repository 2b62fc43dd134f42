package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestcrm/automata/pkg/models"
	"github.com/harvestcrm/automata/pkg/template"
)

func TestRenderContact(t *testing.T) {
	contact := &models.Contact{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Company:   "Analytical Engines Ltd",
		CustomFields: map[string]any{
			"custom_industry": "manufacturing",
		},
	}

	out, err := template.RenderContact("Follow up with {{.FullName}} at {{.Company}}", contact)
	require.NoError(t, err)
	assert.Equal(t, "Follow up with Ada Lovelace at Analytical Engines Ltd", out)

	out, err = template.RenderContact(`Industry: {{index .CustomFields "custom_industry"}}`, contact)
	require.NoError(t, err)
	assert.Equal(t, "Industry: manufacturing", out)
}

func TestRender_ParseError(t *testing.T) {
	_, err := template.Render("{{.Broken", nil)
	assert.Error(t, err)

	_, err = template.Parse("{{.Broken")
	assert.Error(t, err)
}
