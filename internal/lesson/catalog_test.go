package lesson

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.Equal(t, 163, c.Len())

	for i, l := range c.All() {
		assert.Equal(t, i+1, l.ID)
		assert.NotEmpty(t, l.Title, "lesson %d", l.ID)
		assert.NotEmpty(t, l.Checks, "lesson %d", l.ID)
		assert.True(t, l.Kind.Valid(), "lesson %d", l.ID)
	}

	assert.Equal(t, []string{"javascript", "html", "css", "typescript", "react"}, c.Sections())
	assert.Len(t, c.BySection("html"), 40)
	assert.Len(t, c.BySection("css"), 40)
	assert.Len(t, c.BySection("typescript"), 25)
	assert.Len(t, c.BySection("react"), 40)
	assert.Len(t, c.BySection("javascript"), 18)
}

func TestCatalogLookup(t *testing.T) {
	c := Default()

	l, err := c.Get(15)
	require.NoError(t, err)
	assert.Equal(t, KindJavaScript, l.Kind)
	require.NotNil(t, l.Guard)

	_, err = c.Get(999)
	assert.ErrorIs(t, err, ErrNotFound)

	next, ok := c.Next(15)
	require.True(t, ok)
	assert.Equal(t, 16, next.ID)

	_, ok = c.Next(163)
	assert.False(t, ok)
}

func TestDomLessonsHavePages(t *testing.T) {
	c := Default()
	for _, id := range []int{161, 162, 163} {
		l, err := c.Get(id)
		require.NoError(t, err)
		assert.True(t, l.HasPage(), "lesson %d", id)
	}
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "duplicate id",
			yaml: `
lessons:
- {id: 1, kind: javascript, checks: [{source: {any: [a]}}]}
- {id: 1, kind: javascript, checks: [{source: {any: [b]}}]}
`,
		},
		{
			name: "unknown kind",
			yaml: `
lessons:
- {id: 1, kind: cobol, checks: [{source: {any: [a]}}]}
`,
		},
		{
			name: "check with two targets",
			yaml: `
lessons:
- id: 1
  kind: javascript
  checks:
  - source: {any: [a]}
    logs: {any: [b]}
`,
		},
		{
			name: "bad pattern",
			yaml: `
lessons:
- {id: 1, kind: javascript, checks: [{source: {pattern: "(sin cerrar"}}]}
`,
		},
		{
			name: "bad xpath",
			yaml: `
lessons:
- {id: 1, kind: html, checks: [{markup: {xpath: "//div["}}]}
`,
		},
		{
			name: "no checks",
			yaml: `
lessons:
- {id: 2, kind: css}
`,
		},
		{
			name: "not yaml",
			yaml: "lessons: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
lessons:
- id: 2
  title: Dos
  kind: css
  checks:
  - source: {any: [color]}
- id: 1
  title: Uno
  kind: html
  section: basico
  checks:
  - source: {all: ["<h1>"]}
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "Uno", c.All()[0].Title)
	assert.Equal(t, []string{"basico", "css"}, c.Sections())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	def, err := Load("")
	require.NoError(t, err)
	assert.Same(t, Default(), def)
}

func TestDescriptionHTML(t *testing.T) {
	l := &Lesson{
		Description: "Usamos `alert()` para **avisar**.\n<script>x</script>",
		Instruction: "Cambia `tengoHambre`",
	}
	out := l.DescriptionHTML()
	assert.Contains(t, out, "Usamos <code>alert()</code> para <strong>avisar</strong>.")
	assert.Contains(t, out, "&lt;script&gt;x&lt;/script&gt;")
	assert.Contains(t, out, "<br")
	assert.NotContains(t, out, "<script>")
	assert.Equal(t, "Cambia <code>tengoHambre</code>", l.InstructionHTML())
}
