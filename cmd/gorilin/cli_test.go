package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(stdin string, args ...string) (string, error) {
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIHelp(t *testing.T) {
	output, err := executeCommand("", "--help")
	require.NoError(t, err)
	for _, phrase := range []string{"gorilin", "lessons", "run", "check", "verify", "strip", "render"} {
		assert.Contains(t, output, phrase)
	}
}

func TestLessons(t *testing.T) {
	output, err := executeCommand("", "lessons", "--section", "css")
	require.NoError(t, err)
	assert.Contains(t, output, "ID")
	assert.NotContains(t, output, "javascript")

	_, err = executeCommand("", "lessons", "--section", "cobol")
	assert.ErrorContains(t, err, "unknown section")
}

func TestShow(t *testing.T) {
	output, err := executeCommand("", "show", "2")
	require.NoError(t, err)
	assert.Contains(t, output, "Mensajitos")
	assert.Contains(t, output, `alert("¡Te quiero mucho!");`)

	output, err = executeCommand("", "show", "2", "--json")
	require.NoError(t, err)
	assert.Contains(t, output, `"starter_source"`)

	_, err = executeCommand("", "show", "dos")
	assert.ErrorContains(t, err, "invalid lesson id")
}

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		want    string
		wantErr string
	}{
		{name: "inline", args: []string{"run", "-c", "console.log(1 + 1)"}, want: "2\n"},
		{name: "stdin", stdin: "console.log('hola')", args: []string{"run"}, want: "hola\n"},
		{name: "typescript", args: []string{"run", "--ts", "-c", "let n: number = 3; console.log(n)"}, want: "3\n"},
		{name: "throw", args: []string{"run", "-c", "throw new Error('boom')"}, want: "❌ Error: boom\n", wantErr: "boom"},
		{name: "empty stdin", args: []string{"run"}, wantErr: "no source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := executeCommand(tt.stdin, tt.args...)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.want != "" {
				assert.True(t, strings.HasPrefix(output, tt.want), "output %q", output)
			}
		})
	}
}

func TestRunTimeout(t *testing.T) {
	_, err := executeCommand("", "run", "--timeout", "50ms", "-c", "while (true) {}")
	assert.ErrorContains(t, err, "timeout")
}

func TestCheck(t *testing.T) {
	output, err := executeCommand("", "check", "1", "-c", `let saludo = "¡Hola Gorilín!"; console.log(saludo);`)
	require.NoError(t, err)
	assert.Contains(t, output, "¡Hola Gorilín!")

	_, err = executeCommand("", "check", "1", "-c", `let saludo = "¡Hola mundo soy Milita!"; console.log(saludo);`)
	assert.ErrorContains(t, err, "lesson 1: failed")

	_, err = executeCommand("", "check", "4", "-c", `for (let i = 1; i <= 3; i++) { console.log("abrazo " + i); }`)
	assert.ErrorContains(t, err, "lesson 4: failed")

	_, err = executeCommand("", "check", "9999", "-c", "1")
	assert.ErrorContains(t, err, "lesson not found")
}

func TestStrip(t *testing.T) {
	output, err := executeCommand("", "strip", "-c", "let a: number = 1;")
	require.NoError(t, err)
	assert.Equal(t, "let a = 1;\n", output)
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(page, []byte("<h1>Hola</h1>"), 0o644))

	output, err := executeCommand("", "render", "--markup", "@"+page, "--style", "h1 { color: red; }")
	require.NoError(t, err)
	assert.Contains(t, output, "<h1>Hola</h1>")
	assert.Contains(t, output, "h1 { color: red; }")
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func TestVerify(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"1.js":          `let saludo = "¡Hola Gorilín!"; console.log(saludo);`,
		"html/17.html":  "<h1>A</h1><h2>B</h2><h3>C</h3>",
		"ts/96.ts":      "let nombre: string = \"Ana\";\nlet edad: number = 10;\nconsole.log(\"Me llamo \" + nombre + \" y tengo \" + edad + \" años\");",
		"README.js":     "not a solution",
		"notes.txt":     "ignored",
	})

	output, err := executeCommand("", "verify", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "3/3 passed")
	assert.Contains(t, output, "✔ html/17.html")

	failing := writeFiles(t, map[string]string{
		"1.js": `let saludo = "¡Hola mundo soy Milita!"; console.log(saludo);`,
		"2.js": `alert("hola")`,
	})
	output, err = executeCommand("", "verify", failing)
	assert.ErrorContains(t, err, "1 solutions failed")
	assert.Contains(t, output, "✘ 1.js")
	assert.Contains(t, output, "1/2 passed")

	_, err = executeCommand("", "verify", t.TempDir())
	assert.ErrorContains(t, err, "no solutions")
}
