package lesson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLesson(t *testing.T, id int) *Lesson {
	t.Helper()
	l, err := Default().Get(id)
	require.NoError(t, err)
	return l
}

func TestValidateCatalogLessons(t *testing.T) {
	tests := []struct {
		name     string
		id       int
		source   string
		logs     []string
		rendered string
		want     bool
	}{
		{
			name:   "variables: untouched greeting fails",
			id:     1,
			source: mustLesson(t, 1).StarterSource,
			logs:   []string{"¡Hola mundo soy Milita!", "Mi número favorito es: 8"},
		},
		{
			name:   "variables: new greeting passes",
			id:     1,
			source: `let saludo = "¡Hola Gorilín!"; console.log(saludo);`,
			logs:   []string{"¡Hola Gorilín!"},
			want:   true,
		},
		{
			name: "alert marker in logs",
			id:   2,
			logs: []string{`🔔 ALERTA: "¡Te quiero mucho!"`, "Mensaje enviado con amor ❤️"},
			want: true,
		},
		{
			name: "loops: three hugs are not enough",
			id:   4,
			logs: []string{"🤗 Abrazo número 1", "🤗 Abrazo número 2", "🤗 Abrazo número 3", "¡Ataque!"},
		},
		{
			name: "loops: five hugs case-insensitive",
			id:   4,
			logs: []string{"Abrazo 1", "abrazo 2", "ABRAZO 3", "Abrazo 4", "Abrazo 5"},
			want: true,
		},
		{
			name:   "while: source and five lines",
			id:     15,
			source: "while (contador <= 5) { console.log('Número: ' + contador); contador++; }",
			logs:   []string{"Número: 1", "Número: 2", "Numero: 3", "Número: 4", "Número: 5"},
			want:   true,
		},
		{
			name:   "html headings",
			id:     17,
			source: "<h1>A</h1><h2>B</h2><h3>C</h3>",
			want:   true,
		},
		{
			name:   "html headings missing h3",
			id:     17,
			source: "<h1>A</h1><h2>B</h2>",
		},
		{
			name:   "flexbox without space",
			id:     56,
			source: ".container { display:flex; }",
			want:   true,
		},
		{
			name:   "optional parameters need two calls",
			id:     101,
			source: `function saludar(nombre: string, apellido?: string): string { if (apellido) { return "a" } return "b" }`,
		},
		{
			name:   "optional parameters with two calls",
			id:     101,
			source: `function saludar(nombre: string, apellido?: string): string { if (apellido) { return "a" } return "b" } saludar("x"); saludar("x", "y");`,
			want:   true,
		},
		{
			name:     "dom text found",
			id:       161,
			source:   `document.getElementById("titulo-secreto").textContent = "¡Te encontré!";`,
			rendered: `<html><head></head><body><h1 id="titulo-secreto">¡Te encontré!</h1></body></html>`,
			want:     true,
		},
		{
			name:     "dom text unchanged",
			id:       161,
			source:   `document.getElementById("titulo-secreto")`,
			rendered: `<html><head></head><body><h1 id="titulo-secreto">¿Dónde estoy?</h1></body></html>`,
		},
		{
			name:     "dom style changed",
			id:       162,
			source:   `document.getElementById("cuadro-magico").style.backgroundColor = "red";`,
			rendered: `<div id="cuadro-magico" style="background-color: red; width: 100px; height: 100px;"></div>`,
			want:     true,
		},
		{
			name:     "dom style untouched",
			id:       162,
			source:   `document.getElementById("cuadro-magico").style.width = "1px";`,
			rendered: `<div id="cuadro-magico" style="background-color: #ddd; width: 1px; height: 100px;"></div>`,
		},
		{
			name:     "dom events with button present",
			id:       163,
			source:   `boton.addEventListener("click", () => {})`,
			rendered: `<button id="boton-prueba" data-listeners="click">Haz click</button>`,
			want:     true,
		},
		{
			name:     "dom events commented out",
			id:       163,
			source:   mustLesson(t, 163).StarterSource,
			rendered: `<button id="boton-prueba">Haz click</button>`,
		},
		{
			name:     "dom events other event",
			id:       163,
			source:   `boton.addEventListener("mouseover", () => {}) // click`,
			rendered: `<button id="boton-prueba" data-listeners="mouseover">Haz click</button>`,
		},
		{
			name:   "dom events without rendered page",
			id:     163,
			source: `boton.addEventListener("click", () => {})`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := mustLesson(t, tt.id)
			got := l.Validate(tt.source, tt.logs, tt.rendered)
			assert.Equal(t, tt.want, got.Success)
			if tt.want {
				assert.Equal(t, l.Message, got.Message)
			}
		})
	}
}

func TestValidateToleratesEmptyInputs(t *testing.T) {
	for _, l := range Default().All() {
		assert.NotPanics(t, func() {
			l.Validate("", nil, "")
		}, "lesson %d", l.ID)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	l := mustLesson(t, 4)
	logs := []string{"abrazo", "abrazo", "abrazo", "abrazo", "abrazo"}
	first := l.Validate("", logs, "")
	second := l.Validate("", logs, "")
	assert.Equal(t, first, second)
	assert.True(t, first.Success)
}

func TestChecks(t *testing.T) {
	tests := []struct {
		name  string
		check Check
		in    *input
		want  bool
	}{
		{
			name:  "source none",
			check: Check{Source: &TextCheck{Predicate: Predicate{None: []string{"var "}}}},
			in:    newInput("let x = 1", nil, ""),
			want:  true,
		},
		{
			name:  "source fold",
			check: Check{Source: &TextCheck{Predicate: Predicate{All: []string{"USESTATE"}, Fold: true}}},
			in:    newInput("useState(0)", nil, ""),
			want:  true,
		},
		{
			name:  "source pattern count",
			check: Check{Source: &TextCheck{Predicate: Predicate{Pattern: `console\.log\(`}, Min: 3}},
			in:    newInput("console.log(1); console.log(2)", nil, ""),
		},
		{
			name:  "source pattern folded",
			check: Check{Source: &TextCheck{Predicate: Predicate{Pattern: `usestate\(`, Fold: true}}},
			in:    newInput("const [n, setN] = useState(0);", nil, ""),
			want:  true,
		},
		{
			name:  "log count without predicate",
			check: Check{Logs: &TextCheck{Min: 2}},
			in:    newInput("", []string{"a", "b"}, ""),
			want:  true,
		},
		{
			name:  "log pattern per line",
			check: Check{Logs: &TextCheck{Predicate: Predicate{Pattern: `^\d+$`}, Min: 2}},
			in:    newInput("", []string{"1", "dos", "3"}, ""),
			want:  true,
		},
		{
			name:  "empty logs",
			check: Check{Logs: &TextCheck{Predicate: Predicate{Any: []string{"x"}}}},
			in:    newInput("", nil, ""),
		},
		{
			name:  "any_of picks one branch",
			check: Check{AnyOf: []Check{{Source: &TextCheck{Predicate: Predicate{Any: []string{"map("}}}}, {Logs: &TextCheck{Predicate: Predicate{Any: []string{"2,4"}}}}}},
			in:    newInput("", []string{"2,4,6"}, ""),
			want:  true,
		},
		{
			name:  "markup without selector",
			check: Check{Markup: &MarkupCheck{Predicate: Predicate{All: []string{"<li>"}}}},
			in:    newInput("", nil, "<ul><li>a</li></ul>"),
			want:  true,
		},
		{
			name:  "markup selector min",
			check: Check{Markup: &MarkupCheck{Selector: "li", Min: 3}},
			in:    newInput("", nil, "<ul><li>a</li><li>b</li></ul>"),
		},
		{
			name:  "markup attr",
			check: Check{Markup: &MarkupCheck{Selector: "img", Attr: "alt", Predicate: Predicate{Any: []string{"gorila"}}}},
			in:    newInput("", nil, `<img src="x.png" alt="Un gorila">`),
			want:  true,
		},
		{
			name:  "markup xpath text",
			check: Check{Markup: &MarkupCheck{XPath: "//p[@class='nota']", Predicate: Predicate{Any: []string{"hola"}}}},
			in:    newInput("", nil, `<p class="nota">hola</p>`),
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.check.compile())
			assert.Equal(t, tt.want, tt.check.eval(tt.in))
		})
	}
}

func TestGuard(t *testing.T) {
	g := mustLesson(t, 15).Guard

	assert.True(t, g.Refuses("while (contador <= 5) { console.log(contador) }"))
	assert.False(t, g.Refuses("while (contador <= 5) { contador++ }"))
	assert.False(t, g.Refuses("while (contador <= 5) { contador += 1 }"))
	assert.False(t, g.Refuses("console.log('sin bucle')"))
	assert.NotEmpty(t, g.Message)

	var none *Guard
	assert.False(t, none.Refuses("while (true) {}"))
}

func TestKind(t *testing.T) {
	assert.True(t, KindTypeScript.Typed())
	assert.True(t, KindReact.Typed())
	assert.False(t, KindJavaScript.Typed())
	assert.True(t, KindCSS.IsMarkup())
	assert.True(t, KindReact.IsScript())
	assert.False(t, Kind("cobol").Valid())
}
