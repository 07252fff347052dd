package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runOn(t *testing.T, doc *Document, source string) ExecutionResult {
	t.Helper()
	result := New(DefaultConfig()).Execute(context.Background(), Request{Source: source, Document: doc})
	require.False(t, result.HasError(), result.ErrorMessage)
	return result
}

func TestDocumentTextPersistsAcrossRuns(t *testing.T) {
	doc, err := NewDocument(`<h1 id="titulo-secreto">¿Dónde estoy?</h1>`)
	require.NoError(t, err)

	runOn(t, doc, `document.getElementById("titulo-secreto").textContent = "¡Te encontré!";`)
	assert.Equal(t, "¡Te encontré!", doc.Text("#titulo-secreto"))
	assert.Contains(t, doc.HTML(), "¡Te encontré!")

	result := runOn(t, doc, `console.log(document.getElementById("titulo-secreto").innerText)`)
	assert.Equal(t, []string{"¡Te encontré!"}, result.Logs)
}

func TestDocumentStyle(t *testing.T) {
	doc, err := NewDocument(`<div id="cuadro-magico" style="background-color: #ddd; width: 100px; height: 100px;"></div>`)
	require.NoError(t, err)

	result := runOn(t, doc, `
		const cuadro = document.getElementById("cuadro-magico");
		cuadro.style.backgroundColor = "red";
		cuadro.style.borderRadius = "50%";
		console.log(cuadro.style.width);
	`)
	assert.Equal(t, []string{"100px"}, result.Logs)

	style, ok := doc.Attr("#cuadro-magico", "style")
	require.True(t, ok)
	assert.Equal(t, "background-color: red; width: 100px; height: 100px; border-radius: 50%;", style)
}

func TestDocumentEventListenersAreRecorded(t *testing.T) {
	doc, err := NewDocument(`<button id="boton-prueba">Haz click</button>`)
	require.NoError(t, err)

	result := runOn(t, doc, `
		document.getElementById("boton-prueba").addEventListener("click", function () {
			console.log("clic");
		});
		console.log("listo");
	`)
	assert.Equal(t, []string{"listo"}, result.Logs)
	assert.Equal(t, []Listener{{Target: "#boton-prueba", Event: "click"}}, doc.Listeners())

	events, ok := doc.Attr("#boton-prueba", ListenersAttr)
	require.True(t, ok)
	assert.Equal(t, "click", events)
}

func TestDocumentListenersAttribute(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "repeated events listed once",
			source: `const b = document.getElementById("b"); b.addEventListener("click", () => {}); b.addEventListener("click", () => {});`,
			want:   "click",
		},
		{
			name:   "several events",
			source: `const b = document.getElementById("b"); b.addEventListener("click", () => {}); b.addEventListener("mouseover", () => {});`,
			want:   "click mouseover",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDocument(`<button id="b">x</button>`)
			require.NoError(t, err)

			result := runOn(t, doc, tt.source)
			require.False(t, result.HasError(), result.ErrorMessage)

			events, ok := doc.Attr("#b", ListenersAttr)
			require.True(t, ok)
			assert.Equal(t, tt.want, events)
			assert.Contains(t, doc.HTML(), `data-listeners="`+tt.want+`"`)
		})
	}
}

func TestDocumentCreateAndAppend(t *testing.T) {
	doc, err := NewDocument(`<ul id="lista"><li class="item">uno</li></ul>`)
	require.NoError(t, err)

	result := runOn(t, doc, `
		const li = document.createElement("li");
		li.textContent = "dos";
		li.classList.add("item", "nuevo");
		document.getElementById("lista").appendChild(li);

		const p = document.createElement("p");
		p.innerHTML = "<b>hola</b>";
		document.body.appendChild(p);

		console.log(document.querySelectorAll(".item").length);
		console.log(document.getElementsByClassName("nuevo").length);
		console.log(document.getElementsByTagName("li")[1].tagName);
		console.log(document.querySelector("#nada"));
	`)
	assert.Equal(t, []string{"2", "1", "LI", "null"}, result.Logs)
	assert.Equal(t, "hola", doc.Text("body p b"))
}

func TestDocumentAttributes(t *testing.T) {
	doc, err := NewDocument(`<input id="nombre" value="Ana">`)
	require.NoError(t, err)

	result := runOn(t, doc, `
		const campo = document.querySelector("#nombre");
		console.log(campo.value, campo.getAttribute("type"));
		campo.setAttribute("placeholder", "Tu nombre");
		campo.value = "Milita";
	`)
	assert.Equal(t, []string{"Ana null"}, result.Logs)

	v, _ := doc.Attr("#nombre", "value")
	assert.Equal(t, "Milita", v)
	p, _ := doc.Attr("#nombre", "placeholder")
	assert.Equal(t, "Tu nombre", p)
}

func TestDocumentUndefinedWithoutPage(t *testing.T) {
	result := New(DefaultConfig()).Execute(context.Background(), Request{Source: "document.getElementById('x')"})
	assert.True(t, result.HasError())
}

func TestStyleHelpers(t *testing.T) {
	assert.Equal(t, "background-color", cssProperty("backgroundColor"))
	assert.Equal(t, "float", cssProperty("cssFloat"))
	assert.Equal(t, "color", cssProperty("color"))

	decls := parseStyle(" color : red ;; width:10px ; bogus")
	assert.Equal(t, []declaration{{"color", "red"}, {"width", "10px"}}, decls)
	assert.Equal(t, "color: red; width: 10px;", formatStyle(decls))
}
