package tutor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gorilincode/backend/internal/infrastructure/monitoring"
	"github.com/gorilincode/backend/internal/infrastructure/tracing"
	"github.com/gorilincode/backend/internal/lesson"
	"github.com/gorilincode/backend/internal/progress"
	"github.com/gorilincode/backend/internal/sandbox"
)

type fixture struct {
	svc      *Service
	tracker  *progress.Tracker
	metrics  *monitoring.Metrics
	executor *sandbox.Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := sandbox.DefaultConfig()
	cfg.PoolSize = 2
	cfg.Timeout = time.Second
	exec := sandbox.NewExecutor(cfg, nil, nil)
	t.Cleanup(func() { _ = exec.Close() })

	metrics := monitoring.NewMetrics()
	tracker := progress.NewTracker(progress.NewMemoryStore(), metrics, nil)
	svc := New(Options{
		Catalog: lesson.Default(),
		Runner:  exec,
		Tracker: tracker,
		Metrics: metrics,
	})
	return &fixture{svc: svc, tracker: tracker, metrics: metrics, executor: exec}
}

func TestRunLessons(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		lesson   int
		source   string
		status   Status
		feedback string
	}{
		{
			name:     "javascript passes",
			lesson:   1,
			source:   `let saludo = "¡Hola Gorilín!"; console.log(saludo);`,
			status:   StatusPassed,
			feedback: "¡Perfecto! Variable modificada.",
		},
		{
			name:   "javascript starter fails",
			lesson: 1,
			source: lesson.Default().All()[0].StarterSource,
			status: StatusFailed,
		},
		{
			name:     "runtime error skips validation",
			lesson:   1,
			source:   `let saludo = "hola"; noExiste();`,
			status:   StatusError,
			feedback: FeedbackScriptError,
		},
		{
			name:     "guarded infinite loop",
			lesson:   15,
			source:   "let contador = 1; while (contador <= 5) { console.log('Número: ' + contador); }",
			status:   StatusGuarded,
			feedback: "⚠️ ¡Cuidado! Te falta sumar al contador, o el bucle será infinito.",
		},
		{
			name:   "while loop passes",
			lesson: 15,
			source: "let contador = 1; while (contador <= 5) { console.log('Número: ' + contador); contador++; }",
			status: StatusPassed,
		},
		{
			name:   "typescript is stripped then executed",
			lesson: 96,
			source: "let nombre: string = \"Ana\";\nlet edad: number = 10;\nconsole.log(\"Me llamo \" + nombre + \" y tengo \" + edad + \" años\");",
			status: StatusPassed,
		},
		{
			name:   "react validated even though JSX throws",
			lesson: 121,
			source: "function Gatito() { return <h1>¡Miau!</h1>; }",
			status: StatusPassed,
		},
		{
			name:     "react failure after error reports the console",
			lesson:   121,
			source:   "function Perro() { return <p>guau</p>; }",
			status:   StatusFailed,
			feedback: FeedbackScriptError,
		},
		{
			name:   "html renders and validates",
			lesson: 17,
			source: "<h1>A</h1><h2>B</h2><h3>C</h3>",
			status: StatusPassed,
		},
		{
			name:   "css validated against source",
			lesson: 56,
			source: ".container { display: flex; }",
			status: StatusPassed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.svc.Run(context.Background(), RunRequest{LessonID: tt.lesson, Source: tt.source})
			require.NoError(t, err)
			assert.Equal(t, tt.status, out.Status)
			assert.NotEmpty(t, out.RunID)
			assert.NotEmpty(t, out.Feedback)
			if tt.feedback != "" {
				assert.Equal(t, tt.feedback, out.Feedback)
			}
		})
	}
}

func TestRunOutcomeShape(t *testing.T) {
	f := newFixture(t)

	t.Run("guarded runs nothing", func(t *testing.T) {
		out, err := f.svc.Run(context.Background(), RunRequest{LessonID: 15, Source: "while (true) {}"})
		require.NoError(t, err)
		assert.Nil(t, out.Execution)
		assert.Nil(t, out.Validation)
	})

	t.Run("error keeps logs before the throw", func(t *testing.T) {
		out, err := f.svc.Run(context.Background(), RunRequest{LessonID: 1, Source: `console.log("antes"); throw new Error("boom");`})
		require.NoError(t, err)
		require.NotNil(t, out.Execution)
		assert.Equal(t, []string{"antes", "❌ Error: boom"}, out.Execution.Logs)
		assert.Nil(t, out.Validation)
	})

	t.Run("css preview uses the starter markup", func(t *testing.T) {
		l, err := f.svc.Lesson(56)
		require.NoError(t, err)
		out, err := f.svc.Run(context.Background(), RunRequest{LessonID: 56, Source: ".container { display: flex; }"})
		require.NoError(t, err)
		require.NotNil(t, out.Render)
		assert.Contains(t, out.Render.HTML, "<style>.container { display: flex; }</style>")
		assert.Contains(t, out.Render.HTML, strings.TrimSpace(l.StarterMarkup))
	})

	t.Run("passing run links the next lesson", func(t *testing.T) {
		out, err := f.svc.Run(context.Background(), RunRequest{LessonID: 17, Source: "<h1>A</h1><h2>B</h2><h3>C</h3>"})
		require.NoError(t, err)
		assert.Equal(t, 18, out.NextLesson)
	})
}

func TestRunDOMWorkspacePersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Run(ctx, RunRequest{
		LessonID:  161,
		Workspace: "ws-1",
		Source:    `document.getElementById("titulo-secreto").textContent = "¡Te encontré!";`,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, first.Status)

	// The edited title survives into the next run of the same workspace
	second, err := f.svc.Run(ctx, RunRequest{
		LessonID:  161,
		Workspace: "ws-1",
		Source:    `console.log(document.getElementById("titulo-secreto").textContent);`,
	})
	require.NoError(t, err)
	require.NotNil(t, second.Execution)
	assert.Equal(t, []string{"¡Te encontré!"}, second.Execution.Logs)

	fresh, err := f.svc.Run(ctx, RunRequest{
		LessonID: 161,
		Source:   `console.log(document.getElementById("titulo-secreto").textContent);`,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"¿Dónde estoy?"}, fresh.Execution.Logs)
	assert.Equal(t, 1, f.svc.Workspaces().Len())
}

func TestRunDOMStyle(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.Run(context.Background(), RunRequest{
		LessonID: 162,
		Source:   `let cuadro = document.getElementById("cuadro-magico"); cuadro.style.backgroundColor = "pink";`,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, out.Status)
}

func TestRunDOMEvents(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   Status
	}{
		{
			name:   "listener commented out",
			source: "let boton = document.getElementById(\"boton-prueba\");\n\n// boton.addEventListener(\"click\", function() {});",
			want:   StatusFailed,
		},
		{
			name:   "click listener added",
			source: `document.getElementById("boton-prueba").addEventListener("click", function () { console.log("¡Click!"); });`,
			want:   StatusPassed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			out, err := f.svc.Run(context.Background(), RunRequest{LessonID: 163, Source: tt.source})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Status)
		})
	}
}

func TestRunTracesFailures(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := tracing.New("test", zap.New(core))
	defer tracer.Close()

	exec := sandbox.NewExecutor(sandbox.DefaultConfig(), nil, nil)
	t.Cleanup(func() { _ = exec.Close() })
	svc := New(Options{Catalog: lesson.Default(), Runner: exec, Tracer: tracer})

	_, err := svc.Run(context.Background(), RunRequest{
		LessonID: 15,
		Source:   "let contador = 1; while (contador <= 5) { console.log(contador); }",
	})
	require.NoError(t, err)
	_, err = svc.Run(context.Background(), RunRequest{LessonID: 1, Source: "noExiste();"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return logs.Len() == 2 }, time.Second, 5*time.Millisecond)
	var events []interface{}
	for _, entry := range logs.All() {
		events = append(events, entry.ContextMap()["events"].([]interface{})...)
	}
	assert.Contains(t, events, "guard refused")
	assert.Contains(t, events, "execution failed error=noExiste is not defined")
}

func TestRunRecordsProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.tracker.Register(ctx)
	require.NoError(t, err)

	req := RunRequest{LearnerID: rec.LearnerID, LessonID: 17, Source: "<h1>A</h1><h2>B</h2><h3>C</h3>"}
	out, err := f.svc.Run(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, out.Progress)
	assert.True(t, out.Progress.Added)
	assert.Equal(t, 1, out.Progress.Record.Hearts)

	out, err = f.svc.Run(ctx, req)
	require.NoError(t, err)
	assert.False(t, out.Progress.Added)

	failed, err := f.svc.Run(ctx, RunRequest{LearnerID: rec.LearnerID, LessonID: 18, Source: ""})
	require.NoError(t, err)
	assert.Nil(t, failed.Progress)

	done, err := f.tracker.IsComplete(ctx, rec.LearnerID, 17)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CompletionsTotal))
}

func TestRunRejectsBadRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Run(ctx, RunRequest{LessonID: 9999, Source: "x"})
	assert.ErrorIs(t, err, ErrLessonNotFound)

	_, err = f.svc.Run(ctx, RunRequest{LessonID: 1, Source: strings.Repeat("a", 64*1024+1)})
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = f.svc.Run(ctx, RunRequest{LessonID: 1, Source: "\xff"})
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = f.svc.Run(ctx, RunRequest{LessonID: 1, Source: "x", LearnerID: "../etc"})
	assert.ErrorIs(t, err, ErrInvalidLearner)
}

func TestRunMetrics(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Run(context.Background(), RunRequest{LessonID: 17, Source: "<h1>A</h1><h2>B</h2><h3>C</h3>"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("html", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ValidationsTotal.WithLabelValues("17", "passed")))
}

func TestRunStreamsLogsAndAlerts(t *testing.T) {
	f := newFixture(t)

	var (
		mu     sync.Mutex
		lines  []string
		alerts = make(chan string, 1)
	)
	out, err := f.svc.Run(context.Background(), RunRequest{
		LessonID: 2,
		Source:   `alert("¡Te quiero mucho!"); console.log("Mensaje enviado con amor ❤️");`,
		OnLog: func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
		OnAlert: func(msg string) { alerts <- msg },
	})
	require.NoError(t, err)
	assert.True(t, out.Execution.AlertTriggered)

	select {
	case msg := <-alerts:
		assert.Equal(t, "¡Te quiero mucho!", msg)
	case <-time.After(time.Second):
		t.Fatal("alert notification not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, out.Execution.Logs, lines)
}

func TestPlayground(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("javascript", func(t *testing.T) {
		out, err := f.svc.Playground(ctx, PlaygroundRequest{Source: "console.log(1 + 1)"})
		require.NoError(t, err)
		assert.Equal(t, []string{"2"}, out.Execution.Logs)
	})

	t.Run("typescript", func(t *testing.T) {
		out, err := f.svc.Playground(ctx, PlaygroundRequest{Source: "let x: number = 5; console.log(x);", TypeScript: true})
		require.NoError(t, err)
		assert.Equal(t, "let x = 5; console.log(x);", out.Source)
		assert.Equal(t, []string{"5"}, out.Execution.Logs)
	})

	t.Run("page", func(t *testing.T) {
		out, err := f.svc.Playground(ctx, PlaygroundRequest{
			Source: `document.getElementById("t").textContent = "nuevo";`,
			Page:   `<p id="t">viejo</p>`,
		})
		require.NoError(t, err)
		assert.Contains(t, out.Document, `<p id="t">nuevo</p>`)
	})

	t.Run("markup", func(t *testing.T) {
		out, err := f.svc.Playground(ctx, PlaygroundRequest{Markup: "<p>hola</p>", Style: "p { color: red; }"})
		require.NoError(t, err)
		assert.Nil(t, out.Execution)
		assert.Contains(t, out.Render.HTML, "<body><p>hola</p></body>")
	})
}
