package tutor

import (
	"strconv"
	"sync"
	"time"

	"github.com/gorilincode/backend/internal/sandbox"
)

const defaultWorkspaceLimit = 1024

type workspaceEntry struct {
	doc  *sandbox.Document
	used time.Time
}

// Workspaces keeps the documents of DOM lessons between runs, keyed by
// workspace and lesson. The least recently used entry is evicted once the
// limit is reached.
type Workspaces struct {
	mu      sync.Mutex
	limit   int
	entries map[string]*workspaceEntry
}

// NewWorkspaces creates a store holding at most limit documents
func NewWorkspaces(limit int) *Workspaces {
	if limit <= 0 {
		limit = defaultWorkspaceLimit
	}
	return &Workspaces{limit: limit, entries: make(map[string]*workspaceEntry)}
}

func workspaceKey(workspace string, lessonID int) string {
	return workspace + "#" + strconv.Itoa(lessonID)
}

// Document returns the workspace document for a lesson, seeding it with
// page on first use. An empty workspace always gets a fresh document.
func (w *Workspaces) Document(workspace string, lessonID int, page string) (*sandbox.Document, error) {
	if workspace == "" {
		return sandbox.NewDocument(page)
	}

	key := workspaceKey(workspace, lessonID)
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.entries[key]; ok {
		e.used = time.Now()
		return e.doc, nil
	}

	doc, err := sandbox.NewDocument(page)
	if err != nil {
		return nil, err
	}
	if len(w.entries) >= w.limit {
		w.evictOldest()
	}
	w.entries[key] = &workspaceEntry{doc: doc, used: time.Now()}
	return doc, nil
}

// Reset drops the document so the next run starts from the page again
func (w *Workspaces) Reset(workspace string, lessonID int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, workspaceKey(workspace, lessonID))
}

// Len returns the number of live documents
func (w *Workspaces) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *Workspaces) evictOldest() {
	var (
		oldest string
		at     time.Time
	)
	for k, e := range w.entries {
		if oldest == "" || e.used.Before(at) {
			oldest, at = k, e.used
		}
	}
	delete(w.entries, oldest)
}
