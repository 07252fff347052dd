package lesson

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"
)

//go:embed data/catalog.yaml
var embeddedCatalog []byte

// ErrNotFound is returned for unknown lesson ids
var ErrNotFound = errors.New("lesson not found")

// Catalog is the ordered, read-only list of lessons
type Catalog struct {
	lessons  []*Lesson
	byID     map[int]*Lesson
	sections []string
}

type catalogFile struct {
	Lessons []*Lesson `yaml:"lessons"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embeddedCatalog)
		if err != nil {
			panic(fmt.Sprintf("embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load reads a catalog from path, or returns the embedded one when path
// is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(file.Lessons)
}

// New builds a catalog from lessons, compiling every check
func New(lessons []*Lesson) (*Catalog, error) {
	c := &Catalog{byID: make(map[int]*Lesson, len(lessons))}
	seen := make(map[string]bool)

	for _, l := range lessons {
		if l == nil {
			continue
		}
		if err := l.Compile(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[l.ID]; dup {
			return nil, fmt.Errorf("duplicate lesson id %d", l.ID)
		}
		if l.Section == "" {
			l.Section = string(l.Kind)
		}
		c.byID[l.ID] = l
		c.lessons = append(c.lessons, l)
	}

	sort.Slice(c.lessons, func(i, j int) bool { return c.lessons[i].ID < c.lessons[j].ID })
	for _, l := range c.lessons {
		if !seen[l.Section] {
			seen[l.Section] = true
			c.sections = append(c.sections, l.Section)
		}
	}
	return c, nil
}

// All returns the lessons ordered by id
func (c *Catalog) All() []*Lesson {
	return append([]*Lesson(nil), c.lessons...)
}

// Len returns the number of lessons
func (c *Catalog) Len() int {
	return len(c.lessons)
}

// Get looks a lesson up by id
func (c *Catalog) Get(id int) (*Lesson, error) {
	l, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return l, nil
}

// Sections returns section names in catalog order
func (c *Catalog) Sections() []string {
	return append([]string(nil), c.sections...)
}

// BySection returns the lessons of one section
func (c *Catalog) BySection(section string) []*Lesson {
	var out []*Lesson
	for _, l := range c.lessons {
		if l.Section == section {
			out = append(out, l)
		}
	}
	return out
}

// Next returns the lesson after id, if any
func (c *Catalog) Next(id int) (*Lesson, bool) {
	i := sort.Search(len(c.lessons), func(i int) bool { return c.lessons[i].ID > id })
	if i == len(c.lessons) {
		return nil, false
	}
	return c.lessons[i], true
}
