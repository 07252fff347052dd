package sandbox

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is the page a DOM lesson manipulates. It persists across runs
// of the same workspace: nothing is snapshotted or rolled back.
type Document struct {
	mu        sync.Mutex
	doc       *goquery.Document
	listeners []Listener
}

// Listener records an addEventListener call. Listeners are never
// dispatched.
type Listener struct {
	Target string `json:"target"`
	Event  string `json:"event"`
}

// ListenersAttr is the attribute that lists, space separated, the events an
// element listens for.
const ListenersAttr = "data-listeners"

// NewDocument parses page into a document
func NewDocument(page string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Document{doc: doc}, nil
}

// HTML renders the whole document
func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out, err := goquery.OuterHtml(d.doc.Selection)
	if err != nil {
		return ""
	}
	return out
}

// Text returns the text of the first node matching selector
func (d *Document) Text(selector string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).First().Text()
}

// Attr returns an attribute of the first node matching selector
func (d *Document) Attr(selector, name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).First().Attr(name)
}

// Listeners returns the recorded event listeners
func (d *Document) Listeners() []Listener {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Listener(nil), d.listeners...)
}

// byID finds the first element whose id equals id exactly
func (d *Document) byID(id string) *html.Node {
	return first(d.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	}))
}

func (d *Document) body() *html.Node {
	if n := first(d.doc.Find("body")); n != nil {
		return n
	}
	return d.doc.Get(0)
}

func first(s *goquery.Selection) *html.Node {
	if s.Length() == 0 {
		return nil
	}
	return s.Get(0)
}

func (d *Document) listen(n *html.Node, event string) {
	target := n.Data
	if id, ok := getAttr(n, "id"); ok && id != "" {
		target = "#" + id
	}
	d.listeners = append(d.listeners, Listener{Target: target, Event: event})

	// Mirrored onto the node so markup checks can see it
	events, _ := getAttr(n, ListenersAttr)
	for _, e := range strings.Fields(events) {
		if e == event {
			return
		}
	}
	setAttr(n, ListenersAttr, strings.TrimSpace(events+" "+event))
}

func newElement(tag string) *html.Node {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

func selection(n *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(n).Selection
}

func getAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, val string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

func removeAttr(n *html.Node, name string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != name {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}

// declaration is one property of an inline style attribute
type declaration struct {
	property string
	value    string
}

func parseStyle(style string) []declaration {
	var decls []declaration
	for _, part := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		if prop == "" {
			continue
		}
		decls = append(decls, declaration{property: prop, value: strings.TrimSpace(val)})
	}
	return decls
}

func formatStyle(decls []declaration) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.property + ": " + d.value + ";"
	}
	return strings.Join(parts, " ")
}

// cssProperty converts a camelCase style key to its CSS property name
func cssProperty(key string) string {
	if key == "cssFloat" {
		return "float"
	}
	var b strings.Builder
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func styleValue(n *html.Node, property string) string {
	style, _ := getAttr(n, "style")
	for _, d := range parseStyle(style) {
		if d.property == property {
			return d.value
		}
	}
	return ""
}

// setStyleValue updates one property, removing it for an empty value
func setStyleValue(n *html.Node, property, value string) {
	style, _ := getAttr(n, "style")
	decls := parseStyle(style)
	value = strings.TrimSpace(value)

	found := false
	out := decls[:0]
	for _, d := range decls {
		if d.property == property {
			found = true
			if value == "" {
				continue
			}
			d.value = value
		}
		out = append(out, d)
	}
	if !found && value != "" {
		out = append(out, declaration{property: property, value: value})
	}

	if len(out) == 0 {
		removeAttr(n, "style")
		return
	}
	setAttr(n, "style", formatStyle(out))
}
