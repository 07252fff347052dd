package lesson

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"github.com/dlclark/regexp2"
	"golang.org/x/net/html"
)

const patternTimeout = 250 * time.Millisecond

// Check is one condition of a lesson. Exactly one target is set; the
// checks of a lesson are ANDed.
type Check struct {
	Source *TextCheck   `yaml:"source,omitempty"`
	Logs   *TextCheck   `yaml:"logs,omitempty"`
	Markup *MarkupCheck `yaml:"markup,omitempty"`
	AnyOf  []Check      `yaml:"any_of,omitempty"`
}

// Predicate tests a piece of text
type Predicate struct {
	Any     []string `yaml:"any,omitempty"`
	All     []string `yaml:"all,omitempty"`
	None    []string `yaml:"none,omitempty"`
	Pattern string   `yaml:"pattern,omitempty"`
	Fold    bool     `yaml:"fold,omitempty"`

	re *regexp2.Regexp
}

// TextCheck targets the source or the captured logs. For logs, Min is the
// number of lines that must satisfy the predicate; for source it is the
// number of pattern matches.
type TextCheck struct {
	Predicate `yaml:",inline"`
	Min       int `yaml:"min,omitempty"`
}

// MarkupCheck targets the rendered document
type MarkupCheck struct {
	Selector  string `yaml:"selector,omitempty"`
	XPath     string `yaml:"xpath,omitempty"`
	Attr      string `yaml:"attr,omitempty"`
	Predicate `yaml:",inline"`
	Min       int `yaml:"min,omitempty"`

	expr *xpath.Expr
}

func (c *Check) compile() error {
	targets := 0
	for _, set := range []bool{c.Source != nil, c.Logs != nil, c.Markup != nil, len(c.AnyOf) > 0} {
		if set {
			targets++
		}
	}
	if targets != 1 {
		return fmt.Errorf("check must have exactly one target, has %d", targets)
	}

	switch {
	case c.Source != nil:
		return c.Source.compile()
	case c.Logs != nil:
		return c.Logs.compile()
	case c.Markup != nil:
		return c.Markup.compile()
	}
	for i := range c.AnyOf {
		if err := c.AnyOf[i].compile(); err != nil {
			return fmt.Errorf("any_of %d: %w", i+1, err)
		}
	}
	return nil
}

func (c *Check) eval(in *input) bool {
	switch {
	case c.Source != nil:
		return c.Source.evalSource(in.source)
	case c.Logs != nil:
		return c.Logs.evalLogs(in.logs)
	case c.Markup != nil:
		return c.Markup.eval(in)
	}
	for i := range c.AnyOf {
		if c.AnyOf[i].eval(in) {
			return true
		}
	}
	return false
}

func (p *Predicate) compile() error {
	if p.Pattern == "" {
		return nil
	}
	re, err := p.regexp()
	if err != nil {
		return fmt.Errorf("pattern %q: %w", p.Pattern, err)
	}
	p.re = re
	return nil
}

func (p *Predicate) regexp() (*regexp2.Regexp, error) {
	if p.re != nil {
		return p.re, nil
	}
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	if p.Fold {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(p.Pattern, opts)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = patternTimeout
	return re, nil
}

// matches counts pattern matches in text
func (p *Predicate) matches(text string) int {
	re, err := p.regexp()
	if err != nil {
		return 0
	}
	n := 0
	m, err := re.FindStringMatch(text)
	for err == nil && m != nil {
		n++
		m, err = re.FindNextMatch(m)
	}
	return n
}

// holds tests the substring parts of the predicate
func (p *Predicate) holds(text string) bool {
	if len(p.Any) > 0 && !containsAny(text, p.Any, p.Fold) {
		return false
	}
	if len(p.All) > 0 && !containsAll(text, p.All, p.Fold) {
		return false
	}
	if len(p.None) > 0 && containsAny(text, p.None, p.Fold) {
		return false
	}
	return true
}

func (p *Predicate) empty() bool {
	return len(p.Any) == 0 && len(p.All) == 0 && len(p.None) == 0 && p.Pattern == ""
}

func (t *TextCheck) compile() error {
	if t.Min < 0 {
		return errors.New("min must not be negative")
	}
	return t.Predicate.compile()
}

func (t *TextCheck) min() int {
	return max(t.Min, 1)
}

func (t *TextCheck) evalSource(source string) bool {
	if !t.holds(source) {
		return false
	}
	if t.Pattern != "" {
		return t.matches(source) >= t.min()
	}
	return true
}

func (t *TextCheck) evalLogs(logs []string) bool {
	n := 0
	for _, line := range logs {
		if !t.holds(line) {
			continue
		}
		if t.Pattern != "" && t.matches(line) == 0 {
			continue
		}
		n++
	}
	return n >= t.min()
}

func (m *MarkupCheck) compile() error {
	if m.Min < 0 {
		return errors.New("min must not be negative")
	}
	if m.Selector != "" && m.XPath != "" {
		return errors.New("selector and xpath are exclusive")
	}
	if m.Selector != "" {
		if _, err := cascadia.ParseGroup(m.Selector); err != nil {
			return fmt.Errorf("selector %q: %w", m.Selector, err)
		}
	}
	if m.XPath != "" {
		expr, err := xpath.Compile(m.XPath)
		if err != nil {
			return fmt.Errorf("xpath %q: %w", m.XPath, err)
		}
		m.expr = expr
	}
	if m.Attr != "" && m.Selector == "" && m.XPath == "" {
		return errors.New("attr needs a selector or xpath")
	}
	return m.Predicate.compile()
}

func (m *MarkupCheck) eval(in *input) bool {
	if m.Selector == "" && m.XPath == "" {
		if !m.holds(in.rendered) {
			return false
		}
		return m.Pattern == "" || m.matches(in.rendered) > 0
	}

	n := 0
	for _, node := range m.nodes(in) {
		if m.test(node) {
			n++
		}
	}
	return n >= max(m.Min, 1)
}

func (m *MarkupCheck) nodes(in *input) []*html.Node {
	root := in.root()
	if root == nil {
		return nil
	}
	if m.Selector != "" {
		return goquery.NewDocumentFromNode(root).Find(m.Selector).Nodes
	}
	expr := m.expr
	if expr == nil {
		var err error
		if expr, err = xpath.Compile(m.XPath); err != nil {
			return nil
		}
	}
	return htmlquery.QuerySelectorAll(root, expr)
}

func (m *MarkupCheck) test(node *html.Node) bool {
	var text string
	if m.Attr != "" {
		if !htmlquery.ExistsAttr(node, m.Attr) {
			return m.empty()
		}
		text = htmlquery.SelectAttr(node, m.Attr)
	} else {
		text = htmlquery.InnerText(node)
	}
	if !m.holds(text) {
		return false
	}
	return m.Pattern == "" || m.matches(text) > 0
}

// input is what a validator sees. The rendered markup is parsed at most
// once per validation.
type input struct {
	source   string
	logs     []string
	rendered string

	parsed bool
	doc    *html.Node
}

func newInput(source string, logs []string, rendered string) *input {
	return &input{source: source, logs: logs, rendered: rendered}
}

func (in *input) root() *html.Node {
	if !in.parsed {
		in.parsed = true
		if strings.TrimSpace(in.rendered) != "" {
			if doc, err := htmlquery.Parse(strings.NewReader(in.rendered)); err == nil {
				in.doc = doc
			}
		}
	}
	return in.doc
}

func containsAny(text string, subs []string, fold bool) bool {
	if fold {
		text = strings.ToLower(text)
	}
	for _, s := range subs {
		if fold {
			s = strings.ToLower(s)
		}
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func containsAll(text string, subs []string, fold bool) bool {
	if fold {
		text = strings.ToLower(text)
	}
	for _, s := range subs {
		if fold {
			s = strings.ToLower(s)
		}
		if !strings.Contains(text, s) {
			return false
		}
	}
	return true
}
