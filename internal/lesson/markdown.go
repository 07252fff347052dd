package lesson

import (
	"html"
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
	"github.com/microcosm-cc/bluemonday"
)

var (
	boldRe = regexp2.MustCompile(`\*\*(.+?)\*\*`, regexp2.None)
	codeRe = regexp2.MustCompile("`([^`]+)`", regexp2.None)

	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func descriptionPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.NewPolicy()
		policy.AllowElements("strong", "code", "br", "p")
	})
	return policy
}

// DescriptionHTML renders the lesson description. Only **bold**, `code`
// and line breaks are understood; everything else is escaped.
func (l *Lesson) DescriptionHTML() string {
	return renderInline(l.Description)
}

// InstructionHTML renders the instruction like DescriptionHTML
func (l *Lesson) InstructionHTML() string {
	return renderInline(l.Instruction)
}

func renderInline(text string) string {
	out := html.EscapeString(text)
	if s, err := codeRe.Replace(out, "<code>$1</code>", -1, -1); err == nil {
		out = s
	}
	if s, err := boldRe.Replace(out, "<strong>$1</strong>", -1, -1); err == nil {
		out = s
	}
	out = strings.ReplaceAll(out, "\n", "<br>")
	return descriptionPolicy().Sanitize(out)
}
