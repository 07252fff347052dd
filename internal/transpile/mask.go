package transpile

import (
	"strconv"
	"strings"
)

// Placeholder delimiters live in the Unicode private use area so they never
// collide with learner text.
const (
	maskOpen  = '\uE000'
	maskClose = '\uE001'
)

// masked holds source text with literals and comments swapped for
// placeholders.
type masked struct {
	text    string
	literal []string
}

// mask replaces string literals, template literals and comments with
// numbered placeholders so the annotation passes never touch their contents.
func mask(src string) masked {
	var (
		out  strings.Builder
		lits []string
	)
	runes := []rune(src)
	n := len(runes)

	emit := func(lit string) {
		out.WriteRune(maskOpen)
		out.WriteString(strconv.Itoa(len(lits)))
		out.WriteRune(maskClose)
		lits = append(lits, lit)
	}

	for i := 0; i < n; {
		c := runes[i]
		switch {
		case c == '/' && i+1 < n && runes[i+1] == '/':
			j := i
			for j < n && runes[j] != '\n' {
				j++
			}
			emit(string(runes[i:j]))
			i = j
		case c == '/' && i+1 < n && runes[i+1] == '*':
			j := i + 2
			for j < n && !(runes[j] == '*' && j+1 < n && runes[j+1] == '/') {
				j++
			}
			j = min(j+2, n)
			emit(string(runes[i:j]))
			i = j
		case c == '"' || c == '\'' || c == '`':
			j := i + 1
			for j < n && runes[j] != c {
				if runes[j] == '\\' {
					j++
				} else if runes[j] == '\n' && c != '`' {
					break
				}
				j++
			}
			if j < n && runes[j] == c {
				j++
			}
			j = min(j, n)
			emit(string(runes[i:j]))
			i = j
		default:
			out.WriteRune(c)
			i++
		}
	}

	return masked{text: out.String(), literal: lits}
}

// restore swaps placeholders in s back for the original literals.
func (m masked) restore(s string) string {
	if len(m.literal) == 0 || !strings.ContainsRune(s, maskOpen) {
		return s
	}
	var out strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] != maskOpen {
			out.WriteRune(runes[i])
			continue
		}
		j := i + 1
		for j < len(runes) && runes[j] != maskClose {
			j++
		}
		idx, err := strconv.Atoi(string(runes[i+1 : j]))
		if err != nil || idx < 0 || idx >= len(m.literal) || j >= len(runes) {
			out.WriteRune(runes[i])
			continue
		}
		out.WriteString(m.literal[idx])
		i = j
	}
	return out.String()
}
