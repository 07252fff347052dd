package transpile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
)

// matchTimeout bounds every regular expression pass so pathological input
// degrades to "left unchanged" instead of hanging.
const matchTimeout = 250 * time.Millisecond

// Options tunes the stripper.
type Options struct {
	// DropEnums removes enum blocks instead of lowering them to frozen objects.
	DropEnums bool
}

// Stripper removes TypeScript-only syntax from source text so a plain
// JavaScript engine can run it. It is a best-effort textual pass: it never
// fails, and anything it does not recognise is passed through unchanged.
type Stripper struct {
	opts   Options
	logger *zap.Logger
	passes []pass
}

type pass struct {
	name string
	run  func(text string) (string, error)
}

// NewStripper creates a stripper. A nil logger disables logging.
func NewStripper(opts Options, logger *zap.Logger) *Stripper {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stripper{opts: opts, logger: logger}
	s.passes = []pass{
		{"interfaces", stripInterfaces},
		{"type-aliases", stripTypeAliases},
		{"enums", s.stripEnums},
		{"assertions", replacer(assertionRe, "")},
		{"return-types", replacer(returnTypeRe, ")")},
		{"parameters", stripParameters},
		{"variables", stripVariableAnnotations},
		{"array-suffixes", replacer(arraySuffixRe, "$1")},
		{"primitives", stripPrimitives},
	}
	return s
}

var defaultStripper = NewStripper(Options{}, nil)

// Strip runs the default stripper over source.
func Strip(source string) string {
	return defaultStripper.Strip(source)
}

// Strip converts TypeScript-flavoured source into executable JavaScript.
func (s *Stripper) Strip(source string) (out string) {
	if strings.TrimSpace(source) == "" {
		return source
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("strip aborted", zap.Any("panic", r))
			out = source
		}
	}()

	m := mask(source)
	text := m.text
	for _, p := range s.passes {
		next, err := p.run(text)
		if err != nil {
			s.logger.Debug("strip pass skipped", zap.String("pass", p.name), zap.Error(err))
			continue
		}
		text = next
	}
	return m.restore(text)
}

const (
	ident = `[A-Za-z_$][\w$]*`
	// typeAtom matches a named, literal or tuple type with optional generic
	// arguments and array suffixes.
	typeAtom = `(?:` + ident + `(?:\.` + ident + `)*(?:<[^<>{}()]*>)?|\uE000\d+\uE001|\d+|\[[^\[\]{}()]*\])(?:\[\])*`
	typeExpr = typeAtom + `(?:[ \t]*[|&][ \t]*` + typeAtom + `)*`
	prims    = `(?:string|number|boolean|void|any|unknown|never|object|bigint|symbol)`
)

var (
	interfaceRe = compile(`(?m)(?:^|[;{}])[ \t]*(?<decl>(?:export[ \t]+)?(?:declare[ \t]+)?interface[ \t]+` + ident + `[^{;]*\{)`)
	typeAliasRe = compile(`(?m)(?:^|[;{}])[ \t]*(?<decl>(?:export[ \t]+)?type[ \t]+` + ident + `[ \t]*(?:<[^<>=;\n]*>)?[ \t]*=)`)
	enumRe      = compile(`(?m)(?:^|[;{}])[ \t]*(?<decl>(?:export[ \t]+)?(?:declare[ \t]+)?(?:const[ \t]+)?enum[ \t]+(?<name>` + ident + `)[ \t]*\{)`)

	assertionRe  = compile(`(?<=[\w$\)\]\uE001])[ \t]+as[ \t]+(?:const\b|` + typeExpr + `)`)
	returnTypeRe = compile(`\)[ \t]*:[ \t]*` + typeExpr + `(?=[ \t]*(?:\{|=>))`)

	functionGenericRe = compile(`(function[ \t]*\*?[ \t]*` + ident + `)[ \t]*<[^<>(){}]*>`)
	arrowGenericRe    = compile(`(?<=[=,(:][ \t]*)<` + ident + `(?:[ \t]+extends[ \t]+` + ident + `)?(?:[ \t]*,[ \t]*` + ident + `)*>(?=[ \t]*\()`)

	variableRe    = compile(`\b(?:let|const|var)[ \t]+` + ident + `(?<opt>\?)?[ \t]*:`)
	arraySuffixRe = compile(`(` + ident + `)\??[ \t]*:[ \t]*` + ident + `(?:<[^<>]*>)?(?:\[\])+`)
	primitiveRe   = compile(`(?<=[\w$\)\]])\??[ \t]*:[ \t]*` + prims + `\b(?:[ \t]*\|[ \t]*(?:` + prims + `|null|undefined)\b)*(?=[ \t]*(?:[;,)=\n]|$))`)
)

func compile(pattern string) *regexp2.Regexp {
	re := regexp2.MustCompile(pattern, regexp2.None)
	re.MatchTimeout = matchTimeout
	return re
}

func replacer(re *regexp2.Regexp, repl string) func(string) (string, error) {
	return func(text string) (string, error) {
		return re.Replace(text, repl, -1, -1)
	}
}

// removeDeclarations finds every declaration matched by re whose header ends
// in an opening brace, and replaces the header plus its balanced body with
// whatever lower returns.
func removeDeclarations(text string, re *regexp2.Regexp, lower func(m *regexp2.Match, body []rune) string) (string, error) {
	runes := []rune(text)
	start := 0
	for start < len(runes) {
		m, err := re.FindRunesMatchStartingAt(runes, start)
		if err != nil {
			return text, err
		}
		if m == nil {
			break
		}
		decl := m.GroupByName("decl")
		open := m.Index + m.Length - 1
		end := closing(runes, open)
		if end < 0 {
			break
		}
		repl := []rune(lower(m, runes[open+1:end]))
		runes = splice(runes, decl.Index, end+1, repl)
		start = decl.Index + len(repl)
	}
	return string(runes), nil
}

func stripInterfaces(text string) (string, error) {
	return removeDeclarations(text, interfaceRe, func(*regexp2.Match, []rune) string { return "" })
}

func stripTypeAliases(text string) (string, error) {
	runes := []rune(text)
	start := 0
	for start < len(runes) {
		m, err := typeAliasRe.FindRunesMatchStartingAt(runes, start)
		if err != nil {
			return text, err
		}
		if m == nil {
			break
		}
		decl := m.GroupByName("decl")
		end := aliasEnd(runes, m.Index+m.Length)
		runes = splice(runes, decl.Index, end, nil)
		start = decl.Index
	}
	return string(runes), nil
}

// aliasEnd returns the index just past the alias body: the first top-level
// semicolon, or the end of the line when the next line does not continue
// the union or intersection.
func aliasEnd(runes []rune, from int) int {
	depth := 0
	seen := false
	for i := from; i < len(runes); i++ {
		switch c := runes[i]; c {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}':
			depth--
		case '>':
			if runes[i-1] != '=' {
				depth--
			}
		case ';':
			if depth <= 0 {
				return i + 1
			}
		case '\n':
			if depth <= 0 && seen && !continuesType(runes, i+1) {
				return i
			}
		default:
			if c != ' ' && c != '\t' && c != '|' && c != '&' {
				seen = true
			}
		}
	}
	return len(runes)
}

func continuesType(runes []rune, from int) bool {
	for i := from; i < len(runes); i++ {
		switch runes[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '|', '&':
			return true
		default:
			return false
		}
	}
	return false
}

func (s *Stripper) stripEnums(text string) (string, error) {
	return removeDeclarations(text, enumRe, func(m *regexp2.Match, body []rune) string {
		if s.opts.DropEnums {
			return ""
		}
		return lowerEnum(m.GroupByName("name").String(), string(body))
	})
}

// lowerEnum turns an enum body into a frozen object literal with the same
// member values TypeScript would assign.
func lowerEnum(name, body string) string {
	var (
		members []string
		next    = 0
		numeric = true
	)
	for _, raw := range strings.Split(body, ",") {
		member := strings.TrimSpace(raw)
		if member == "" {
			continue
		}
		key, value, hasValue := strings.Cut(member, "=")
		key = strings.TrimSpace(dropPlaceholders(key))
		value = strings.TrimSpace(value)
		switch {
		case !hasValue && numeric:
			value = strconv.Itoa(next)
			next++
		case !hasValue:
			value = "undefined"
		default:
			if n, err := strconv.Atoi(value); err == nil {
				next, numeric = n+1, true
			} else {
				numeric = false
			}
		}
		members = append(members, fmt.Sprintf("%s: %s", key, value))
	}
	return fmt.Sprintf("const %s = Object.freeze({%s});", name, strings.Join(members, ", "))
}

// dropPlaceholders removes masked comments that ended up inside an enum key.
func dropPlaceholders(s string) string {
	for {
		open := strings.IndexRune(s, maskOpen)
		if open < 0 {
			return s
		}
		end := strings.IndexRune(s[open:], maskClose)
		if end < 0 {
			return s
		}
		s = s[:open] + s[open+end+len(string(maskClose)):]
	}
}

// stripParameters removes annotations from every parenthesised group that
// is a parameter list: function declarations and expressions, methods,
// arrow functions and catch clauses.
func stripParameters(text string) (string, error) {
	text, err := functionGenericRe.Replace(text, "$1", -1, -1)
	if err != nil {
		return text, err
	}
	if text, err = arrowGenericRe.Replace(text, "", -1, -1); err != nil {
		return text, err
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '(' {
			continue
		}
		end := closing(runes, i)
		if end < 0 {
			break
		}
		if !isParameterList(runes, i, end) {
			continue
		}
		params := []rune(stripParamList(runes[i+1 : end]))
		runes = splice(runes, i+1, end, params)
	}
	return string(runes), nil
}

var nonFunctionKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"typeof": true, "await": true, "new": true, "in": true, "of": true,
	"do": true, "else": true, "case": true, "throw": true, "delete": true,
	"void": true, "yield": true,
}

func isParameterList(runes []rune, open, end int) bool {
	after := skipSpace(runes, end+1)
	arrow := after+1 < len(runes) && runes[after] == '=' && runes[after+1] == '>'
	if arrow {
		return true
	}

	word := wordBefore(runes, open)
	switch word {
	case "function", "catch":
		return true
	case "":
		return false
	}
	if nonFunctionKeywords[word] {
		return false
	}
	return after < len(runes) && runes[after] == '{'
}

// stripParamList removes optional markers and type annotations from each
// comma-separated parameter, keeping names and default values.
func stripParamList(list []rune) string {
	segments := splitTopLevel(list, ',')
	out := make([]string, len(segments))
	for i, seg := range segments {
		out[i] = stripParam(seg)
	}
	return strings.Join(out, ",")
}

func stripParam(seg []rune) string {
	i := skipSpace(seg, 0)
	if i+3 <= len(seg) && string(seg[i:i+3]) == "..." {
		i += 3
	}

	// name, or a destructuring pattern
	nameEnd := i
	switch {
	case i < len(seg) && (seg[i] == '{' || seg[i] == '['):
		end := closing(seg, i)
		if end < 0 {
			return string(seg)
		}
		nameEnd = end + 1
	default:
		for nameEnd < len(seg) && isIdentRune(seg[nameEnd]) {
			nameEnd++
		}
		if nameEnd == i {
			return string(seg)
		}
	}

	j := nameEnd
	optional := j < len(seg) && seg[j] == '?'
	if optional {
		j++
	}
	k := skipSpace(seg, j)
	if k >= len(seg) || seg[k] != ':' {
		if optional {
			return string(seg[:nameEnd]) + string(seg[j:])
		}
		return string(seg)
	}

	typeEnd := typeExprEnd(seg, k+1, false)
	keep := typeEnd
	for keep > k+1 && isSpace(seg[keep-1]) {
		keep--
	}
	return string(seg[:nameEnd]) + string(seg[keep:])
}

// stripVariableAnnotations rewrites `let name: Type` as `let name`, scanning
// the type with bracket awareness so object and tuple types are removed
// whole and the assignment that follows is untouched.
func stripVariableAnnotations(text string) (string, error) {
	runes := []rune(text)
	start := 0
	for start < len(runes) {
		m, err := variableRe.FindRunesMatchStartingAt(runes, start)
		if err != nil {
			return text, err
		}
		if m == nil {
			break
		}
		colon := m.Index + m.Length - 1
		cut := colon
		if opt := m.GroupByName("opt"); opt != nil && opt.Length > 0 {
			cut = opt.Index
		}
		for cut > m.Index && isSpace(runes[cut-1]) {
			cut--
		}
		end := typeExprEnd(runes, colon+1, true)
		keep := end
		for keep > colon+1 && isSpace(runes[keep-1]) {
			keep--
		}
		runes = splice(runes, cut, keep, nil)
		start = cut
	}
	return string(runes), nil
}

// stripPrimitives removes leftover `: primitive` annotations such as class
// fields. Matches inside expressions are kept: a ternary's else branch or
// an object literal value may well be a variable called number.
func stripPrimitives(text string) (string, error) {
	runes := []rune(text)
	start := 0
	for start < len(runes) {
		m, err := primitiveRe.FindRunesMatchStartingAt(runes, start)
		if err != nil {
			return text, err
		}
		if m == nil {
			break
		}
		if inExpression(runes, m.Index) {
			start = m.Index + m.Length
			continue
		}
		runes = splice(runes, m.Index, m.Index+m.Length, nil)
		start = m.Index
	}
	return string(runes), nil
}

// inExpression reports whether pos sits inside a call, array or object
// literal, or after the `?` of a ternary in the same statement.
func inExpression(runes []rune, pos int) bool {
	depth := 0
	for i := pos - 1; i >= 0; i-- {
		switch c := runes[i]; c {
		case ')', ']', '}':
			depth++
		case '(', '[':
			if depth == 0 {
				return true
			}
			depth--
		case '{':
			if depth == 0 {
				return objectLiteral(runes, i)
			}
			depth--
		case ';':
			if depth == 0 {
				return false
			}
		case '?':
			if depth > 0 {
				continue
			}
			chained := i+1 < len(runes) && (runes[i+1] == '.' || runes[i+1] == '?') || i > 0 && runes[i-1] == '?'
			if !chained {
				return true
			}
		}
	}
	return false
}

// objectLiteral reports whether the brace at open starts an object literal
// rather than a block or class body
func objectLiteral(runes []rune, open int) bool {
	j := open - 1
	for j >= 0 && isSpace(runes[j]) {
		j--
	}
	if j < 0 {
		return false
	}
	if runes[j] == '>' && j > 0 && runes[j-1] == '=' {
		return false
	}
	if strings.ContainsRune("=(,:[?!&|", runes[j]) {
		return true
	}
	return wordBefore(runes, open) == "return"
}

// typeExprEnd scans a type expression starting at from and returns the
// index of the first rune after it: a top-level `=` that is not part of
// `=>`, a top-level comma or closing bracket, and in statement mode a
// semicolon or newline.
func typeExprEnd(runes []rune, from int, statement bool) int {
	depth := 0
	for i := from; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '(', '[', '{':
			depth++
		case '<':
			depth++
		case '>':
			if i > 0 && runes[i-1] == '=' {
				continue
			}
			depth--
		case ')', ']', '}':
			if depth == 0 {
				return i
			}
			depth--
		case '=':
			next := rune(0)
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			if depth == 0 && next != '>' {
				return i
			}
		case ',':
			if depth == 0 {
				return i
			}
		case ';', '\n':
			if depth == 0 && statement {
				return i
			}
		}
	}
	return len(runes)
}

// closing returns the index of the bracket matching the one at open, or -1.
func closing(runes []rune, open int) int {
	depth := 0
	for i := open; i < len(runes); i++ {
		switch runes[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTopLevel(runes []rune, sep rune) [][]rune {
	var (
		parts [][]rune
		depth int
		last  int
	)
	for i, c := range runes {
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '<':
			if i > 0 && isIdentRune(runes[i-1]) {
				depth++
			}
		case '>':
			if i > 0 && runes[i-1] != '=' && depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, runes[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, runes[last:])
}

func splice(runes []rune, from, to int, repl []rune) []rune {
	out := make([]rune, 0, len(runes)-(to-from)+len(repl))
	out = append(out, runes[:from]...)
	out = append(out, repl...)
	return append(out, runes[to:]...)
}

func wordBefore(runes []rune, pos int) string {
	end := pos
	for end > 0 && isSpace(runes[end-1]) {
		end--
	}
	start := end
	for start > 0 && isIdentRune(runes[start-1]) {
		start--
	}
	return string(runes[start:end])
}

func skipSpace(runes []rune, from int) int {
	for from < len(runes) && isSpace(runes[from]) {
		from++
	}
	return from
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentRune(c rune) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
