package memory

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// wqlLexer tokenizes the WQL data-query subset the fixture engine evaluates.
var wqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i)\b(SELECT|FROM|WHERE|AND|OR|NOT|IS|NULL|LIKE|TRUE|FALSE)\b`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "String", Pattern: `'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`},
	{Name: "Operator", Pattern: `<>|!=|<=|>=|[=<>*,;()]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var wqlParser = participle.MustBuild[selectStmt](
	participle.Lexer(wqlLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(2),
)

type selectStmt struct {
	Star       bool     `"SELECT" ( @"*"`
	Properties []string `         | @Ident ( "," @Ident )* )`
	Class      string   `"FROM" @Ident`
	Where      *orExpr  `( "WHERE" @@ )? ";"?`
}

type orExpr struct {
	And []*andExpr `@@ ( "OR" @@ )*`
}

type andExpr struct {
	Terms []*term `@@ ( "AND" @@ )*`
}

type term struct {
	Not   *term       `  "NOT" @@`
	Group *orExpr     `| "(" @@ ")"`
	Cmp   *comparison `| @@`
}

type comparison struct {
	Property string    `@Ident`
	Null     *nullTest `( @@`
	Op       string    `| @( "<>" | "!=" | "<=" | ">=" | "=" | "<" | ">" | "LIKE" | "NOT" "LIKE" )`
	Value    *literal  `  @@ )`
}

type nullTest struct {
	Not bool `"IS" ( @"NOT" )? "NULL"`
}

type literal struct {
	Str    *string `  @String`
	Num    *string `| @Number`
	Bool   *string `| @( "TRUE" | "FALSE" )`
	IsNull bool    `| @"NULL"`
}

// parseWQL parses a data query. Keywords are case-insensitive.
func parseWQL(query string) (*selectStmt, error) {
	return wqlParser.ParseString("", query)
}

// whereProperties returns every property name the WHERE clause references.
func (s *selectStmt) whereProperties() []string {
	var out []string
	var walkOr func(*orExpr)
	var walkTerm func(*term)
	walkOr = func(e *orExpr) {
		for _, a := range e.And {
			for _, t := range a.Terms {
				walkTerm(t)
			}
		}
	}
	walkTerm = func(t *term) {
		switch {
		case t.Not != nil:
			walkTerm(t.Not)
		case t.Group != nil:
			walkOr(t.Group)
		case t.Cmp != nil:
			out = append(out, t.Cmp.Property)
		}
	}
	if s.Where != nil {
		walkOr(s.Where)
	}
	return out
}

// =============================================================================
// Evaluation
// =============================================================================

// lookupFunc resolves a property of the instance under test.
type lookupFunc func(name string) any

func (e *orExpr) eval(get lookupFunc) bool {
	for _, a := range e.And {
		if a.eval(get) {
			return true
		}
	}
	return false
}

func (e *andExpr) eval(get lookupFunc) bool {
	for _, t := range e.Terms {
		if !t.eval(get) {
			return false
		}
	}
	return true
}

func (t *term) eval(get lookupFunc) bool {
	switch {
	case t.Not != nil:
		return !t.Not.eval(get)
	case t.Group != nil:
		return t.Group.eval(get)
	default:
		return t.Cmp.eval(get)
	}
}

func (c *comparison) eval(get lookupFunc) bool {
	v := get(c.Property)
	if c.Null != nil {
		return (v == nil) != c.Null.Not
	}
	if c.Value.IsNull {
		// "= NULL" behaves like IS NULL in WQL.
		switch c.Op {
		case "=":
			return v == nil
		case "<>", "!=":
			return v != nil
		}
		return false
	}
	if v == nil {
		return false
	}

	op := strings.ToUpper(c.Op)
	if op == "LIKE" || op == "NOTLIKE" {
		matched := likePattern(c.Value.text()).MatchString(fmt.Sprint(v))
		return matched == (op == "LIKE")
	}

	cmp, ok := compare(v, c.Value)
	if !ok {
		return false
	}
	switch op {
	case "=":
		return cmp == 0
	case "<>", "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// text returns the literal's source text with quoting removed.
func (l *literal) text() string {
	switch {
	case l.Str != nil:
		return unquote(*l.Str)
	case l.Num != nil:
		return *l.Num
	case l.Bool != nil:
		return strings.ToUpper(*l.Bool)
	}
	return ""
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	body := s[1 : len(s)-1]
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String()
}

// compare orders an instance value against a literal. String comparison is
// case-insensitive; ok is false when the two cannot be compared.
func compare(v any, lit *literal) (int, bool) {
	switch {
	case lit.Bool != nil:
		b, ok := v.(bool)
		if !ok {
			return 0, false
		}
		want := strings.EqualFold(*lit.Bool, "TRUE")
		if b == want {
			return 0, true
		}
		if !b {
			return -1, true
		}
		return 1, true

	case lit.Num != nil:
		want, err := strconv.ParseFloat(*lit.Num, 64)
		if err != nil {
			return 0, false
		}
		got, ok := toFloat(v)
		if !ok {
			return 0, false
		}
		switch {
		case got < want:
			return -1, true
		case got > want:
			return 1, true
		}
		return 0, true
	}

	return strings.Compare(strings.ToLower(fmt.Sprint(v)), strings.ToLower(lit.text())), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// likePattern compiles a WQL LIKE pattern: % matches any run, _ matches one
// character, and matching ignores case.
func likePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?is)^`)
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(`.*`)
		case '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	return regexp.MustCompile(b.String())
}
