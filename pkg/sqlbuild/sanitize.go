package sqlbuild

import (
	"strings"
	"unicode"

	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dberr"
	"github.com/leapstack-labs/dbkit/pkg/dialect"
)

// ddlKeywords are rejected on the generic execute path. Schema changes go
// through Raw (and, in the CLI, through migrations).
var ddlKeywords = map[string]struct{}{
	"CREATE":   {},
	"DROP":     {},
	"ALTER":    {},
	"TRUNCATE": {},
	"RENAME":   {},
}

// Sanitize validates a caller-supplied QueryInput and normalizes it into
// a BuiltQuery: the statement must be non-empty, must be a single
// statement, and must not be DDL. Named parameters (:name) are expanded
// into vendor placeholders in order of appearance.
func Sanitize(in core.QueryInput) (*core.BuiltQuery, error) {
	d, err := resolveDialect(in.Vendor)
	if err != nil {
		return nil, err
	}

	sql := strings.TrimSpace(in.SQL)
	if sql == "" {
		return nil, dberr.Validationf("sql", "statement must not be empty")
	}
	if len(in.Args) > 0 && len(in.NamedArgs) > 0 {
		return nil, dberr.Validationf("params", "positional and named parameters are mutually exclusive")
	}

	sql = strings.TrimRight(sql, "; \t\r\n")
	if err := checkSingleStatement(sql); err != nil {
		return nil, err
	}
	if kw := firstKeyword(sql); isDDL(kw) {
		return nil, dberr.Validationf("sql",
			"%s statements are not allowed on the generic execute path; use the schema setup path", kw)
	}

	args := in.Args
	if len(in.NamedArgs) > 0 {
		sql, args, err = expandNamed(d, sql, in.NamedArgs)
		if err != nil {
			return nil, err
		}
	}

	return &core.BuiltQuery{SQL: sql, Args: args, Vendor: in.Vendor}, nil
}

// Raw wraps a statement without DDL or multi-statement checks. It is the
// escape hatch reserved for schema setup (test fixtures, bootstrap DDL);
// application code paths always go through Sanitize or the builders.
func Raw(vendor core.Vendor, sql string, args ...any) *core.BuiltQuery {
	return &core.BuiltQuery{SQL: sql, Args: args, Vendor: vendor}
}

// checkSingleStatement rejects a semicolon followed by anything except
// trailing whitespace, scanning outside string literals and comments.
func checkSingleStatement(sql string) error {
	inLineComment := false
	inBlockComment := false
	var quote byte

	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		switch {
		case inLineComment:
			if ch == '\n' {
				inLineComment = false
			}
		case inBlockComment:
			if ch == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				inBlockComment = false
				i++
			}
		case quote != 0:
			if ch == quote {
				// Doubled quote is an escape, not a terminator.
				if i+1 < len(sql) && sql[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
		default:
			switch ch {
			case '\'', '"', '`':
				quote = ch
			case '-':
				if i+1 < len(sql) && sql[i+1] == '-' {
					inLineComment = true
					i++
				}
			case '/':
				if i+1 < len(sql) && sql[i+1] == '*' {
					inBlockComment = true
					i++
				}
			case ';':
				if strings.TrimSpace(sql[i+1:]) != "" {
					return dberr.Validationf("sql", "multi-statement payloads are not allowed")
				}
			}
		}
	}
	return nil
}

// firstKeyword returns the first SQL keyword, uppercased.
func firstKeyword(sql string) string {
	sql = strings.TrimSpace(sql)
	end := 0
	for end < len(sql) {
		ch := rune(sql[end])
		if !unicode.IsLetter(ch) {
			break
		}
		end++
	}
	return strings.ToUpper(sql[:end])
}

func isDDL(keyword string) bool {
	_, ok := ddlKeywords[keyword]
	return ok
}

// expandNamed rewrites :name parameters into vendor placeholders. Names
// follow the identifier grammar; a reference to a missing key fails with
// a validation error. Type casts (::), string literals, and comments are
// left alone.
func expandNamed(d *dialect.Dialect, sql string, named map[string]any) (string, []any, error) {
	var (
		sb             strings.Builder
		args           []any
		idx            = 1
		quote          byte
		inLineComment  bool
		inBlockComment bool
	)

	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		if inLineComment {
			sb.WriteByte(ch)
			if ch == '\n' {
				inLineComment = false
			}
			continue
		}
		if inBlockComment {
			sb.WriteByte(ch)
			if ch == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				sb.WriteByte('/')
				inBlockComment = false
				i++
			}
			continue
		}
		if quote != 0 {
			sb.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
			continue
		}

		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
			sb.WriteByte(ch)
		case ch == '-' && i+1 < len(sql) && sql[i+1] == '-':
			inLineComment = true
			sb.WriteString("--")
			i++
		case ch == '/' && i+1 < len(sql) && sql[i+1] == '*':
			inBlockComment = true
			sb.WriteString("/*")
			i++
		case ch == ':' && i+1 < len(sql) && sql[i+1] == ':':
			// Postgres cast operator.
			sb.WriteString("::")
			i++
		case ch == ':' && i+1 < len(sql) && isIdentStart(sql[i+1]):
			start := i + 1
			end := start
			for end < len(sql) && isIdentPart(sql[end]) {
				end++
			}
			name := sql[start:end]
			val, ok := named[name]
			if !ok {
				return "", nil, dberr.Validationf("params", "no value for named parameter :%s", name)
			}
			sb.WriteString(d.FormatPlaceholder(idx))
			idx++
			args = append(args, val)
			i = end - 1
		default:
			sb.WriteByte(ch)
		}
	}

	return sb.String(), args, nil
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
