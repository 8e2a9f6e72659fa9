package query

import (
	"regexp"
	"strings"

	"github.com/promptchart/promptchart/internal/failure"
)

const (
	RuleNotSelect          = "not_select"
	RuleForbiddenKeyword   = "forbidden_keyword"
	RuleMultipleStatements = "multiple_statements"
)

var forbiddenKeywordPattern = regexp.MustCompile(`(?i)\b(DROP|DELETE|UPDATE|INSERT|ALTER|TRUNCATE|CREATE|GRANT|REVOKE|MERGE|COPY|CALL)\b`)

// CheckReadOnly rejects anything that is not a single SELECT statement or
// that mentions a data or schema changing keyword outside a string literal.
func CheckReadOnly(sql string) error {
	stripped := StripLiterals(strings.TrimSpace(sql))
	stripped = strings.TrimRight(stripped, "; \t\r\n")
	fields := strings.Fields(stripped)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "SELECT") {
		return failure.Invalid(RuleNotSelect, "Only SELECT queries are allowed")
	}
	if match := forbiddenKeywordPattern.FindString(stripped); match != "" {
		return failure.Invalid(RuleForbiddenKeyword, "Query contains forbidden keyword: "+strings.ToUpper(match))
	}
	if strings.Contains(stripped, ";") {
		return failure.Invalid(RuleMultipleStatements, "Only a single statement is allowed")
	}
	return nil
}

// StripLiterals blanks the contents of single-quoted string literals and
// removes SQL comments so keyword scans only see statement text. Quote
// characters are kept so offsets stay meaningful.
func StripLiterals(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case inString:
			if ch == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					b.WriteString("  ")
					i++
					continue
				}
				inString = false
				b.WriteByte(ch)
				continue
			}
			b.WriteByte(' ')
		case ch == '\'':
			inString = true
			b.WriteByte(ch)
		case ch == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			b.WriteByte('\n')
		case ch == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 3
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
