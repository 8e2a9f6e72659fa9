package nl2sql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/promptchart/promptchart/internal/failure"
	"github.com/promptchart/promptchart/internal/intent"
	"github.com/promptchart/promptchart/internal/query"
)

// Validator rule names, reported on failures and in metrics.
const (
	RuleNoSelect        = "no_select"
	RuleNotSelect       = "not_select"
	RuleUnknownTable    = "unknown_table"
	RuleCountRequired   = "count_required"
	RuleGroupByRequired = "group_by_required"
	RuleDateFunction    = "date_function_required"
	RuleWhereRequired   = "where_required"
	RuleAliasUnbound    = "alias_unbound"
)

var (
	selectLinePattern   = regexp.MustCompile(`(?im)^\s*SELECT\s+.*$`)
	countCallPattern    = regexp.MustCompile(`(?i)\bCOUNT\s*\(`)
	countAliasPattern   = regexp.MustCompile(`(?i)\bCOUNT\s*\([^)]*\)\s+AS\s+"?count"?(\s|,|$)`)
	groupByPattern      = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	dateFunctionPattern = regexp.MustCompile(`(?i)\b(DATE_FORMAT|TO_CHAR|STRFTIME|DATE_TRUNC|DATE_PART|EXTRACT|YEAR|MONTH|DAY|DATE)\s*\(`)
	wherePattern        = regexp.MustCompile(`(?i)\bWHERE\b`)
	sqlTokenPattern     = regexp.MustCompile(`"[^"]*"|[A-Za-z_][A-Za-z0-9_$.]*|[0-9]+(?:\.[0-9]+)?|\S`)
)

var continuationKeywords = map[string]bool{
	"FROM": true, "JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true, "CROSS": true,
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true, "LIMIT": true, "OFFSET": true,
	"AND": true, "OR": true, "ON": true,
}

// Validation is an accepted query plus non-fatal findings.
type Validation struct {
	SQL      string
	Warnings []string
}

type aliasBinding struct {
	table string
	alias string
	use   *regexp.Regexp
	bind  *regexp.Regexp
}

// Validator extracts one statement from completion text and applies the
// structural rules. It holds no per-request state.
type Validator struct {
	schema  Schema
	aliases []aliasBinding
}

func NewValidator(schema Schema) *Validator {
	aliases := make([]aliasBinding, 0, len(schema.Tables))
	for _, table := range schema.Tables {
		if table.Alias == "" {
			continue
		}
		alias := regexp.QuoteMeta(table.Alias)
		aliases = append(aliases, aliasBinding{
			table: table.Name,
			alias: table.Alias,
			use:   regexp.MustCompile(`(?i)\b` + alias + `\.`),
			bind:  regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(table.Name) + `\s+(AS\s+)?` + alias + `\b`),
		})
	}
	return &Validator{schema: schema, aliases: aliases}
}

// Validate runs the checks in order and stops at the first failure.
func (v *Validator) Validate(raw, userRequest string) (Validation, error) {
	statement, ok := extractStatement(raw)
	if !ok {
		return Validation{}, failure.Invalid(RuleNoSelect, "No valid SELECT query found in response")
	}

	fields := strings.Fields(statement)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "SELECT") {
		return Validation{}, failure.Invalid(RuleNotSelect, "Response is not a valid SELECT query")
	}

	if err := query.CheckReadOnly(statement); err != nil {
		return Validation{}, err
	}
	scan := query.StripLiterals(statement)
	if err := v.checkTables(scan); err != nil {
		return Validation{}, err
	}

	var warnings []string
	requested := intent.Classify(userRequest)
	switch requested.Kind {
	case intent.KindCount:
		if !countCallPattern.MatchString(scan) {
			return Validation{}, failure.Invalid(RuleCountRequired, "Expected COUNT query for total request")
		}
		if !countAliasPattern.MatchString(scan) {
			warnings = append(warnings, `COUNT query should use alias "count"`)
		}
	case intent.KindTimeSeries:
		if !groupByPattern.MatchString(scan) {
			return Validation{}, failure.Invalid(RuleGroupByRequired, "Expected GROUP BY clause for time-series request")
		}
		if !dateFunctionPattern.MatchString(scan) {
			return Validation{}, failure.Invalid(RuleDateFunction, "Expected date formatting function for time-series request")
		}
	}
	if requested.Conditional && !wherePattern.MatchString(scan) {
		return Validation{}, failure.Invalid(RuleWhereRequired, "Expected WHERE clause for conditional request")
	}

	for _, alias := range v.aliases {
		if alias.use.MatchString(scan) && !alias.bind.MatchString(scan) {
			ref := strings.ToUpper(alias.table + " " + alias.alias)
			return Validation{}, failure.Invalid(RuleAliasUnbound, "Query uses alias without proper table reference: "+ref)
		}
	}

	return Validation{SQL: statement, Warnings: warnings}, nil
}

// extractStatement finds the first line starting with SELECT and joins the
// lines that continue it.
func extractStatement(raw string) (string, bool) {
	text := stripMarkdownSQL(raw)
	loc := selectLinePattern.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	statement := strings.TrimSpace(text[loc[0]:loc[1]])

	rest := strings.Split(text[loc[1]:], "\n")
	if len(rest) > 0 && strings.TrimSpace(rest[0]) == "" {
		rest = rest[1:]
	}
	for _, line := range rest {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "```") {
			break
		}
		if !continuesStatement(statement, trimmed) {
			break
		}
		statement += " " + trimmed
	}

	statement = strings.TrimSpace(strings.TrimRight(statement, "; \t\r"))
	return statement, statement != ""
}

func continuesStatement(statement, line string) bool {
	if strings.HasSuffix(statement, ",") || strings.HasSuffix(statement, "(") {
		return true
	}
	if strings.HasPrefix(line, ")") {
		return true
	}
	words := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '('
	})
	return len(words) > 0 && continuationKeywords[strings.ToUpper(words[0])]
}

// checkTables requires every FROM/JOIN target to be a known table. FROM
// inside a function call, as in EXTRACT(MONTH FROM o.created_at), is not a
// table reference.
func (v *Validator) checkTables(scan string) error {
	tokens := sqlTokenPattern.FindAllString(scan, -1)
	// true marks a parenthesis that opens a subquery.
	var parens []bool
	for i := 0; i < len(tokens); i++ {
		token := strings.ToUpper(tokens[i])
		switch token {
		case "(":
			parens = append(parens, i+1 < len(tokens) && strings.EqualFold(tokens[i+1], "SELECT"))
			continue
		case ")":
			if len(parens) > 0 {
				parens = parens[:len(parens)-1]
			}
			continue
		case "FROM", "JOIN":
		default:
			continue
		}
		if len(parens) > 0 && !parens[len(parens)-1] {
			continue
		}
		for j := i + 1; j < len(tokens); {
			if tokens[j] == "(" {
				break
			}
			name := tableName(tokens[j])
			if !v.schema.HasTable(name) {
				return failure.Invalid(RuleUnknownTable, fmt.Sprintf("Query references unknown table: %s", name))
			}
			j++
			if j < len(tokens) && strings.EqualFold(tokens[j], "AS") {
				j++
			}
			if j < len(tokens) && isIdentifier(tokens[j]) && !isClauseKeyword(tokens[j]) {
				j++
			}
			if j < len(tokens) && tokens[j] == "," && token == "FROM" {
				j++
				continue
			}
			break
		}
	}
	return nil
}

func tableName(token string) string {
	token = strings.Trim(token, `"`)
	if idx := strings.LastIndex(token, "."); idx >= 0 {
		token = token[idx+1:]
	}
	return strings.ToLower(token)
}

func isIdentifier(token string) bool {
	if token == "" {
		return false
	}
	c := token[0]
	return c == '"' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

var clauseKeywords = map[string]bool{
	"WHERE": true, "JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true, "CROSS": true,
	"OUTER": true, "ON": true, "GROUP": true, "ORDER": true, "HAVING": true, "LIMIT": true, "OFFSET": true,
	"UNION": true, "NATURAL": true, "USING": true,
}

func isClauseKeyword(token string) bool {
	return clauseKeywords[strings.ToUpper(token)]
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```SQL")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
