package nl2sql

import (
	"strconv"
	"strings"
)

// Dialect names the SQL flavour the relational store speaks.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectDuckDB   Dialect = "duckdb"
)

// DialectForDriver maps a database/sql driver name to its dialect.
func DialectForDriver(driver string) Dialect {
	if strings.EqualFold(driver, "duckdb") {
		return DialectDuckDB
	}
	return DialectPostgres
}

func (d Dialect) displayName() string {
	if d == DialectDuckDB {
		return "DuckDB"
	}
	return "PostgreSQL"
}

// monthExpr is the formatted date expression time-series requests group on.
func (d Dialect) monthExpr(column string) string {
	if d == DialectDuckDB {
		return "strftime(" + column + ", '%Y-%m')"
	}
	return "TO_CHAR(" + column + ", 'YYYY-MM')"
}

const promptTemplate = `Using the schema:
{schema}
Generate a valid {dialect} SELECT query for the request: {userRequest}
Rules:
- ONLY return the query as a single line of text.
- NO explanations, reasoning, comments, or extra text.
- Only SELECT statements are allowed. Never modify data or schema.
- Always use table aliases in the format 'table_name alias' in the FROM and JOIN clauses: {aliases}. Never write 'FROM p'.
- For requests asking for a count (e.g., "total products", "total orders", "how many users"), use COUNT(*) with the alias 'count' (e.g., 'SELECT COUNT(*) AS count FROM products p').
- For averages, use AVG(column) with the alias 'avg_column' (e.g., 'SELECT AVG(p.price) AS avg_price FROM products p').
- For requests listing items (e.g., "get all products"), select one descriptive string column and one numeric column for charting (e.g., 'SELECT p.name, p.price FROM products p').
- For requests over time (e.g., "per month", "over time", "by date", "monthly", "trend"), GROUP BY a formatted date expression aliased 'month' (e.g., '{monthExpr} AS month') and ORDER BY month.
- For conditions (e.g., "greater than", "less than"), use a WHERE clause (e.g., 'WHERE p.price > 50').
- Examples:
  - Request: "total products?" -> Query: "SELECT COUNT(*) AS count FROM products p"
  - Request: "Get all products with a price greater than 50" -> Query: "SELECT p.name, p.price FROM products p WHERE p.price > 50"
  - Request: "average, min, max price of products" -> Query: "SELECT AVG(p.price) AS avg_price, MIN(p.price) AS min_price, MAX(p.price) AS max_price FROM products p"
  - Request: "orders per month" -> Query: "SELECT {monthExpr} AS month, COUNT(*) AS count FROM orders o GROUP BY month ORDER BY month"
  - Request: "total spent by each user" -> Query: "SELECT u.username, SUM(o.total_price) AS total_spent FROM users u JOIN orders o ON o.user_id = u.id GROUP BY u.username"
- Ensure the query is valid {dialect} syntax, references actual table names, and uses aliases correctly.
`

const feedbackTemplate = `
The previous answer was rejected: {reason}
Previous answer: {previous}
Return a corrected query that follows every rule above.
`

// BuildPrompt renders the instruction sent to the completion service. It
// performs substitution only and cannot fail.
func BuildPrompt(schema Schema, dialect Dialect, userRequest string) string {
	aliases := make([]string, 0, len(schema.Tables))
	for _, table := range schema.Tables {
		aliases = append(aliases, "'"+table.Name+" "+table.Alias+"'")
	}
	replacer := strings.NewReplacer(
		"{schema}", schema.Render(),
		"{dialect}", dialect.displayName(),
		"{aliases}", strings.Join(aliases, ", "),
		"{monthExpr}", dialect.monthExpr("o.created_at"),
		"{userRequest}", strings.TrimSpace(userRequest),
	)
	return replacer.Replace(promptTemplate)
}

// BuildFeedbackPrompt appends the rejection reason of a previous attempt to
// the base prompt.
func BuildFeedbackPrompt(base, previous, reason string) string {
	replacer := strings.NewReplacer(
		"{reason}", reason,
		"{previous}", strings.TrimSpace(previous),
	)
	return base + replacer.Replace(feedbackTemplate)
}

const summaryTemplate = `Analyze this dataset and provide a concise summary (max 50 words) for: "{userRequest}"

Dataset info:
- Total rows: {rowCount}
- Columns: {columns}
- Sample data: {sample}

Focus on key metrics, trends, and insights relevant to the request.
Return only the summary text without explanations.
`

// BuildSummaryPrompt renders the dataset summary instruction. sample is the
// JSON encoding of the first rows.
func BuildSummaryPrompt(userRequest string, rowCount int, columns []string, sample string) string {
	replacer := strings.NewReplacer(
		"{userRequest}", strings.TrimSpace(userRequest),
		"{rowCount}", strconv.Itoa(rowCount),
		"{columns}", strings.Join(columns, ", "),
		"{sample}", sample,
	)
	return replacer.Replace(summaryTemplate)
}
