package seed

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// Loader writes a Dataset into the sales tables in one transaction.
type Loader struct {
	db        *sql.DB
	logger    *slog.Logger
	batchSize int
}

func NewLoader(db *sql.DB, batchSize int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if batchSize <= 0 {
		batchSize = DefaultConfig().BatchSize
	}
	return &Loader{db: db, logger: logger, batchSize: batchSize}
}

type LoadSummary struct {
	Products      int
	Users         int
	Orders        int
	OrderProducts int
}

// truncateOrder respects foreign keys.
var truncateOrder = []string{"order_products", "orders", "users", "products"}

func (l *Loader) Load(ctx context.Context, ds Dataset, truncate bool) (LoadSummary, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return LoadSummary{}, fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if truncate {
		for _, table := range truncateOrder {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return LoadSummary{}, fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}

	products := make([][]any, 0, len(ds.Products))
	for _, p := range ds.Products {
		products = append(products, []any{p.ID, p.Name, p.Description, p.Price, p.CreatedAt, p.UpdatedAt})
	}
	users := make([][]any, 0, len(ds.Users))
	for _, u := range ds.Users {
		users = append(users, []any{u.ID, u.Username, u.Email, u.Password, u.CreatedAt})
	}
	orders := make([][]any, 0, len(ds.Orders))
	links := make([][]any, 0, len(ds.Orders))
	for _, o := range ds.Orders {
		orders = append(orders, []any{o.ID, o.UserID, o.Subtotal, o.Discount, o.TotalPrice, o.CreatedAt})
		for _, productID := range o.ProductIDs {
			links = append(links, []any{o.ID, productID})
		}
	}

	inserts := []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{"products", []string{"id", "name", "description", "price", "created_at", "updated_at"}, products},
		{"users", []string{"id", "username", "email", "password", "created_at"}, users},
		{"orders", []string{"id", "user_id", "subtotal", "discount", "total_price", "created_at"}, orders},
		{"order_products", []string{"order_id", "product_id"}, links},
	}
	for _, insert := range inserts {
		if err := l.insertBatches(ctx, tx, insert.table, insert.columns, insert.rows); err != nil {
			return LoadSummary{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return LoadSummary{}, fmt.Errorf("commit seed tx: %w", err)
	}

	summary := LoadSummary{
		Products:      len(products),
		Users:         len(users),
		Orders:        len(orders),
		OrderProducts: len(links),
	}
	l.logger.InfoContext(ctx, "seed data loaded",
		slog.Int("products", summary.Products),
		slog.Int("users", summary.Users),
		slog.Int("orders", summary.Orders),
		slog.Int("order_products", summary.OrderProducts),
	)
	return summary, nil
}

func (l *Loader) insertBatches(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	for start := 0; start < len(rows); start += l.batchSize {
		end := min(start+l.batchSize, len(rows))
		statement, args := insertStatement(table, columns, rows[start:end])
		if _, err := tx.ExecContext(ctx, statement, args...); err != nil {
			return fmt.Errorf("insert %s rows %d-%d: %w", table, start, end-1, err)
		}
	}
	return nil
}

// insertStatement renders a multi-row INSERT with $n placeholders.
func insertStatement(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, value := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, value)
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(len(args)))
		}
		b.WriteByte(')')
	}
	return b.String(), args
}
