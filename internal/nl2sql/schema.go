package nl2sql

import (
	"fmt"
	"strings"
)

type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	Unique     bool
}

type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Table describes one relation the model may query. Alias is the only alias
// the validator accepts for the table.
type Table struct {
	Name        string
	Alias       string
	Columns     []Column
	ForeignKeys []ForeignKey
	Description string
}

type Schema struct {
	Tables []Table
}

// DefaultSchema is the sales dataset: products, users, orders and the
// order_products link table.
func DefaultSchema() Schema {
	return Schema{Tables: []Table{
		{
			Name:  "products",
			Alias: "p",
			Columns: []Column{
				{Name: "id", Type: "INT", PrimaryKey: true},
				{Name: "name", Type: "VARCHAR"},
				{Name: "description", Type: "TEXT"},
				{Name: "price", Type: "DECIMAL(10,2)"},
				{Name: "created_at", Type: "TIMESTAMP"},
				{Name: "updated_at", Type: "TIMESTAMP"},
			},
			Description: "Stores product information like name and price",
		},
		{
			Name:  "users",
			Alias: "u",
			Columns: []Column{
				{Name: "id", Type: "INT", PrimaryKey: true},
				{Name: "username", Type: "VARCHAR", Unique: true},
				{Name: "email", Type: "VARCHAR", Unique: true},
				{Name: "password", Type: "VARCHAR"},
				{Name: "created_at", Type: "TIMESTAMP"},
			},
			Description: "Stores user information like username and email",
		},
		{
			Name:  "orders",
			Alias: "o",
			Columns: []Column{
				{Name: "id", Type: "INT", PrimaryKey: true},
				{Name: "user_id", Type: "INT"},
				{Name: "subtotal", Type: "DECIMAL(10,2)"},
				{Name: "discount", Type: "DECIMAL(10,2)"},
				{Name: "total_price", Type: "DECIMAL(10,2)"},
				{Name: "created_at", Type: "TIMESTAMP"},
			},
			ForeignKeys: []ForeignKey{{Column: "user_id", RefTable: "users", RefColumn: "id"}},
			Description: "Stores order details like total price and user",
		},
		{
			Name:  "order_products",
			Alias: "op",
			Columns: []Column{
				{Name: "order_id", Type: "INT"},
				{Name: "product_id", Type: "INT"},
			},
			ForeignKeys: []ForeignKey{
				{Column: "order_id", RefTable: "orders", RefColumn: "id"},
				{Column: "product_id", RefTable: "products", RefColumn: "id"},
			},
			Description: "Links orders to products (many-to-many)",
		},
	}}
}

// Render produces the schema block embedded in the prompt.
func (s Schema) Render() string {
	var b strings.Builder
	for i, table := range s.Tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Table %s (\n", table.Name)
		lines := make([]string, 0, len(table.Columns)+len(table.ForeignKeys))
		for _, col := range table.Columns {
			line := "  " + col.Name + " " + col.Type
			if col.PrimaryKey {
				line += " PRIMARY KEY"
			}
			if col.Unique {
				line += " UNIQUE"
			}
			lines = append(lines, line)
		}
		for _, fk := range table.ForeignKeys {
			lines = append(lines, fmt.Sprintf("  FOREIGN KEY (%s) REFERENCES %s(%s)", fk.Column, fk.RefTable, fk.RefColumn))
		}
		b.WriteString(strings.Join(lines, ",\n"))
		b.WriteString("\n)")
		if table.Description != "" {
			b.WriteString(" -- " + table.Description)
		}
		b.WriteString(";\n")
	}
	return b.String()
}

// TableNames returns the known table names in declaration order.
func (s Schema) TableNames() []string {
	out := make([]string, 0, len(s.Tables))
	for _, table := range s.Tables {
		out = append(out, table.Name)
	}
	return out
}

func (s Schema) HasTable(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, table := range s.Tables {
		if table.Name == name {
			return true
		}
	}
	return false
}
