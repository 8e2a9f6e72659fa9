package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/promptchart/promptchart/internal/failure"
	"github.com/promptchart/promptchart/internal/query"
)

func TestExecuteReturnsTypedRows(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := New(db, Config{Timeout: time.Second})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT p.name, p.price FROM products p`)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price"}).
			AddRow("Widget", "12.50").
			AddRow([]byte("Gadget"), int64(30)).
			AddRow(nil, nil))

	result, err := engine.Execute(context.Background(), "SELECT p.name, p.price FROM products p;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.Join(result.Columns, ",") != "name,price" {
		t.Fatalf("Columns = %v", result.Columns)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("len(Rows) = %d", len(result.Rows))
	}
	if got := result.Rows[1][0]; got.Kind() != query.KindString || got.Text() != "Gadget" {
		t.Fatalf("Rows[1][0] = %#v", got)
	}
	if f, ok := result.Rows[0][1].Float(); !ok || f != 12.5 {
		t.Fatalf("Rows[0][1].Float() = %v, %v", f, ok)
	}
	if !result.Rows[2][0].IsNull() {
		t.Fatalf("Rows[2][0] = %#v, want null", result.Rows[2][0])
	}
	assertSQLMock(t, mock)
}

func TestExecuteUsesReadOnlyTransaction(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := New(db, Config{ReadOnlyTx: true})

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) AS count FROM products p`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))
	mock.ExpectCommit()

	result, err := engine.Execute(context.Background(), "SELECT COUNT(*) AS count FROM products p")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if f, _ := result.Rows[0][0].Float(); f != 42 {
		t.Fatalf("count = %v", f)
	}
	assertSQLMock(t, mock)
}

func TestExecuteEmptyResult(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := New(db, Config{})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT p.name FROM products p WHERE p.price > 1000`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err := engine.Execute(context.Background(), "SELECT p.name FROM products p WHERE p.price > 1000")
	if failure.KindOf(err) != failure.KindEmptyResult {
		t.Fatalf("KindOf(err) = %s, err = %v", failure.KindOf(err), err)
	}
	assertSQLMock(t, mock)
}

func TestExecuteWrapsDatabaseError(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := New(db, Config{})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT p.nope FROM products p`)).
		WillReturnError(errors.New(`column p.nope does not exist`))

	_, err := engine.Execute(context.Background(), "SELECT p.nope FROM products p")
	if failure.KindOf(err) != failure.KindQueryExecutionFailed {
		t.Fatalf("KindOf(err) = %s", failure.KindOf(err))
	}
	if !strings.Contains(failure.Message(err), "column p.nope does not exist") {
		t.Fatalf("Message = %q", failure.Message(err))
	}
	assertSQLMock(t, mock)
}

func TestExecuteRejectsWritesBeforeDatabase(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := New(db, Config{})

	for _, statement := range []string{
		"DELETE FROM products",
		"SELECT 1; DROP TABLE users",
		"UPDATE products SET price = 0",
		"SELECT p.name FROM products p WHERE p.id IN (SELECT 1) OR 1=1; TRUNCATE orders",
	} {
		_, err := engine.Execute(context.Background(), statement)
		if failure.KindOf(err) != failure.KindInvalidGeneratedQuery {
			t.Fatalf("Execute(%q) kind = %s", statement, failure.KindOf(err))
		}
	}
	assertSQLMock(t, mock)
}

func TestExecuteTimeout(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := New(db, Config{Timeout: 10 * time.Millisecond})

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT p.name FROM products p`)).
		WillDelayFor(200 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("late"))

	_, err := engine.Execute(context.Background(), "SELECT p.name FROM products p")
	if failure.KindOf(err) != failure.KindQueryExecutionFailed {
		t.Fatalf("KindOf(err) = %s, err = %v", failure.KindOf(err), err)
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
