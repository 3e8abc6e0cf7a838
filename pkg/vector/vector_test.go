package vector

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// fakeRows yields pre-built rows; unimplemented pgx.Rows methods panic.
type fakeRows struct {
	pgx.Rows
	rows   [][]any
	pos    int
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *float64:
			*p = row[i].(float64)
		case *[]byte:
			*p = row[i].([]byte)
		case *pgvector.Vector:
			*p = pgvector.NewVector(row[i].([]float32))
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     { r.closed = true }

type execCall struct {
	sql  string
	args []any
}

type fakeTx struct {
	pgx.Tx
	conn *fakeConn
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.conn.execErr != nil {
		return pgconn.CommandTag{}, t.conn.execErr
	}
	t.conn.execs = append(t.conn.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.conn.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.conn.committed {
		t.conn.rolledBack = true
	}
	return nil
}

type fakeConn struct {
	rows       *fakeRows
	queries    []execCall
	execs      []execCall
	execErr    error
	committed  bool
	rolledBack bool
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected exec outside transaction")
}

func (c *fakeConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.queries = append(c.queries, execCall{sql: sql, args: args})
	return c.rows, nil
}

func (c *fakeConn) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{conn: c}, nil
}

func TestQuery(t *testing.T) {
	rows := &fakeRows{rows: [][]any{
		{"tx1_0", 0.92, []byte(`{"transaction_id":"tx1","email_to":"b@x","chunk":3}`)},
		{"tx2_0", 0.81, []byte(`{}`)},
	}}
	conn := &fakeConn{rows: rows}

	matches, err := NewIndex(conn).Query(context.Background(), NamespaceEmails, []float32{0.1, 0.2}, 0)
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(matches) != 2 || matches[0].ID != "tx1_0" || matches[0].Score != 0.92 {
		t.Fatalf("unexpected matches %+v", matches)
	}
	if matches[0].Metadata["transaction_id"] != "tx1" || matches[0].Metadata["chunk"] != "3" {
		t.Fatalf("unexpected metadata %v", matches[0].Metadata)
	}
	if got := conn.queries[0].args[2]; got != DefaultTopK {
		t.Fatalf("expected default top-k %d, got %v", DefaultTopK, got)
	}
	if !rows.closed {
		t.Fatalf("rows must be closed")
	}
}

func TestQueryValidation(t *testing.T) {
	idx := NewIndex(&fakeConn{})
	if _, err := idx.Query(context.Background(), "", []float32{1}, 5); err == nil {
		t.Fatalf("expected error for missing namespace")
	}
	if _, err := idx.Query(context.Background(), NamespaceCases, nil, 5); err == nil {
		t.Fatalf("expected error for empty embedding")
	}
}

func TestFetchKeepsIDOrder(t *testing.T) {
	conn := &fakeConn{rows: &fakeRows{rows: [][]any{
		{"b", []float32{2}, []byte(`{"k":"v"}`)},
		{"a", []float32{1}, []byte(nil)},
	}}}

	records, err := NewIndex(conn).Fetch(context.Background(), NamespaceEmails, []string{"a", "missing", "b"})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(records) != 2 || records[0].ID != "a" || records[1].ID != "b" {
		t.Fatalf("unexpected records %+v", records)
	}
	if records[1].Values[0] != 2 || records[1].Metadata["k"] != "v" {
		t.Fatalf("unexpected record %+v", records[1])
	}
}

func TestFetchEmpty(t *testing.T) {
	conn := &fakeConn{}
	records, err := NewIndex(conn).Fetch(context.Background(), NamespaceEmails, nil)
	if err != nil || len(records) != 0 || len(conn.queries) != 0 {
		t.Fatalf("expected no query for empty ids, got %v, %v", records, err)
	}
}

func TestUpsert(t *testing.T) {
	conn := &fakeConn{}
	err := NewIndex(conn).Upsert(context.Background(), NamespaceEmails, []Record{
		{ID: "tx1_0", Values: []float32{1, 2}, Metadata: map[string]string{"chunk": "a"}},
		{ID: "tx1_1", Values: []float32{3, 4}},
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if len(conn.execs) != 2 || !conn.committed || conn.rolledBack {
		t.Fatalf("expected two inserts in a committed transaction, got %+v", conn)
	}
	if !strings.Contains(conn.execs[0].sql, "ON CONFLICT") {
		t.Fatalf("expected upsert statement, got %q", conn.execs[0].sql)
	}
	var meta map[string]string
	if err := json.Unmarshal(conn.execs[1].args[3].([]byte), &meta); err != nil || meta == nil {
		t.Fatalf("nil metadata must be stored as an object, got %s", conn.execs[1].args[3])
	}
}

func TestUpsertRollsBack(t *testing.T) {
	conn := &fakeConn{execErr: errors.New("disk full")}
	err := NewIndex(conn).Upsert(context.Background(), NamespaceEmails, []Record{{ID: "x", Values: []float32{1}}})
	if err == nil || conn.committed || !conn.rolledBack {
		t.Fatalf("expected rollback on failure, got err=%v committed=%v", err, conn.committed)
	}

	conn = &fakeConn{}
	if err := NewIndex(conn).Upsert(context.Background(), NamespaceEmails, []Record{{ID: "x"}}); err == nil {
		t.Fatalf("expected error for record without values")
	}
}

func TestWithNullDefaults(t *testing.T) {
	in := map[string]string{"email_from": "a@x", "email_to": " "}
	got := WithNullDefaults(in, "email_from", "email_to", "email_subject")
	if got["email_from"] != "a@x" || got["email_to"] != NullValue || got["email_subject"] != NullValue {
		t.Fatalf("unexpected defaults %v", got)
	}
	if in["email_to"] != " " {
		t.Fatalf("input must not be modified")
	}
}
