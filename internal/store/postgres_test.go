package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	blob []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = append([]byte(nil), r.blob...)
	return nil
}

// fakePgx records statements and emulates the snapshots upsert.
type fakePgx struct {
	stmts []string
	rows  map[string][]byte
	err   error
}

func (f *fakePgx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.stmts = append(f.stmts, sql)
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	if strings.Contains(sql, "INSERT INTO snapshots") {
		f.rows[args[0].(string)] = append([]byte(nil), args[1].([]byte)...)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakePgx) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	if f.err != nil {
		return fakeRow{err: f.err}
	}
	blob, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{blob: blob}
}

func TestPostgresStore(t *testing.T) {
	conn := &fakePgx{rows: make(map[string][]byte)}
	s, err := NewPostgresStore(context.Background(), conn)
	require.NoError(t, err)
	require.NotEmpty(t, conn.stmts)
	assert.Contains(t, conn.stmts[0], "CREATE TABLE IF NOT EXISTS snapshots")

	gatewayContract(t, s)
}

func TestPostgresStore_Errors(t *testing.T) {
	conn := &fakePgx{rows: make(map[string][]byte), err: errors.New("connection refused")}

	_, err := NewPostgresStore(context.Background(), conn)
	assert.ErrorContains(t, err, "connection refused")

	s := &PostgresStore{conn: conn}
	_, err = s.Load(context.Background(), KeyProducts)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.Save(context.Background(), KeyProducts, []byte("[]")))
}

func TestNewPgxPool_RequiresURL(t *testing.T) {
	_, err := NewPgxPool(context.Background(), "")
	assert.Error(t, err)
}
