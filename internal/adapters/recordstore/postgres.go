package recordstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/gridpick/pkg/metrics"
)

const pgCollaborator = "postgres"

// pgQuerier is the subset of *pgxpool.Pool the store uses.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore reads and writes the same tables directly over a pgx pool.
// Table names are restricted to the allow-list and every identifier is
// quoted with pgx.Identifier.
type PostgresStore struct {
	db   pgQuerier
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return &PostgresStore{db: pool, pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Select runs q.
func (s *PostgresStore) Select(ctx context.Context, q Query) (_ []Record, err error) {
	defer s.observe("select_"+q.Table, time.Now(), &err)

	sql, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, translatePgError(err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, translatePgError(err)
	}
	out := make([]Record, len(maps))
	for i, m := range maps {
		out[i] = Record(m)
	}
	return out, nil
}

// Insert adds rec and returns the stored row.
func (s *PostgresStore) Insert(ctx context.Context, table string, rec Record) (_ Record, err error) {
	defer s.observe("insert_"+table, time.Now(), &err)

	sql, args, err := buildInsert(table, rec)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, translatePgError(err)
	}
	m, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, translatePgError(err)
	}
	return Record(m), nil
}

// Update patches the rows matching key. It returns ErrNotFound when no row
// matched.
func (s *PostgresStore) Update(ctx context.Context, table string, key Filter, patch Record) (err error) {
	defer s.observe("update_"+table, time.Now(), &err)

	sql, args, err := buildUpdate(table, key, patch)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return translatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) observe(endpoint string, start time.Time, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = "error"
	}
	metrics.RecordUpstream(pgCollaborator, endpoint, outcome, float64(time.Since(start).Milliseconds()))
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &BackendError{Code: pgErr.Code, Message: pgErr.Message}
	}
	return err
}

func ident(name string) string { return pgx.Identifier{name}.Sanitize() }

var sqlOps = map[Op]string{
	OpEq:  "=",
	OpNeq: "<>",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// whereClause renders filters starting at placeholder $next.
func whereClause(filters []Filter, next int) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if f.Value == nil && (f.Op == OpEq || f.Op == OpNeq) {
			if f.Op == OpEq {
				parts = append(parts, ident(f.Column)+" IS NULL")
			} else {
				parts = append(parts, ident(f.Column)+" IS NOT NULL")
			}
			continue
		}
		parts = append(parts, ident(f.Column)+" "+sqlOps[f.Op]+" $"+strconv.Itoa(next))
		args = append(args, f.Value)
		next++
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func buildSelect(q Query) (string, []any, error) {
	if err := q.validate(); err != nil {
		return "", nil, err
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		b.WriteString("*")
	} else {
		cols := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			cols[i] = ident(c)
		}
		b.WriteString(strings.Join(cols, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(ident(q.Table))

	where, args := whereClause(q.Filters, 1)
	b.WriteString(where)

	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = ident(o.Column) + " " + dir
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(q.Offset))
	}
	return b.String(), args, nil
}

func sortedColumns(rec Record) []string {
	cols := make([]string, 0, len(rec))
	for c := range rec {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func buildInsert(table string, rec Record) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	if err := checkRecord(rec); err != nil {
		return "", nil, err
	}
	cols := sortedColumns(rec)
	quoted := make([]string, len(cols))
	holders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = ident(c)
		holders[i] = "$" + strconv.Itoa(i+1)
		args[i] = rec[c]
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		ident(table), strings.Join(quoted, ", "), strings.Join(holders, ", "))
	return sql, args, nil
}

func buildUpdate(table string, key Filter, patch Record) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	if err := key.validate(); err != nil {
		return "", nil, err
	}
	if err := checkRecord(patch); err != nil {
		return "", nil, err
	}
	cols := sortedColumns(patch)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = ident(c) + " = $" + strconv.Itoa(i+1)
		args = append(args, patch[c])
	}
	where, whereArgs := whereClause([]Filter{key}, len(cols)+1)
	args = append(args, whereArgs...)
	return fmt.Sprintf("UPDATE %s SET %s%s", ident(table), strings.Join(sets, ", "), where), args, nil
}
