package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"LearningCurator/internal/ports"
	"LearningCurator/internal/statusdoc"
)

const uniqueViolation = "23505"

// PostgresStore keeps the status document as a JSONB row guarded by a
// monotonically increasing version column.
type PostgresStore struct {
	db    *sql.DB
	table string
	id    string
	psql  sq.StatementBuilderType
}

var _ ports.DocumentStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB, table, documentID string) *PostgresStore {
	return &PostgresStore{
		db:    db,
		table: table,
		id:    documentID,
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// OpenPostgres connects with the lib/pq driver and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the document table when it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id         TEXT PRIMARY KEY,
    body       JSONB NOT NULL,
    version    BIGINT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, pq.QuoteIdentifier(s.table))

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Load reads the document row. A missing row is an empty document with an
// empty version, which Save turns into an insert.
func (s *PostgresStore) Load(ctx context.Context) (*statusdoc.Document, error) {
	query, args, err := s.psql.
		Select("body", "version").
		From(pq.QuoteIdentifier(s.table)).
		Where(sq.Eq{"id": s.id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var (
		body    []byte
		version int64
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return statusdoc.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select status document: %w", err)
	}

	doc, err := statusdoc.Decode(body)
	if err != nil {
		return nil, err
	}
	doc.Version = strconv.FormatInt(version, 10)
	return doc, nil
}

// Save writes the document if its version still matches the stored row.
func (s *PostgresStore) Save(ctx context.Context, doc *statusdoc.Document) error {
	body, err := doc.Encode()
	if err != nil {
		return err
	}

	if doc.Version == "" {
		return s.insert(ctx, body)
	}

	version, err := strconv.ParseInt(doc.Version, 10, 64)
	if err != nil {
		return fmt.Errorf("parse document version %q: %w", doc.Version, err)
	}

	query, args, err := s.psql.
		Update(pq.QuoteIdentifier(s.table)).
		Set("body", body).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": s.id, "version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update status document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update status document: %w", err)
	}
	if affected == 0 {
		return ports.ErrVersionConflict
	}
	return nil
}

func (s *PostgresStore) insert(ctx context.Context, body []byte) error {
	query, args, err := s.psql.
		Insert(pq.QuoteIdentifier(s.table)).
		Columns("id", "body", "version", "updated_at").
		Values(s.id, body, 1, sq.Expr("NOW()")).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ports.ErrVersionConflict
		}
		return fmt.Errorf("insert status document: %w", err)
	}
	return nil
}
