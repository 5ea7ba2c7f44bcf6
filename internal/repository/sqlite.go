package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mmeshcher/link-tracker/internal/models"
)

// SQLiteRepository serves local sqlite files through modernc.org/sqlite and
// remote libsql databases through the libsql client.
type SQLiteRepository struct {
	db     *sql.DB
	sb     squirrel.StatementBuilderType
	logger *zap.Logger
}

func sqliteDriver(dsn string) string {
	if strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "wss://") {
		return "libsql"
	}
	return "sqlite"
}

// withForeignKeys makes modernc enable foreign keys on every connection it
// opens, not only the one the schema is applied on.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

func NewSQLiteRepository(ctx context.Context, dsn string, logger *zap.Logger) (*SQLiteRepository, error) {
	driverName := sqliteDriver(dsn)
	if driverName == "sqlite" {
		dsn = withForeignKeys(dsn)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driverName == "sqlite" {
		// One writer at a time; in-memory databases also live on a single connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("SQLite repository initialized successfully")

	return &SQLiteRepository{
		db:     db,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		logger: logger,
	}, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schema, err := migrationsFS.ReadFile("migrations/sqlite/schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	for _, stmt := range strings.Split(string(schema), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) CreateLink(ctx context.Context, link *models.Link, replaceShortID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if replaceShortID != "" {
		// Remote libsql may not enforce foreign keys, so visits are not left
		// to ON DELETE CASCADE.
		query, args, err := r.sb.
			Delete(visitorsTable).
			Where("link_id IN (SELECT id FROM "+linksTable+" WHERE short_id = ?)", replaceShortID).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete visits query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete replaced visits: %w", err)
		}

		query, args, err = r.sb.
			Delete(linksTable).
			Where(squirrel.Eq{"short_id": replaceShortID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete query: %w", err)
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete replaced link: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			r.logger.Info("Replaced existing link", zap.String("short_id", replaceShortID))
		}
	}

	query, args, err := r.sb.
		Insert(linksTable).
		Columns("original_url", "short_id", "type", "status", "clicks").
		Values(link.OriginalURL, link.ShortID, nullableType(link.Type), string(models.StatusActive), 0).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if err := tx.QueryRowContext(ctx, query, args...).Scan(&link.ID); err != nil {
		return fmt.Errorf("insert link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	link.Status = models.StatusActive
	link.Clicks = 0
	return nil
}

func (r *SQLiteRepository) SetStatus(ctx context.Context, shortID string, status models.Status) error {
	query, args, err := r.sb.
		Update(linksTable).
		Set("status", string(status)).
		Where(squirrel.Eq{"short_id": shortID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindActive(ctx context.Context, shortID string) (*models.Link, error) {
	query, args, err := r.sb.
		Select(linkColumns...).
		From(linksTable).
		Where(squirrel.Eq{"short_id": shortID, "status": string(models.StatusActive)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	link, err := scanLink(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query row: %w", err)
	}
	return link, nil
}

func (r *SQLiteRepository) HasVisit(ctx context.Context, linkID int64, visitorID string) (bool, error) {
	query, args, err := r.sb.
		Select("1").
		From(visitorsTable).
		Where(squirrel.Eq{"link_id": linkID, "user_id": visitorID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query row: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) RecordVisit(ctx context.Context, visit models.Visit) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.sb.
		Insert(visitorsTable).
		Columns("link_id", "ip_address", "user_id").
		Values(visit.LinkID, visit.IPAddress, visit.VisitorID).
		Suffix("ON CONFLICT (link_id, user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert query: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("insert visit: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if inserted == 0 {
		return 0, ErrAlreadyCounted
	}

	clicks, err := r.incrementClicks(ctx, tx, visit.LinkID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return clicks, nil
}

func (r *SQLiteRepository) incrementClicks(ctx context.Context, tx *sql.Tx, linkID int64) (int64, error) {
	query, args, err := r.sb.
		Update(linksTable).
		Set("clicks", squirrel.Expr("clicks + 1")).
		Where(squirrel.Eq{"id": linkID}).
		Suffix("RETURNING clicks").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update query: %w", err)
	}

	var clicks int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&clicks); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment clicks: %w", err)
	}
	return clicks, nil
}

func (r *SQLiteRepository) ListLinks(ctx context.Context) ([]models.Link, error) {
	query, args, err := r.sb.
		Select(linkColumns...).
		From(linksTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := make([]models.Link, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		links = append(links, *link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return links, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
