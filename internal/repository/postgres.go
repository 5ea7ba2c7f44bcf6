package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/mmeshcher/link-tracker/internal/models"
)

type PostgresRepository struct {
	pool   *pgxpool.Pool
	sb     squirrel.StatementBuilderType
	logger *zap.Logger
}

func NewPostgresRepository(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	logger.Info("Migrations applied successfully")

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("PostgreSQL repository initialized successfully")

	return &PostgresRepository{
		pool:   pool,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: logger,
	}, nil
}

func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

func (p *PostgresRepository) CreateLink(ctx context.Context, link *models.Link, replaceShortID string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if replaceShortID != "" {
		query, args, err := p.sb.
			Delete(linksTable).
			Where(squirrel.Eq{"short_id": replaceShortID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete query: %w", err)
		}

		cmdTag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete replaced link: %w", err)
		}
		if cmdTag.RowsAffected() > 0 {
			p.logger.Info("Replaced existing link", zap.String("short_id", replaceShortID))
		}
	}

	query, args, err := p.sb.
		Insert(linksTable).
		Columns("original_url", "short_id", "type", "status", "clicks").
		Values(link.OriginalURL, link.ShortID, nullableType(link.Type), string(models.StatusActive), 0).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&link.ID); err != nil {
		return fmt.Errorf("insert link: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	link.Status = models.StatusActive
	link.Clicks = 0
	return nil
}

func (p *PostgresRepository) SetStatus(ctx context.Context, shortID string, status models.Status) error {
	query, args, err := p.sb.
		Update(linksTable).
		Set("status", string(status)).
		Where(squirrel.Eq{"short_id": shortID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (p *PostgresRepository) FindActive(ctx context.Context, shortID string) (*models.Link, error) {
	query, args, err := p.sb.
		Select(linkColumns...).
		From(linksTable).
		Where(squirrel.Eq{"short_id": shortID, "status": string(models.StatusActive)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	link, err := scanLink(p.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query row: %w", err)
	}
	return link, nil
}

func (p *PostgresRepository) HasVisit(ctx context.Context, linkID int64, visitorID string) (bool, error) {
	query, args, err := p.sb.
		Select("1").
		From(visitorsTable).
		Where(squirrel.Eq{"link_id": linkID, "user_id": visitorID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query row: %w", err)
	}
	return true, nil
}

func (p *PostgresRepository) RecordVisit(ctx context.Context, visit models.Visit) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query, args, err := p.sb.
		Insert(visitorsTable).
		Columns("link_id", "ip_address", "user_id").
		Values(visit.LinkID, visit.IPAddress, visit.VisitorID).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return 0, ErrAlreadyCounted
			case pgerrcode.ForeignKeyViolation:
				return 0, ErrNotFound
			}
		}
		return 0, fmt.Errorf("insert visit: %w", err)
	}

	clicks, err := p.incrementClicks(ctx, tx, visit.LinkID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return clicks, nil
}

func (p *PostgresRepository) incrementClicks(ctx context.Context, tx pgx.Tx, linkID int64) (int64, error) {
	query, args, err := p.sb.
		Update(linksTable).
		Set("clicks", squirrel.Expr("clicks + 1")).
		Where(squirrel.Eq{"id": linkID}).
		Suffix("RETURNING clicks").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update query: %w", err)
	}

	var clicks int64
	if err := tx.QueryRow(ctx, query, args...).Scan(&clicks); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment clicks: %w", err)
	}
	return clicks, nil
}

func (p *PostgresRepository) ListLinks(ctx context.Context) ([]models.Link, error) {
	query, args, err := p.sb.
		Select(linkColumns...).
		From(linksTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
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

func (p *PostgresRepository) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresRepository) Close() error {
	p.pool.Close()
	return nil
}
