package mirror

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
	"github.com/pressly/goose/v3"

	"todozen/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationTableName = "todozen_mirror_version"

// Disabled is the mirror URL value that turns the mirror off.
const Disabled = "off"

// Postgres mirrors tasks into a PostgreSQL table.
type Postgres struct {
	db *sql.DB
}

// Connect probes the mirror once within probeTimeout and applies its
// schema. Any failure degrades to Nop for the rest of the session; the
// reason is logged here and nowhere else.
func Connect(ctx context.Context, url string, probeTimeout time.Duration, logger *slog.Logger) Remote {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mirror")

	url = strings.TrimSpace(url)
	if url == "" || strings.EqualFold(url, Disabled) {
		logger.Info("mirror disabled")
		return Nop{}
	}

	remote, err := openPostgres(ctx, url, probeTimeout, logger)
	if err != nil {
		logger.Warn("mirror unavailable, continuing local-only", "error", err)
		return Nop{}
	}
	logger.Info("mirror enabled")
	return remote
}

func openPostgres(ctx context.Context, url string, probeTimeout time.Duration, logger *slog.Logger) (*Postgres, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := db.PingContext(probeCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mirror: %w", err)
	}
	if err := migrateMirror(probeCtx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func migrateMirror(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(&slogGooseLogger{logger: logger})
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set mirror dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate mirror: %w", err)
	}
	return nil
}

func (p *Postgres) Enabled() bool { return true }

// Upsert writes task with last-write-wins semantics.
func (p *Postgres) Upsert(ctx context.Context, task model.Task) error {
	query := `
		INSERT INTO todozen_tasks (id, owner, title, category, due, created, done, recurrence, recurrence_extra, notified, xp, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			due = EXCLUDED.due,
			created = EXCLUDED.created,
			done = EXCLUDED.done,
			recurrence = EXCLUDED.recurrence,
			recurrence_extra = EXCLUDED.recurrence_extra,
			notified = EXCLUDED.notified,
			xp = EXCLUDED.xp,
			synced_at = now()`

	extra := "{}"
	if task.Recurrence == model.RecurrenceCustom {
		extra = model.EncodeRecurrenceExtra(task.Extra)
	}
	_, err := p.db.ExecContext(ctx, query,
		task.ID, task.Owner, task.Title, task.Category,
		model.FormatTimestamp(task.Due), model.FormatTimestamp(task.Created),
		task.Done, string(task.Recurrence), extra, task.Notified, task.XP,
	)
	if err != nil {
		return fmt.Errorf("mirror upsert %s: %w", task.ID, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM todozen_tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mirror delete %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id FROM todozen_tasks`)
	if err != nil {
		return nil, fmt.Errorf("mirror list ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("mirror scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mirror iterate ids: %w", err)
	}
	return ids, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf does not exit; goose errors are returned to Connect.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

var _ Remote = (*Postgres)(nil)
