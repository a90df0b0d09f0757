package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ghalamif/sensorwatch/internal/domain"
	"github.com/ghalamif/sensorwatch/internal/ports"
)

// rowsPerStatement keeps multi-row statements under the bind-parameter
// limits of both drivers.
const rowsPerStatement = 500

type dialect struct {
	name      string
	timestamp string
	document  string
}

func (d dialect) placeholder(n int) string {
	if d.name == "sqlite" {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

var dialects = map[string]dialect{
	"postgres": {name: "postgres", timestamp: "TIMESTAMPTZ", document: "JSONB"},
	"sqlite":   {name: "sqlite", timestamp: "TIMESTAMP", document: "TEXT"},
}

// SQLStore reads and maintains sensor rows in Postgres/TimescaleDB or
// SQLite. *sql.DB is safe for concurrent use, so SQLStore is too.
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   dialect
}

func NewSQLStore(db *sql.DB, driver, table string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("sql store: unsupported driver %q", driver)
	}
	return &SQLStore{db: db, tableName: table, dialect: d}, nil
}

func (s *SQLStore) Name() string { return s.dialect.name }

// EnsureSchema creates the sensor table when missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	sensor_id TEXT PRIMARY KEY,
	last_seen %s NULL,
	metadata %s NULL
)`, s.tableName, s.dialect.timestamp, s.dialect.document)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return s.unavailable("ensure schema", err)
	}
	return nil
}

func (s *SQLStore) Fetch(ctx context.Context, q domain.Query) ([]domain.SensorRecord, error) {
	withMeta := q.Wants(domain.FieldMetadata)

	var b strings.Builder
	b.WriteString("SELECT sensor_id, last_seen")
	if withMeta {
		b.WriteString(", metadata")
	}
	b.WriteString(" FROM ")
	b.WriteString(s.tableName)

	var args []any
	if !q.MatchesAll() {
		b.WriteString(" WHERE sensor_id = ")
		b.WriteString(s.dialect.placeholder(1))
		args = append(args, q.SensorID)
	}
	b.WriteString(" ORDER BY sensor_id")

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, s.unavailable("fetch", err)
	}
	defer rows.Close()

	out := []domain.SensorRecord{}
	for rows.Next() {
		var (
			rec  domain.SensorRecord
			last sql.NullTime
			meta sql.NullString
		)
		dest := []any{&rec.SensorID, &last}
		if withMeta {
			dest = append(dest, &meta)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, s.unavailable("scan", err)
		}
		if last.Valid {
			rec.LastSeen = last.Time.UTC()
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", rec.SensorID, err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.unavailable("fetch", err)
	}
	return out, nil
}

// Touch upserts heartbeats; an existing last_seen only moves forward.
func (s *SQLStore) Touch(ctx context.Context, beats []domain.Heartbeat) error {
	for start := 0; start < len(beats); start += rowsPerStatement {
		end := min(start+rowsPerStatement, len(beats))
		chunk := beats[start:end]

		var b strings.Builder
		b.WriteString("INSERT INTO ")
		b.WriteString(s.tableName)
		b.WriteString(" (sensor_id, last_seen) VALUES ")

		args := make([]any, 0, len(chunk)*2)
		for i, hb := range chunk {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "(%s,%s)", s.dialect.placeholder(len(args)+1), s.dialect.placeholder(len(args)+2))
			args = append(args, hb.SensorID, hb.SeenAt.UTC())
		}
		fmt.Fprintf(&b, " ON CONFLICT (sensor_id) DO UPDATE SET last_seen = CASE"+
			" WHEN %[1]s.last_seen IS NULL OR excluded.last_seen > %[1]s.last_seen THEN excluded.last_seen"+
			" ELSE %[1]s.last_seen END", s.tableName)

		if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
			return s.unavailable("touch", err)
		}
	}
	return nil
}

// Upsert writes full records, replacing last_seen and metadata.
func (s *SQLStore) Upsert(ctx context.Context, records []domain.SensorRecord) error {
	for start := 0; start < len(records); start += rowsPerStatement {
		end := min(start+rowsPerStatement, len(records))
		chunk := records[start:end]

		var b strings.Builder
		b.WriteString("INSERT INTO ")
		b.WriteString(s.tableName)
		b.WriteString(" (sensor_id, last_seen, metadata) VALUES ")

		args := make([]any, 0, len(chunk)*3)
		for i, rec := range chunk {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "(%s,%s,%s)",
				s.dialect.placeholder(len(args)+1), s.dialect.placeholder(len(args)+2), s.dialect.placeholder(len(args)+3))

			var last any
			if rec.Reported() {
				last = rec.LastSeen.UTC()
			}
			var meta any
			if len(rec.Metadata) > 0 {
				raw, err := json.Marshal(rec.Metadata)
				if err != nil {
					return fmt.Errorf("marshal metadata for %s: %w", rec.SensorID, err)
				}
				meta = string(raw)
			}
			args = append(args, rec.SensorID, last, meta)
		}
		b.WriteString(" ON CONFLICT (sensor_id) DO UPDATE SET last_seen = excluded.last_seen, metadata = excluded.metadata")

		if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
			return s.unavailable("upsert", err)
		}
	}
	return nil
}

// Reset deletes every sensor row.
func (s *SQLStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+s.tableName); err != nil {
		return s.unavailable("reset", err)
	}
	return nil
}

func (s *SQLStore) unavailable(op string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", s.dialect.name, op, domain.ErrStoreUnavailable, err)
}

// OpenSQL opens and pings a database for driver. SQLite connections get
// WAL journaling and a busy timeout so readers do not block the ingest loop.
// The caller blank-imports the driver.
func OpenSQL(ctx context.Context, driver, conn string) (*sql.DB, error) {
	db, err := sql.Open(driver, conn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		if strings.Contains(conn, ":memory:") {
			db.SetMaxOpenConns(1)
		}
		for _, p := range []string{"PRAGMA busy_timeout = 10000", "PRAGMA journal_mode = WAL"} {
			if _, err := db.ExecContext(ctx, p); err != nil {
				db.Close()
				return nil, fmt.Errorf("sqlite %s: %w", p, err)
			}
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w: %w", driver, domain.ErrStoreUnavailable, err)
	}
	return db, nil
}

var (
	_ ports.TelemetryStore  = (*SQLStore)(nil)
	_ ports.HeartbeatWriter = (*SQLStore)(nil)
	_ ports.SeedStore       = (*SQLStore)(nil)
)
