package blobstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"runtime"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a named blob does not exist.
var ErrNotFound = errors.New("blobstore: blob not found")

// db wraps the SQLite connections behind the blob operations. SQLite
// allows one writer at a time, so writes go through a single-connection
// pool and reads through a wider one.
type db struct {
	write *sql.DB
	read  *sql.DB
}

// openDB opens a SQLite database, runs migrations, and returns a db.
func openDB(dsn string) (*db, error) {
	pragmas := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

	// For :memory: databases, use shared cache so read/write pools share the same data
	var fullDSN string
	if dsn == ":memory:" {
		fullDSN = "file::memory:?mode=memory&cache=shared&" + pragmas
	} else {
		fullDSN = "file:" + dsn + "?" + pragmas
	}

	write, err := sql.Open("sqlite", fullDSN)
	if err != nil {
		return nil, fmt.Errorf("open write db: %w", err)
	}
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite", fullDSN)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read db: %w", err)
	}
	read.SetMaxOpenConns(max(4, runtime.NumCPU()))

	if err := runMigrations(write); err != nil {
		write.Close()
		read.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &db{write: write, read: read}, nil
}

// runMigrations applies embedded SQL migrations using goose.
// fs.Sub strips the "migrations/" prefix so goose sees files at the FS root.
func runMigrations(conn *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sub fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	_, err = provider.Up(context.Background())
	return err
}

// Ping verifies database connectivity by pinging the read pool.
func (d *db) Ping(ctx context.Context) error {
	return d.read.PingContext(ctx)
}

// Close closes both database connections.
func (d *db) Close() error {
	return errors.Join(d.write.Close(), d.read.Close())
}

func (d *db) exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := d.read.QueryRowContext(ctx, `SELECT 1 FROM blobs WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query blob: %w", err)
	}
	return true, nil
}

// size returns the stored plaintext size, cheaper than reading and
// decrypting the value.
func (d *db) size(ctx context.Context, name string) (int64, error) {
	var n int64
	err := d.read.QueryRowContext(ctx, `SELECT size FROM blobs WHERE name = ?`, name).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query blob size: %w", err)
	}
	return n, nil
}

func (d *db) get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := d.read.QueryRowContext(ctx, `SELECT data FROM blobs WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// put inserts or replaces a named blob. size is the plaintext length;
// data may already be sealed.
func (d *db) put(ctx context.Context, name string, data []byte, size int64) error {
	id := uuid.Must(uuid.NewV7()).String()
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO blobs (id, name, data, size) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			size = excluded.size,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		id, name, data, size)
	if err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}

func (d *db) rename(ctx context.Context, oldName, newName string) error {
	res, err := d.write.ExecContext(ctx, `
		UPDATE blobs SET name = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE name = ?`, newName, oldName)
	if err != nil {
		return fmt.Errorf("rename blob: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename blob: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *db) delete(ctx context.Context, name string) error {
	res, err := d.write.ExecContext(ctx, `DELETE FROM blobs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
