package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/worldsmith/worldsmith/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.

type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS worlds(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			world_number TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			software TEXT NOT NULL,
			max_players INTEGER NOT NULL DEFAULT 0,
			server_port INTEGER NOT NULL,
			jmx_port INTEGER NOT NULL,
			rcon_port INTEGER NOT NULL,
			rmi_port INTEGER NOT NULL,
			rcon_password TEXT NOT NULL,
			server_user TEXT NOT NULL DEFAULT '',
			server_temp_psw TEXT NOT NULL DEFAULT '',
			process_id INTEGER NOT NULL DEFAULT 0,
			starting_status TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_worlds_software ON worlds(software);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) Create(ctx context.Context, w store.World) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO worlds(world_number, name, version, software, max_players,
			server_port, jmx_port, rcon_port, rmi_port, rcon_password,
			server_user, server_temp_psw, process_id, starting_status)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		w.WorldNumber, w.Name, w.Version, w.Software, w.MaxPlayers,
		w.ServerPort, w.JMXPort, w.RCONPort, w.RMIPort, w.RCONPassword,
		w.ServerUser, w.ServerTempPsw, w.ProcessID, w.StartingStatus)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const selectCols = `id, world_number, name, version, software, max_players,
	server_port, jmx_port, rcon_port, rmi_port, rcon_password,
	server_user, server_temp_psw, process_id, starting_status`

func scanWorld(row interface{ Scan(...any) error }) (store.World, error) {
	var w store.World
	err := row.Scan(&w.ID, &w.WorldNumber, &w.Name, &w.Version, &w.Software,
		&w.MaxPlayers, &w.ServerPort, &w.JMXPort, &w.RCONPort, &w.RMIPort,
		&w.RCONPassword, &w.ServerUser, &w.ServerTempPsw, &w.ProcessID,
		&w.StartingStatus)
	return w, err
}

func (s *DB) Get(ctx context.Context, worldNumber string) (store.World, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectCols+` FROM worlds WHERE world_number=?;`, worldNumber)
	w, err := scanWorld(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.World{}, store.ErrNotFound
	}
	return w, err
}

func (s *DB) Update(ctx context.Context, w store.World) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE worlds SET name=?, version=?, software=?, max_players=?,
			server_port=?, jmx_port=?, rcon_port=?, rmi_port=?, rcon_password=?
		WHERE world_number=?;`,
		w.Name, w.Version, w.Software, w.MaxPlayers,
		w.ServerPort, w.JMXPort, w.RCONPort, w.RMIPort, w.RCONPassword,
		w.WorldNumber)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *DB) Delete(ctx context.Context, worldNumber string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM worlds WHERE world_number=?;`, worldNumber)
	return err
}

func (s *DB) List(ctx context.Context) ([]store.World, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectCols+` FROM worlds ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []store.World
	for rows.Next() {
		w, err := scanWorld(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *DB) Exists(ctx context.Context, worldNumber string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM worlds WHERE world_number=?;`, worldNumber).Scan(&n)
	return n > 0, err
}

func (s *DB) SetTransient(ctx context.Context, worldNumber string, t store.Transient) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE worlds SET server_user=?, server_temp_psw=?, process_id=?, starting_status=?
		WHERE world_number=?;`,
		t.ServerUser, t.ServerTempPsw, t.ProcessID, t.StartingStatus, worldNumber)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *DB) ClearTransient(ctx context.Context, worldNumber string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE worlds SET server_user='', server_temp_psw='', process_id=0, starting_status=''
		WHERE world_number=?;`, worldNumber)
	return err
}
