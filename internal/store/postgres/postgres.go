package postgres

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/worldsmith/worldsmith/internal/store"
)

type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS worlds(
			id BIGSERIAL PRIMARY KEY,
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
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) Create(ctx context.Context, w store.World) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO worlds(world_number, name, version, software, max_players,
			server_port, jmx_port, rcon_port, rmi_port, rcon_password,
			server_user, server_temp_psw, process_id, starting_status)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id;`,
		w.WorldNumber, w.Name, w.Version, w.Software, w.MaxPlayers,
		w.ServerPort, w.JMXPort, w.RCONPort, w.RMIPort, w.RCONPassword,
		w.ServerUser, w.ServerTempPsw, w.ProcessID, w.StartingStatus).Scan(&id)
	return id, err
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

func (p *DB) Get(ctx context.Context, worldNumber string) (store.World, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+selectCols+` FROM worlds WHERE world_number=$1;`, worldNumber)
	w, err := scanWorld(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.World{}, store.ErrNotFound
	}
	return w, err
}

func (p *DB) Update(ctx context.Context, w store.World) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE worlds SET name=$1, version=$2, software=$3, max_players=$4,
			server_port=$5, jmx_port=$6, rcon_port=$7, rmi_port=$8, rcon_password=$9
		WHERE world_number=$10;`,
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

func (p *DB) Delete(ctx context.Context, worldNumber string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM worlds WHERE world_number=$1;`, worldNumber)
	return err
}

func (p *DB) List(ctx context.Context) ([]store.World, error) {
	rows, err := p.db.QueryContext(ctx,
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

func (p *DB) Exists(ctx context.Context, worldNumber string) (bool, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM worlds WHERE world_number=$1;`, worldNumber).Scan(&n)
	return n > 0, err
}

func (p *DB) SetTransient(ctx context.Context, worldNumber string, t store.Transient) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE worlds SET server_user=$1, server_temp_psw=$2, process_id=$3, starting_status=$4
		WHERE world_number=$5;`,
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

func (p *DB) ClearTransient(ctx context.Context, worldNumber string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE worlds SET server_user='', server_temp_psw='', process_id=0, starting_status=''
		WHERE world_number=$1;`, worldNumber)
	return err
}
