package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// a single connection keeps in-memory databases shared and serialises writers
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			tool_dir TEXT NOT NULL,
			datastore TEXT NOT NULL,
			status TEXT NOT NULL,
			report TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS run_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			line TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_progress_run ON run_progress(run_id, id)`,
		`CREATE TABLE IF NOT EXISTS layers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			kind TEXT NOT NULL,
			band_count INTEGER NOT NULL DEFAULT 0,
			rank TEXT NOT NULL
		)`,
	}
	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return nil, err
		}
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) CreateRun(toolDir, datastore string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		ToolDir:   toolDir,
		Datastore: datastore,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec("INSERT INTO runs (id, tool_dir, datastore, status, started_at) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.ToolDir, run.Datastore, run.Status, run.StartedAt.UnixMilli())
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteDatabase) AppendProgress(runID string, line string) error {
	_, err := s.db.Exec("INSERT INTO run_progress (run_id, line) VALUES (?, ?)", runID, line)
	return err
}

func (s *SQLiteDatabase) FinishRun(runID string, status string, report string) error {
	result, err := s.db.Exec("UPDATE runs SET status = ?, report = ?, finished_at = ? WHERE id = ?",
		status, report, time.Now().UTC().UnixMilli(), runID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

const runColumns = "id, tool_dir, datastore, status, report, started_at, finished_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt, finishedAt int64
	if err := row.Scan(&run.ID, &run.ToolDir, &run.Datastore, &run.Status, &run.Report, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	if finishedAt > 0 {
		run.FinishedAt = time.UnixMilli(finishedAt).UTC()
	}
	return &run, nil
}

// GetRun returns nil without error when the run does not exist.
func (s *SQLiteDatabase) GetRun(id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// GetRuns returns the most recent runs first; limit <= 0 returns all.
func (s *SQLiteDatabase) GetRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query("SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteDatabase) GetProgress(runID string) ([]string, error) {
	rows, err := s.db.Query("SELECT line FROM run_progress WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	lines := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *SQLiteDatabase) CreateLayer(layer *LayerRecord) (string, error) {
	var lastRank sql.NullString
	if err := s.db.QueryRow("SELECT MAX(rank) FROM layers").Scan(&lastRank); err != nil {
		return "", err
	}

	id := layer.ID
	if id == "" {
		id = uuid.NewString()
	}
	rank := Next(lastRank.String)

	_, err := s.db.Exec("INSERT INTO layers (id, name, source, kind, band_count, rank) VALUES (?, ?, ?, ?, ?, ?)",
		id, layer.Name, layer.Source, layer.Kind, layer.BandCount, rank)
	if err != nil {
		return "", err
	}
	layer.ID = id
	layer.Rank = rank
	return id, nil
}

const layerColumns = "id, name, source, kind, band_count, rank"

func scanLayer(row rowScanner) (*LayerRecord, error) {
	var layer LayerRecord
	if err := row.Scan(&layer.ID, &layer.Name, &layer.Source, &layer.Kind, &layer.BandCount, &layer.Rank); err != nil {
		return nil, err
	}
	return &layer, nil
}

func (s *SQLiteDatabase) GetLayers() ([]*LayerRecord, error) {
	rows, err := s.db.Query("SELECT " + layerColumns + " FROM layers ORDER BY rank, id")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var layers []*LayerRecord
	for rows.Next() {
		layer, err := scanLayer(rows)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	return layers, rows.Err()
}

// GetLayerByID returns nil without error when the layer does not exist.
func (s *SQLiteDatabase) GetLayerByID(id string) (*LayerRecord, error) {
	layer, err := scanLayer(s.db.QueryRow("SELECT "+layerColumns+" FROM layers WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return layer, err
}

func (s *SQLiteDatabase) DeleteLayer(id string) error {
	_, err := s.db.Exec("DELETE FROM layers WHERE id = ?", id)
	return err
}

func (s *SQLiteDatabase) UpdateLayerOrder(order []string) error {
	layers, err := s.GetLayers()
	if err != nil {
		return err
	}
	existing := make(map[string]string, len(layers))
	for _, layer := range layers {
		existing[layer.ID] = layer.Rank
	}
	for _, id := range order {
		if _, ok := existing[id]; !ok {
			return fmt.Errorf("layer %s not found", id)
		}
	}

	updates := Reorder(existing, order)
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for id, rank := range updates {
		if _, err := tx.Exec("UPDATE layers SET rank = ? WHERE id = ?", rank, id); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
