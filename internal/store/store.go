// Package store handles SQLite persistence of races, participants and
// passages. It is the snapshot source and atomic write sink of the timing core.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verte-zerg/livetiming/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for timing data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS races (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			distance REAL NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			start_time INTEGER,
			segment_names TEXT NOT NULL DEFAULT '[]'
		);`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			race_id TEXT NOT NULL REFERENCES races(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			distance REAL NOT NULL,
			mandatory INTEGER NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (race_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS participants (
			id TEXT PRIMARY KEY,
			race_id TEXT NOT NULL,
			bib TEXT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			gender TEXT NOT NULL,
			category TEXT NOT NULL,
			club TEXT NOT NULL,
			status TEXT NOT NULL,
			start_time INTEGER,
			UNIQUE (race_id, bib)
		);`,
		`CREATE TABLE IF NOT EXISTS passages (
			id TEXT PRIMARY KEY,
			participant_id TEXT NOT NULL,
			bib TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL,
			checkpoint_name TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			net_time INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_passages_participant ON passages(participant_id);`,
		`CREATE INDEX IF NOT EXISTS idx_participants_race ON participants(race_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRace inserts or replaces a race together with its checkpoints.
func (s *Store) SaveRace(ctx context.Context, race model.Race) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return saveRace(ctx, tx, race)
	})
}

// SaveParticipant inserts or updates a participant.
func (s *Store) SaveParticipant(ctx context.Context, p model.Participant) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return saveParticipant(ctx, tx, p)
	})
}

// SaveRoster writes races and participants in one transaction. A failing row
// leaves the store as it was.
func (s *Store) SaveRoster(ctx context.Context, races []model.Race, participants []model.Participant) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, race := range races {
			if err := saveRace(ctx, tx, race); err != nil {
				return fmt.Errorf("failed to save race %s: %w", race.ID, err)
			}
		}
		for _, p := range participants {
			if err := saveParticipant(ctx, tx, p); err != nil {
				return fmt.Errorf("failed to save bib %s: %w", p.Bib, err)
			}
		}
		return nil
	})
}

func saveRace(ctx context.Context, tx *sql.Tx, race model.Race) error {
	names := []byte("[]")
	if race.SegmentNames != nil {
		encoded, err := json.Marshal(race.SegmentNames)
		if err != nil {
			return fmt.Errorf("failed to encode segment names: %w", err)
		}
		names = encoded
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO races (id, name, distance, type, status, start_time, segment_names)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			distance = excluded.distance,
			type = excluded.type,
			status = excluded.status,
			start_time = excluded.start_time,
			segment_names = excluded.segment_names`,
		race.ID, race.Name, race.Distance, string(race.Type), string(race.Status),
		nullInt64(race.StartTime), string(names),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE race_id = ?`, race.ID); err != nil {
		return err
	}
	for i, cp := range race.Checkpoints {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO checkpoints (race_id, id, name, distance, mandatory, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			race.ID, cp.ID, cp.Name, cp.Distance, cp.Mandatory, i,
		); err != nil {
			return err
		}
	}
	return nil
}

// saveParticipant upserts by id. A status already moved past registered by
// timing is kept when the incoming row is only registered.
func saveParticipant(ctx context.Context, tx *sql.Tx, p model.Participant) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO participants (id, race_id, bib, first_name, last_name, gender, category, club, status, start_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			race_id = excluded.race_id,
			bib = excluded.bib,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			gender = excluded.gender,
			category = excluded.category,
			club = excluded.club,
			status = CASE WHEN excluded.status = 'registered' THEN participants.status ELSE excluded.status END,
			start_time = excluded.start_time`,
		p.ID, p.RaceID, p.Bib, p.FirstName, p.LastName, p.Gender, p.Category, p.Club,
		string(p.Status), nullInt64(p.StartTime),
	)
	return err
}

// ApplyBatch deletes, inserts and updates in a single transaction. Readers
// never observe a partially applied batch.
func (s *Store) ApplyBatch(ctx context.Context, batch model.Batch) error {
	if batch.Empty() {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range batch.DeletePassages {
			if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE id = ?`, id); err != nil {
				return err
			}
		}
		for _, ps := range batch.InsertPassages {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO passages (id, participant_id, bib, checkpoint_id, checkpoint_name, timestamp, net_time)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				ps.ID, ps.ParticipantID, ps.Bib, ps.CheckpointID, ps.CheckpointName, ps.Timestamp, ps.NetTime,
			); err != nil {
				return err
			}
		}
		for _, u := range batch.StatusUpdates {
			res, err := tx.ExecContext(ctx, `UPDATE participants SET status = ? WHERE id = ?`, string(u.Status), u.ParticipantID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("participant %q: %w", u.ParticipantID, model.ErrNotFound)
			}
		}
		return nil
	})
}

// Snapshot reads all races, participants and passages in one read
// transaction.
func (s *Store) Snapshot(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		races, err := listRaces(ctx, tx)
		if err != nil {
			return err
		}
		participants, err := listParticipants(ctx, tx)
		if err != nil {
			return err
		}
		passages, err := listPassages(ctx, tx)
		if err != nil {
			return err
		}
		snap = model.Snapshot{Races: races, Participants: participants, Passages: passages}
		return nil
	})
	return snap, err
}

// ListRaces returns every race with its checkpoints, ordered by name.
func (s *Store) ListRaces(ctx context.Context) ([]model.Race, error) {
	var races []model.Race
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		races, err = listRaces(ctx, tx)
		return err
	})
	return races, err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return defaultContention.run(ctx, func() (err error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				if rerr := tx.Rollback(); rerr != nil {
					// Best-effort rollback.
					_ = rerr
				}
			}
		}()
		if err = fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func listRaces(ctx context.Context, tx *sql.Tx) ([]model.Race, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, distance, type, status, start_time, segment_names FROM races ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var races []model.Race
	index := map[string]int{}
	for rows.Next() {
		var r model.Race
		var raceType, status, names string
		var start sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Name, &r.Distance, &raceType, &status, &start, &names); err != nil {
			return nil, err
		}
		r.Type = model.RaceType(raceType)
		r.Status = model.RaceStatus(status)
		r.StartTime = int64Ptr(start)
		if err := json.Unmarshal([]byte(names), &r.SegmentNames); err != nil {
			return nil, fmt.Errorf("failed to decode segment names of race %q: %w", r.ID, err)
		}
		if len(r.SegmentNames) == 0 {
			r.SegmentNames = nil
		}
		index[r.ID] = len(races)
		races = append(races, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cpRows, err := tx.QueryContext(ctx,
		`SELECT race_id, id, name, distance, mandatory FROM checkpoints ORDER BY race_id, position`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := cpRows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	for cpRows.Next() {
		var raceID string
		var cp model.Checkpoint
		if err := cpRows.Scan(&raceID, &cp.ID, &cp.Name, &cp.Distance, &cp.Mandatory); err != nil {
			return nil, err
		}
		if i, ok := index[raceID]; ok {
			races[i].Checkpoints = append(races[i].Checkpoints, cp)
		}
	}
	if err := cpRows.Err(); err != nil {
		return nil, err
	}
	return races, nil
}

func listParticipants(ctx context.Context, tx *sql.Tx) ([]model.Participant, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, race_id, bib, first_name, last_name, gender, category, club, status, start_time
		 FROM participants ORDER BY race_id, id`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		var status string
		var start sql.NullInt64
		if err := rows.Scan(&p.ID, &p.RaceID, &p.Bib, &p.FirstName, &p.LastName, &p.Gender, &p.Category, &p.Club, &status, &start); err != nil {
			return nil, err
		}
		p.Status = model.ParticipantStatus(status)
		p.StartTime = int64Ptr(start)
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return participants, nil
}

func listPassages(ctx context.Context, tx *sql.Tx) ([]model.Passage, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, participant_id, bib, checkpoint_id, checkpoint_name, timestamp, net_time
		 FROM passages ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var passages []model.Passage
	for rows.Next() {
		var ps model.Passage
		if err := rows.Scan(&ps.ID, &ps.ParticipantID, &ps.Bib, &ps.CheckpointID, &ps.CheckpointName, &ps.Timestamp, &ps.NetTime); err != nil {
			return nil, err
		}
		passages = append(passages, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return passages, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}
