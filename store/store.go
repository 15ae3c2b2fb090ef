// Package store persists evaluation records in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/ngailapdi/isomesh/evaluate"
	"github.com/ngailapdi/isomesh/internal/monitoring"
	"github.com/ngailapdi/isomesh/meshgen"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	record_id            TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	created_at           TEXT NOT NULL,
	mode                 TEXT NOT NULL,
	iou                  REAL,
	sign_accuracy        REAL,
	chamfer              REAL,
	completeness         REAL,
	accuracy             REAL,
	normals_completeness REAL,
	normals_accuracy     REAL,
	normals              REAL,
	fscore_json          TEXT NOT NULL,
	precision_json       TEXT NOT NULL,
	recall_json          TEXT NOT NULL,
	levels               INTEGER NOT NULL,
	evaluations          INTEGER NOT NULL,
	oracle_calls         INTEGER NOT NULL,
	triangles            INTEGER NOT NULL,
	elapsed_ns           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS records_name ON records(name, created_at);
`

const columns = `record_id, name, created_at, mode, iou, sign_accuracy, chamfer,
	completeness, accuracy, normals_completeness, normals_accuracy, normals,
	fscore_json, precision_json, recall_json,
	levels, evaluations, oracle_calls, triangles, elapsed_ns`

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get for unknown record IDs.
var ErrNotFound = errors.New("record not found")

// Entry is a stored evaluation.
type Entry struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Record    evaluate.Record
	Stats     meshgen.Stats
}

// Store manages evaluation records in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pragma")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores rec under a new ID. name groups records of one experiment.
func (s *Store) Save(name string, rec evaluate.Record, stats meshgen.Stats) (Entry, error) {
	e := Entry{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Record:    rec,
		Stats:     stats,
	}
	fscore, err := json.Marshal(encodeFloats(rec.FScore[:]))
	if err != nil {
		return Entry{}, errors.Wrap(err, "marshal fscore")
	}
	precision, err := json.Marshal(encodeFloats(rec.Precision[:]))
	if err != nil {
		return Entry{}, errors.Wrap(err, "marshal precision")
	}
	recall, err := json.Marshal(encodeFloats(rec.Recall[:]))
	if err != nil {
		return Entry{}, errors.Wrap(err, "marshal recall")
	}
	_, err = s.db.Exec(
		`INSERT INTO records (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.CreatedAt.Format(timeLayout), rec.Mode.String(),
		nullable(rec.IoU), nullable(rec.SignAccuracy), nullable(rec.Chamfer),
		nullable(rec.Completeness), nullable(rec.Accuracy),
		nullable(rec.NormalsCompleteness), nullable(rec.NormalsAccuracy), nullable(rec.Normals),
		string(fscore), string(precision), string(recall),
		stats.Levels, stats.Evaluations, stats.OracleCalls, stats.Triangles, int64(stats.Elapsed),
	)
	if err != nil {
		return Entry{}, errors.Wrap(err, "insert record")
	}
	monitoring.Logf("store: saved record %s for %q", e.ID, name)
	return e, nil
}

// Get returns the record with the given ID.
func (s *Store) Get(id string) (Entry, error) {
	row := s.db.QueryRow(`SELECT `+columns+` FROM records WHERE record_id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return e, err
}

// List returns the records saved under name, oldest first. An empty name
// lists every record.
func (s *Store) List(name string) ([]Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if name == "" {
		rows, err = s.db.Query(`SELECT ` + columns + ` FROM records ORDER BY created_at, rowid`)
	} else {
		rows, err = s.db.Query(`SELECT `+columns+` FROM records WHERE name = ? ORDER BY created_at, rowid`, name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query records")
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterate records")
}

// Summary returns the mean record over every record saved under name and the
// number of records averaged.
func (s *Store) Summary(name string) (evaluate.Record, int, error) {
	entries, err := s.List(name)
	if err != nil {
		return evaluate.Record{}, 0, err
	}
	recs := make([]evaluate.Record, len(entries))
	for i, e := range entries {
		recs[i] = e.Record
	}
	return evaluate.Mean(recs), len(recs), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e                         Entry
		created, mode             string
		fscore, precision, recall string
		elapsed                   int64
		metrics                   [8]sql.NullFloat64
	)
	err := sc.Scan(&e.ID, &e.Name, &created, &mode,
		&metrics[0], &metrics[1], &metrics[2], &metrics[3],
		&metrics[4], &metrics[5], &metrics[6], &metrics[7],
		&fscore, &precision, &recall,
		&e.Stats.Levels, &e.Stats.Evaluations, &e.Stats.OracleCalls, &e.Stats.Triangles, &elapsed)
	if err != nil {
		return Entry{}, err
	}
	if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Entry{}, errors.Wrapf(err, "record %s created_at", e.ID)
	}
	e.Stats.Elapsed = time.Duration(elapsed)
	r := &e.Record
	if r.Mode, err = evaluate.ParseMode(mode); err != nil {
		return Entry{}, errors.Wrapf(err, "record %s", e.ID)
	}
	for i, dst := range []*float64{
		&r.IoU, &r.SignAccuracy, &r.Chamfer, &r.Completeness, &r.Accuracy,
		&r.NormalsCompleteness, &r.NormalsAccuracy, &r.Normals,
	} {
		*dst = math.NaN()
		if metrics[i].Valid {
			*dst = metrics[i].Float64
		}
	}
	for _, col := range []struct {
		raw string
		dst []float64
	}{{fscore, r.FScore[:]}, {precision, r.Precision[:]}, {recall, r.Recall[:]}} {
		var vals []*float64
		if err := json.Unmarshal([]byte(col.raw), &vals); err != nil {
			return Entry{}, errors.Wrapf(err, "record %s", e.ID)
		}
		if len(vals) != len(col.dst) {
			return Entry{}, errors.Errorf("record %s: %d threshold values, want %d", e.ID, len(vals), len(col.dst))
		}
		for i, v := range vals {
			col.dst[i] = math.NaN()
			if v != nil {
				col.dst[i] = *v
			}
		}
	}
	return e, nil
}

// nullable maps NaN, which SQLite cannot store, to NULL.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

// encodeFloats maps NaN, which JSON cannot encode, to null.
func encodeFloats(vals []float64) []*float64 {
	out := make([]*float64, len(vals))
	for i := range vals {
		if !math.IsNaN(vals[i]) {
			out[i] = &vals[i]
		}
	}
	return out
}
