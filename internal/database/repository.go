package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/osspulse/oss-pulse/internal/engine"
)

const dayFormat = "2006-01-02"

// Repository handles snapshot and candidate persistence.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// UpsertHealthSnapshot stores a snapshot under its (repo, dt) key. A second
// write for the same day replaces the first.
func (r *Repository) UpsertHealthSnapshot(snapshot *engine.HealthSnapshot) error {
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	metricsJSON, err := json.Marshal(snapshot.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot metrics: %w", err)
	}

	stmt, err := r.db.GetPreparedStatement("upsert_snapshot")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var health sql.NullFloat64
	if snapshot.ScoreHealth != nil {
		health = sql.NullFloat64{Float64: *snapshot.ScoreHealth, Valid: true}
	}

	_, err = stmt.Exec(
		uuid.New().String(),
		snapshot.Repo,
		snapshot.Dt.Format(dayFormat),
		health,
		string(snapshotJSON),
		string(metricsJSON),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	return nil
}

// GetHealthSnapshot fetches one repo-day snapshot. Returns sql.ErrNoRows
// when the day has no snapshot.
func (r *Repository) GetHealthSnapshot(repo string, dt time.Time) (*engine.HealthSnapshot, error) {
	stmt, err := r.db.GetPreparedStatement("get_snapshot")
	if err != nil {
		return nil, err
	}

	var payload string
	if err := stmt.QueryRow(repo, dt.UTC().Format(dayFormat)).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	var snapshot engine.HealthSnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &snapshot, nil
}

// ListSeriesRows returns a repo's metric rows in [from, to], ordered by date,
// in the shape the composite normalizer consumes.
func (r *Repository) ListSeriesRows(repo string, from, to time.Time) ([]engine.SeriesRow, error) {
	stmt, err := r.db.GetPreparedStatement("list_series")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(repo, from.UTC().Format(dayFormat), to.UTC().Format(dayFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var series []engine.SeriesRow
	for rows.Next() {
		// dt is a DATE column, so the driver hands it back as time.Time.
		var dt time.Time
		var metricsJSON string
		if err := rows.Scan(&dt, &metricsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}

		// The stored metrics object is flat apart from the governance and
		// scorecard blocks; only the numeric keys feed the series.
		var loose map[string]json.RawMessage
		if err := json.Unmarshal([]byte(metricsJSON), &loose); err != nil {
			return nil, fmt.Errorf("failed to decode series metrics: %w", err)
		}
		values := make(map[string]*float64, len(loose))
		for k, raw := range loose {
			var v *float64
			if json.Unmarshal(raw, &v) == nil {
				values[k] = v
			}
		}

		series = append(series, engine.SeriesRow{Dt: engine.NewDate(dt), Values: values})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate series rows: %w", err)
	}

	return series, nil
}

// UpsertCandidate stores or refreshes one newcomer candidate repo.
func (r *Repository) UpsertCandidate(cand *engine.Candidate) error {
	payload, err := json.Marshal(cand)
	if err != nil {
		return fmt.Errorf("failed to encode candidate: %w", err)
	}

	stmt, err := r.db.GetPreparedStatement("upsert_candidate")
	if err != nil {
		return err
	}

	if _, err := stmt.Exec(cand.Profile.Repo, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert candidate: %w", err)
	}

	return nil
}

// ListCandidates returns every stored candidate repo, ordered by name.
func (r *Repository) ListCandidates() ([]engine.Candidate, error) {
	stmt, err := r.db.GetPreparedStatement("list_candidates")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var cands []engine.Candidate
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}

		var cand engine.Candidate
		if err := json.Unmarshal([]byte(payload), &cand); err != nil {
			return nil, fmt.Errorf("failed to decode candidate: %w", err)
		}
		cands = append(cands, cand)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidate rows: %w", err)
	}

	return cands, nil
}
