package store

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/types"
)

const (
	activeDesignIDKey    = "active_memory_design_id"
	activeDesignSchemaKey = "active_memory_schema_version"
)

// ActiveMemoryDesign returns the process-wide active memory backend
// designator. If none has ever been set, ok is false and the caller should
// fall back to the built-in default design.
func (s *Store) ActiveMemoryDesign() (v types.MemoryDesignVersion, ok bool, err error) {
	id, idOK, err := s.GetState(activeDesignIDKey)
	if err != nil {
		return v, false, err
	}
	if !idOK {
		return v, false, nil
	}
	ver := s.GetStateInt(activeDesignSchemaKey, 0)
	return types.MemoryDesignVersion{MemoryDesignID: id, MemorySchemaVersion: ver}, true, nil
}

// SetActiveMemoryDesign records the active designator. Per §8 invariant 4,
// callers must ensure at most one design is active at a time; this method
// only performs the write, the single-active-design rule is enforced by the
// memoryeval promotion workflow that calls it.
func (s *Store) SetActiveMemoryDesign(v types.MemoryDesignVersion) error {
	if err := s.PutState(activeDesignIDKey, v.MemoryDesignID); err != nil {
		return err
	}
	return s.PutState(activeDesignSchemaKey, v.MemorySchemaVersion)
}

// PromoteActiveMemoryDesign atomically swaps the active designator to v and
// records decision in the same transaction (§4.4.b: "the active designator
// is updated transactionally with the migration step"). Either both writes
// land or neither does, so a crash mid-promotion can never leave
// active_memory_design_id and active_memory_schema_version pointing at different designs,
// nor leave a promotion that took effect unrecorded.
func (s *Store) PromoteActiveMemoryDesign(v types.MemoryDesignVersion, decision types.PromotionDecision) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "begin promotion transaction", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	if _, err := tx.Exec(`
		INSERT INTO agent_state(key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, activeDesignIDKey, v.MemoryDesignID, now); err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "put active memory design id", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO agent_state(key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, activeDesignSchemaKey, strconv.Itoa(v.MemorySchemaVersion), now); err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "put active memory schema version", err)
	}

	approved := 0
	if decision.Approved {
		approved = 1
	}
	res, err := tx.Exec(`
		INSERT INTO memory_promotion_decisions(from_design_id, from_schema_version, to_design_id, to_schema_version, approved, reason, rollback_design_id, rollback_schema_version, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, decision.FromDesignID, decision.FromSchemaVersion, decision.ToDesignID, decision.ToSchemaVersion, approved,
		decision.Reason, decision.RollbackDesignID, decision.RollbackSchemaVersion, formatTime(decision.DecidedAt))
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "record promotion decision", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "get promotion decision id", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "commit promotion transaction", err)
	}
	return id, nil
}

// ArchiveMemoryDesign records that a design variant existed, for audit
// purposes. Archive rows are never deleted or updated.
func (s *Store) ArchiveMemoryDesign(e types.DesignArchiveEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO memory_design_archive(design_id, schema_version, created_at, note)
		VALUES (?, ?, ?, ?)
	`, e.DesignID, e.SchemaVer, formatTime(e.CreatedAt), e.Note)
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "archive memory design", err)
	}
	return nil
}

// ListArchivedMemoryDesigns returns every design variant ever archived,
// oldest first.
func (s *Store) ListArchivedMemoryDesigns() ([]types.DesignArchiveEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT id, design_id, schema_version, created_at, note FROM memory_design_archive ORDER BY created_at ASC`)
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "query memory design archive", err)
	}
	defer rows.Close()

	var out []types.DesignArchiveEntry
	for rows.Next() {
		var e types.DesignArchiveEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.DesignID, &e.SchemaVer, &createdAt, &e.Note); err != nil {
			return nil, apperr.WrapErr(apperr.Storage, "scan memory design archive row", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordMemoryEvalRun persists the outcome of an offline replay evaluation
// of a candidate memory design (§4.4.a).
func (s *Store) RecordMemoryEvalRun(r types.MemoryEvalReport) (int64, error) {
	metricsJSON, err := json.Marshal(r.Metrics)
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "marshal eval metrics", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`
		INSERT INTO memory_eval_runs(design_id, schema_version, metrics, sample_size, ran_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.DesignID, r.SchemaVer, string(metricsJSON), r.SampleSize, formatTime(r.RanAt))
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "record memory eval run", err)
	}
	return res.LastInsertId()
}

// RecentMemoryEvalRuns returns the n most recent eval runs for a given
// design, newest first.
func (s *Store) RecentMemoryEvalRuns(designID string, n int) ([]types.MemoryEvalReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`
		SELECT id, design_id, schema_version, metrics, sample_size, ran_at
		FROM memory_eval_runs WHERE design_id=? ORDER BY ran_at DESC LIMIT ?
	`, designID, n)
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "query memory eval runs", err)
	}
	defer rows.Close()

	var out []types.MemoryEvalReport
	for rows.Next() {
		var r types.MemoryEvalReport
		var metricsJSON, ranAt string
		if err := rows.Scan(&r.ID, &r.DesignID, &r.SchemaVer, &metricsJSON, &r.SampleSize, &ranAt); err != nil {
			return nil, apperr.WrapErr(apperr.Storage, "scan memory eval run", err)
		}
		if err := json.Unmarshal([]byte(metricsJSON), &r.Metrics); err != nil {
			return nil, err
		}
		if r.RanAt, err = parseTime(ranAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordPromotionDecision persists a gated transition of the active memory
// design. Per §8 invariant 3, RollbackDesignID must always be non-empty;
// this is enforced by the caller (internal/memoryeval), not here.
func (s *Store) RecordPromotionDecision(d types.PromotionDecision) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	approved := 0
	if d.Approved {
		approved = 1
	}
	res, err := s.db.Exec(`
		INSERT INTO memory_promotion_decisions(from_design_id, from_schema_version, to_design_id, to_schema_version, approved, reason, rollback_design_id, rollback_schema_version, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.FromDesignID, d.FromSchemaVersion, d.ToDesignID, d.ToSchemaVersion, approved, d.Reason,
		d.RollbackDesignID, d.RollbackSchemaVersion, formatTime(d.DecidedAt))
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "record promotion decision", err)
	}
	return res.LastInsertId()
}

// LastPromotionDecision returns the most recent promotion decision, used to
// resolve a rollback target. ok is false if none has ever been recorded.
func (s *Store) LastPromotionDecision() (d types.PromotionDecision, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`
		SELECT id, from_design_id, from_schema_version, to_design_id, to_schema_version, approved, reason, rollback_design_id, rollback_schema_version, decided_at
		FROM memory_promotion_decisions ORDER BY decided_at DESC, id DESC LIMIT 1
	`)
	var approvedInt int
	var decidedAt string
	if scanErr := row.Scan(&d.ID, &d.FromDesignID, &d.FromSchemaVersion, &d.ToDesignID, &d.ToSchemaVersion,
		&approvedInt, &d.Reason, &d.RollbackDesignID, &d.RollbackSchemaVersion, &decidedAt); scanErr != nil {
		return types.PromotionDecision{}, false, nil
	}
	d.Approved = approvedInt != 0
	if d.DecidedAt, err = parseTime(decidedAt); err != nil {
		return types.PromotionDecision{}, false, err
	}
	return d, true, nil
}
