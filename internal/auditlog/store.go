// Package auditlog persists cycle results to DuckDB for offline review.
// The engine writes to it fire-and-forget; nothing in the decision path
// ever reads it back.
package auditlog

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/kepler-lab/kepler-trading/internal/engine"
	"github.com/kepler-lab/kepler-trading/internal/logger"
	"github.com/kepler-lab/kepler-trading/internal/types"
	"github.com/kepler-lab/kepler-trading/pkg/errors"
)

// Store is a DuckDB-backed audit trail of processed cycles.
type Store struct {
	db     *sql.DB
	log    *logger.Logger
	sq     squirrel.StatementBuilderType
	closed bool
}

// RejectionRecord is one rejected cycle as read back from the store,
// including the raw model text that caused it.
type RejectionRecord struct {
	Asset       string
	Timestamp   time.Time
	Stage       string
	Code        int
	Reason      string
	RawResponse string
}

// NewStore opens a store at the given path, or in memory when the path
// is empty, and creates the tables.
func NewStore(path string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeAuditInitFailed,
			err, "failed to open audit database at %s", path)
	}

	store := &Store{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cycles (
			cycle_id TEXT PRIMARY KEY,
			asset TEXT,
			timestamp TIMESTAMP,
			stage TEXT,
			applied BOOLEAN,
			signal TEXT,
			reject_code INTEGER,
			reject_reason TEXT,
			raw_response TEXT,
			balance DOUBLE,
			equity DOUBLE,
			exposure DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAuditInitFailed,
			"failed to create cycles table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS closed_positions (
			position_id TEXT PRIMARY KEY,
			asset TEXT,
			side TEXT,
			notional_usd DOUBLE,
			leverage DOUBLE,
			entry_price DOUBLE,
			entry_time TIMESTAMP,
			exit_price DOUBLE,
			exit_time TIMESTAMP,
			realized_pnl DOUBLE,
			fee DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAuditInitFailed,
			"failed to create closed_positions table", err)
	}

	return nil
}

// Record writes one cycle result, plus a closed-position row when the
// cycle closed a position. Implements engine.Recorder.
func (s *Store) Record(result engine.CycleResult) error {
	if s.closed {
		return errors.New(errors.ErrCodeAuditStoreClosed, "store is closed")
	}

	signal := ""
	if decision, err := result.Decision.Take(); err == nil {
		signal = string(decision.Signal)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeAuditWriteFailed,
			"failed to begin transaction", err)
	}

	_, err = s.sq.
		Insert("cycles").
		Columns("cycle_id", "asset", "timestamp", "stage", "applied", "signal",
			"reject_code", "reject_reason", "raw_response",
			"balance", "equity", "exposure").
		Values(
			uuid.New().String(),
			result.Asset,
			result.Timestamp,
			string(result.Stage),
			result.Applied,
			signal,
			int(result.RejectCode),
			result.RejectReason,
			result.RawResponse,
			result.Account.Balance,
			result.Account.Equity,
			result.Account.Exposure,
		).
		RunWith(tx).
		Exec()
	if err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeAuditWriteFailed,
			"failed to insert cycle", err)
	}

	if position, takeErr := result.Position.Take(); takeErr == nil &&
		position.Status == types.PositionStatusClosed {
		_, err = s.sq.
			Insert("closed_positions").
			Columns("position_id", "asset", "side", "notional_usd", "leverage",
				"entry_price", "entry_time", "exit_price", "exit_time",
				"realized_pnl", "fee").
			Values(
				position.ID,
				position.Asset,
				string(position.Side),
				position.NotionalUSD,
				position.Leverage,
				position.EntryPrice,
				position.EntryTime,
				position.ExitPrice.TakeOr(0),
				position.ExitTime.TakeOr(time.Time{}),
				position.RealizedPnL.TakeOr(0),
				position.Fee,
			).
			RunWith(tx).
			Exec()
		if err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeAuditWriteFailed,
				"failed to insert closed position", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeAuditWriteFailed,
			"failed to commit transaction", err)
	}

	return nil
}

// RecentRejections returns the most recent rejected cycles, newest first.
func (s *Store) RecentRejections(limit int) ([]RejectionRecord, error) {
	if s.closed {
		return nil, errors.New(errors.ErrCodeAuditStoreClosed, "store is closed")
	}

	rows, err := s.sq.
		Select("asset", "timestamp", "stage", "reject_code", "reject_reason", "raw_response").
		From("cycles").
		Where(squirrel.Eq{"applied": false}).
		OrderBy("timestamp DESC").
		Limit(uint64(limit)).
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAuditQueryFailed,
			"failed to query rejections", err)
	}
	defer rows.Close()

	var records []RejectionRecord

	for rows.Next() {
		var record RejectionRecord
		if err := rows.Scan(&record.Asset, &record.Timestamp, &record.Stage,
			&record.Code, &record.Reason, &record.RawResponse); err != nil {
			return nil, errors.Wrap(errors.ErrCodeAuditQueryFailed,
				"failed to scan rejection", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeAuditQueryFailed,
			"failed to iterate rejections", err)
	}

	return records, nil
}

// ClosedPositionCount returns how many closed positions are recorded.
func (s *Store) ClosedPositionCount() (int, error) {
	if s.closed {
		return 0, errors.New(errors.ErrCodeAuditStoreClosed, "store is closed")
	}

	var count int

	err := s.sq.
		Select("COUNT(*)").
		From("closed_positions").
		RunWith(s.db).
		QueryRow().
		Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeAuditQueryFailed,
			"failed to count closed positions", err)
	}

	return count, nil
}

// Close releases the database. Further calls on the store fail.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	if err := s.db.Close(); err != nil {
		s.log.Warn("failed to close audit database", zap.Error(err))

		return errors.Wrap(errors.ErrCodeAuditWriteFailed,
			"failed to close audit database", err)
	}

	return nil
}
