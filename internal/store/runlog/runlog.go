// Package runlog persists finished run reports to SQLite so the HTTP API can
// serve run history across restarts.
package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"karli/internal/report"
)

// ErrRunNotFound is returned when no run exists with the requested id.
var ErrRunNotFound = errors.New("run not found")

type runModel struct {
	ID          string    `gorm:"column:id;primaryKey;size:36"`
	StartedAt   time.Time `gorm:"column:started_at;index"`
	FinishedAt  time.Time `gorm:"column:finished_at"`
	Status      string    `gorm:"column:status;size:16;index"`
	AbortReason string    `gorm:"column:abort_reason"`

	Actions datatypes.JSON `gorm:"column:actions;type:TEXT"`
	Skips   datatypes.JSON `gorm:"column:skips;type:TEXT"`
	Users   datatypes.JSON `gorm:"column:users;type:TEXT"`

	CreatedAt time.Time `gorm:"column:created_at"`
}

func (runModel) TableName() string { return "pipeline_runs" }

// Store is the SQLite-backed run report log.
type Store struct {
	db *gorm.DB
}

// New opens (or creates) the run log database at path.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("runlog: database path must not be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}); err != nil {
		return nil, fmt.Errorf("runlog: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun writes one finalized run report. Saving the same run id again
// overwrites the earlier row.
func (s *Store) SaveRun(ctx context.Context, r *report.RunReport) error {
	if r == nil {
		return errors.New("runlog: report cannot be nil")
	}
	m, err := toModel(r)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(m).Error
}

// GetRun loads one run report by id.
func (s *Store) GetRun(ctx context.Context, id string) (*report.RunReport, error) {
	var m runModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromModel(&m)
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]report.RunReport, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []runModel
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]report.RunReport, 0, len(models))
	for i := range models {
		r, err := fromModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// UserHistory returns the user's outcomes across the most recent runs,
// newest first. Runs the user did not appear in are skipped.
func (s *Store) UserHistory(ctx context.Context, username string, limit int) ([]UserRunOutcome, error) {
	runs, err := s.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	var out []UserRunOutcome
	for _, run := range runs {
		for _, u := range run.Users {
			if u.Username == username {
				out = append(out, UserRunOutcome{
					RunID:     run.ID,
					StartedAt: run.StartedAt,
					Outcome:   u,
				})
				break
			}
		}
	}
	return out, nil
}

// UserRunOutcome is one user's outcome in one recorded run.
type UserRunOutcome struct {
	RunID     string             `json:"run_id"`
	StartedAt time.Time          `json:"started_at"`
	Outcome   report.UserOutcome `json:"outcome"`
}

func toModel(r *report.RunReport) (*runModel, error) {
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return nil, fmt.Errorf("runlog: encoding actions: %w", err)
	}
	skips, err := json.Marshal(r.Skips)
	if err != nil {
		return nil, fmt.Errorf("runlog: encoding skips: %w", err)
	}
	users, err := json.Marshal(r.Users)
	if err != nil {
		return nil, fmt.Errorf("runlog: encoding users: %w", err)
	}
	return &runModel{
		ID:          r.ID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Status:      r.Status,
		AbortReason: r.AbortReason,
		Actions:     datatypes.JSON(actions),
		Skips:       datatypes.JSON(skips),
		Users:       datatypes.JSON(users),
	}, nil
}

func fromModel(m *runModel) (*report.RunReport, error) {
	r := &report.RunReport{
		ID:          m.ID,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
		Status:      m.Status,
		AbortReason: m.AbortReason,
	}
	if len(m.Actions) > 0 {
		if err := json.Unmarshal(m.Actions, &r.Actions); err != nil {
			return nil, fmt.Errorf("runlog: decoding actions for %s: %w", m.ID, err)
		}
	}
	if len(m.Skips) > 0 {
		if err := json.Unmarshal(m.Skips, &r.Skips); err != nil {
			return nil, fmt.Errorf("runlog: decoding skips for %s: %w", m.ID, err)
		}
	}
	if len(m.Users) > 0 {
		if err := json.Unmarshal(m.Users, &r.Users); err != nil {
			return nil, fmt.Errorf("runlog: decoding users for %s: %w", m.ID, err)
		}
	}
	return r, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
