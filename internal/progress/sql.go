package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

// progressRow is the progress_records table. Completed lessons are stored
// as a JSON array so the schema is the same on sqlite and postgres.
type progressRow struct {
	LearnerID        string `gorm:"primaryKey;size:64"`
	CompletedLessons string `gorm:"type:text;not null"`
	Hearts           int    `gorm:"not null;default:0"`
	GorillaHearts    int    `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (progressRow) TableName() string { return "progress_records" }

// SQLStore keeps records in a relational database through gorm
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLStore opens a sqlite or postgres database and migrates the table
func OpenSQLStore(driver, dsn string, log *zap.Logger) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	if log == nil {
		log = zap.NewNop()
	}

	gormLog := gormLogger.New(
		zap.NewStdLog(log.Named("gorm")),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	return NewSQLStore(db)
}

// NewSQLStore wraps an open gorm handle
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&progressRow{}); err != nil {
		return nil, fmt.Errorf("migrate progress_records: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Load(ctx context.Context, learner string) (*Record, error) {
	var row progressRow
	err := s.db.WithContext(ctx).First(&row, "learner_id = ?", learner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select progress: %w", err)
	}

	rec := &Record{
		LearnerID:     row.LearnerID,
		Hearts:        row.Hearts,
		GorillaHearts: row.GorillaHearts,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if err := sonic.UnmarshalString(row.CompletedLessons, &rec.CompletedLessons); err != nil {
		return nil, fmt.Errorf("decode completed lessons: %w", err)
	}
	if rec.CompletedLessons == nil {
		rec.CompletedLessons = []int{}
	}
	return rec, nil
}

func (s *SQLStore) Save(ctx context.Context, rec *Record) error {
	lessons := rec.CompletedLessons
	if lessons == nil {
		lessons = []int{}
	}
	encoded, err := sonic.MarshalString(lessons)
	if err != nil {
		return fmt.Errorf("encode completed lessons: %w", err)
	}

	row := progressRow{
		LearnerID:        rec.LearnerID,
		CompletedLessons: encoded,
		Hearts:           rec.Hearts,
		GorillaHearts:    rec.GorillaHearts,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "learner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"completed_lessons", "hearts", "gorilla_hearts", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, learner string) error {
	if err := s.db.WithContext(ctx).Delete(&progressRow{}, "learner_id = ?", learner).Error; err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
