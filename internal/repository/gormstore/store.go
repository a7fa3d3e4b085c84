// Package gormstore implements the task and user stores on SQLite through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"taskmanager/internal/domain"
	"taskmanager/internal/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type userModel struct {
	ID        int64  `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	CreatedAt time.Time
}

func (userModel) TableName() string { return "users" }

type taskModel struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
	Status      string `gorm:"not null;index:idx_tasks_status_priority"`
	Priority    string `gorm:"not null;index:idx_tasks_status_priority"`
	AuthorID    int64  `gorm:"not null;index"`
}

func (taskModel) TableName() string { return "tasks" }

type executorModel struct {
	ID         int64 `gorm:"primaryKey"`
	TaskID     int64 `gorm:"not null;uniqueIndex:idx_executor_task"`
	ExecutorID int64 `gorm:"not null;uniqueIndex:idx_executor_task"`
}

func (executorModel) TableName() string { return "executors_tasks" }

type commentModel struct {
	ID       int64  `gorm:"primaryKey"`
	AuthorID int64  `gorm:"not null"`
	Text     string `gorm:"not null"`
	TaskID   int64  `gorm:"not null;index"`
}

func (commentModel) TableName() string { return "comments" }

// taskRow is a task joined with its author's email.
type taskRow struct {
	ID          int64
	Name        string
	Description string
	Status      string
	Priority    string
	AuthorID    int64
	AuthorEmail string
}

func (r taskRow) toDomain() domain.Task {
	return domain.Task{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Status:      domain.Status(r.Status),
		Priority:    domain.Priority(r.Priority),
		AuthorID:    r.AuthorID,
		AuthorEmail: r.AuthorEmail,
	}
}

type commentRow struct {
	ID          int64
	TaskID      int64
	AuthorID    int64
	AuthorEmail string
	Text        string
}

type txKey struct{}

type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at dsn and migrates
// the schema.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = "taskmanager.db"
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := gormlogger.New(
		slog.NewLogLogger(logger.Get().Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         dbLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows a single writer; transactions hold the only connection.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userModel{}, &taskModel{}, &executorModel{}, &commentModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return &Store{db: db}, nil
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// WithinTx runs fn in a gorm transaction. SQLite has no per-transaction
// read-only mode, so readOnly only documents intent here.
func (s *Store) WithinTx(ctx context.Context, readOnly bool, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Users

func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	if err := s.conn(ctx).Where("email = ?", email).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	return &domain.User{ID: m.ID, Email: m.Email, Password: m.Password, CreatedAt: m.CreatedAt}, nil
}

func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(&userModel{}).Where("email = ?", email).Count(&n).Error
	return n > 0, err
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) (bool, error) {
	m := userModel{Email: u.Email, Password: u.Password}
	res := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		u.ID, u.CreatedAt = m.ID, m.CreatedAt
		return true, nil
	}

	existing, err := s.FindByEmail(ctx, u.Email)
	if err != nil {
		return false, err
	}
	u.ID, u.CreatedAt = existing.ID, existing.CreatedAt
	return false, nil
}

// Tasks

func (s *Store) tasksQuery(ctx context.Context) *gorm.DB {
	return s.conn(ctx).Table("tasks AS t").
		Select("t.id, t.name, t.description, t.status, t.priority, t.author_id, u.email AS author_email").
		Joins("JOIN users u ON u.id = t.author_id")
}

func (s *Store) ExistsByName(ctx context.Context, name string) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(&taskModel{}).Where("name = ?", name).Count(&n).Error
	return n > 0, err
}

func (s *Store) FindByName(ctx context.Context, name string) (*domain.Task, error) {
	var rows []taskRow
	if err := s.tasksQuery(ctx).Where("t.name = ?", name).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrRecordNotFound
	}
	t := rows[0].toDomain()
	return &t, nil
}

func (s *Store) Create(ctx context.Context, t *domain.Task) error {
	m := taskModel{
		Name:        t.Name,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		AuthorID:    t.AuthorID,
	}
	if err := s.conn(ctx).Create(&m).Error; err != nil {
		if isDuplicate(err) {
			return domain.ErrRecordExists
		}
		return fmt.Errorf("create task: %w", err)
	}
	t.ID = m.ID
	return nil
}

func (s *Store) Update(ctx context.Context, t *domain.Task) error {
	res := s.conn(ctx).Model(&taskModel{}).Where("id = ?", t.ID).Updates(map[string]any{
		"description": t.Description,
		"status":      string(t.Status),
		"priority":    string(t.Priority),
	})
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// DeleteByName removes dependent rows explicitly; SQLite foreign keys are
// not enforced by default.
func (s *Store) DeleteByName(ctx context.Context, name string) (int64, error) {
	var deleted int64
	err := s.WithinTx(ctx, false, func(ctx context.Context) error {
		db := s.conn(ctx)
		var m taskModel
		if err := db.Where("name = ?", name).Take(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := db.Where("task_id = ?", m.ID).Delete(&commentModel{}).Error; err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if err := db.Where("task_id = ?", m.ID).Delete(&executorModel{}).Error; err != nil {
			return fmt.Errorf("delete executors: %w", err)
		}
		res := db.Delete(&taskModel{}, m.ID)
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

func (s *Store) AddExecutor(ctx context.Context, taskID, userID int64) error {
	m := executorModel{TaskID: taskID, ExecutorID: userID}
	return s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

func (s *Store) IsExecutor(ctx context.Context, taskID int64, email string) (bool, error) {
	var n int64
	err := s.conn(ctx).Table("executors_tasks AS et").
		Joins("JOIN users e ON e.id = et.executor_id").
		Where("et.task_id = ? AND e.email = ?", taskID, email).
		Count(&n).Error
	return n > 0, err
}

func (s *Store) ListExecutors(ctx context.Context, taskID int64) ([]domain.User, error) {
	var rows []userModel
	err := s.conn(ctx).Table("executors_tasks AS et").
		Select("u.id, u.email, u.created_at").
		Joins("JOIN users u ON u.id = et.executor_id").
		Where("et.task_id = ?", taskID).
		Order("et.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	res := make([]domain.User, 0, len(rows))
	for _, m := range rows {
		res = append(res, domain.User{ID: m.ID, Email: m.Email, CreatedAt: m.CreatedAt})
	}
	return res, nil
}

func (s *Store) AddComment(ctx context.Context, c *domain.Comment) error {
	m := commentModel{AuthorID: c.AuthorID, Text: c.Text, TaskID: c.TaskID}
	if err := s.conn(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	c.ID = m.ID
	return nil
}

func (s *Store) ListComments(ctx context.Context, taskID int64) ([]domain.Comment, error) {
	var rows []commentRow
	err := s.conn(ctx).Table("comments AS c").
		Select("c.id, c.task_id, c.author_id, u.email AS author_email, c.text").
		Joins("JOIN users u ON u.id = c.author_id").
		Where("c.task_id = ?", taskID).
		Order("c.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	res := make([]domain.Comment, 0, len(rows))
	for _, r := range rows {
		res = append(res, domain.Comment(r))
	}
	return res, nil
}

func (s *Store) Find(ctx context.Context, q domain.TaskQuery) ([]domain.Task, error) {
	db := s.tasksQuery(ctx).
		Where("t.status IN ?", domain.StatusStrings(q.Statuses)).
		Where("t.priority IN ?", domain.PriorityStrings(q.Priorities))

	if q.AuthorEmail != "" {
		db = db.Where("u.email = ?", q.AuthorEmail)
	}
	if q.ExecutorEmail != "" {
		db = db.Where(`EXISTS (
			SELECT 1 FROM executors_tasks et
			JOIN users e ON e.id = et.executor_id
			WHERE et.task_id = t.id AND e.email = ?)`, q.ExecutorEmail)
	}

	var rows []taskRow
	if err := db.Order("t.id").Offset(q.Offset).Limit(q.Limit).Scan(&rows).Error; err != nil {
		return nil, err
	}

	res := make([]domain.Task, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toDomain())
	}
	return res, nil
}
