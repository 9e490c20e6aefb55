package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/softai/coursecore/internal/domain/model"
	"github.com/softai/coursecore/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	sqlStateUniqueViolation = "23505"
	// certificatePairIndex is the (user_id, course_id) unique index name.
	certificatePairIndex = "certificates_user_id_course_id_key"
)

type quizRow struct {
	ID               string `gorm:"column:id;primaryKey"`
	PassScorePercent int    `gorm:"column:pass_score_percent"`
}

func (quizRow) TableName() string { return "quizzes" }

type questionRow struct {
	ID           string `gorm:"column:id;primaryKey"`
	QuizID       string `gorm:"column:quiz_id"`
	Order        int    `gorm:"column:order"`
	CorrectIndex int    `gorm:"column:correct_index"`
	Points       int    `gorm:"column:points"`
	Explanation  string `gorm:"column:explanation"`
}

func (questionRow) TableName() string { return "questions" }

type certificateRow struct {
	ID            string    `gorm:"column:id;type:uuid;primaryKey"`
	UserID        string    `gorm:"column:user_id;type:uuid;not null;uniqueIndex:certificates_user_id_course_id_key,priority:1"`
	CourseID      string    `gorm:"column:course_id;type:uuid;not null;uniqueIndex:certificates_user_id_course_id_key,priority:2"`
	CertificateID string    `gorm:"column:certificate_id;not null"`
	IssueDate     time.Time `gorm:"column:issue_date"`
	PDFURL        *string   `gorm:"column:pdf_url"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (certificateRow) TableName() string { return "certificates" }

func (r certificateRow) toModel() model.Certificate {
	c := model.Certificate{
		ID:        r.ID,
		UserID:    r.UserID,
		CourseID:  r.CourseID,
		Code:      r.CertificateID,
		IssueDate: r.IssueDate,
		CreatedAt: r.CreatedAt,
	}
	if r.PDFURL != nil {
		c.PDFURL = *r.PDFURL
	}
	return c
}

// PostgresConfig configures the relational gateway.
type PostgresConfig struct {
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	SlowThreshold time.Duration
}

// Postgres is the relational store gateway backed by GORM.
type Postgres struct {
	db  *gorm.DB
	log logger.Logger
}

// OpenPostgres connects to the database and verifies the connection.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, log logger.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: newGormLogger(log, cfg.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return NewPostgres(db, log), nil
}

// NewPostgres wraps an existing GORM handle.
func NewPostgres(db *gorm.DB, log logger.Logger) *Postgres {
	return &Postgres{db: db, log: log}
}

// EnsureUniqueIndex creates the (user_id, course_id) unique index on
// certificates when it is missing.
func (p *Postgres) EnsureUniqueIndex(ctx context.Context) error {
	m := p.db.WithContext(ctx).Migrator()
	if m.HasIndex(&certificateRow{}, certificatePairIndex) {
		return nil
	}
	if err := m.CreateIndex(&certificateRow{}, certificatePairIndex); err != nil {
		return fmt.Errorf("create %s: %w", certificatePairIndex, err)
	}
	p.log.Info(ctx, "created certificate uniqueness index", logger.String("index", certificatePairIndex))
	return nil
}

func (p *Postgres) GetQuiz(ctx context.Context, quizID string) (q model.Quiz, err error) {
	defer func(start time.Time) { observe(opGetQuiz, start, err) }(time.Now())

	var row quizRow
	err = p.db.WithContext(ctx).Where("id = ?", quizID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Quiz{}, ErrNotFound
	}
	if err != nil {
		return model.Quiz{}, fmt.Errorf("get quiz %s: %w", quizID, err)
	}
	return model.Quiz{ID: row.ID, PassScorePercent: row.PassScorePercent}, nil
}

func (p *Postgres) ListQuestions(ctx context.Context, quizID string) (qs []model.Question, err error) {
	defer func(start time.Time) { observe(opListQuestions, start, err) }(time.Now())

	var rows []questionRow
	err = p.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}}).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list questions for %s: %w", quizID, err)
	}

	qs = make([]model.Question, 0, len(rows))
	for _, r := range rows {
		qs = append(qs, model.Question{
			ID:           r.ID,
			QuizID:       r.QuizID,
			Order:        r.Order,
			CorrectIndex: r.CorrectIndex,
			Points:       r.Points,
			Explanation:  r.Explanation,
		})
	}
	return qs, nil
}

func (p *Postgres) FindCertificate(ctx context.Context, userID, courseID string) (c model.Certificate, err error) {
	defer func(start time.Time) { observe(opFindCertificate, start, err) }(time.Now())

	var row certificateRow
	err = p.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Certificate{}, ErrNotFound
	}
	if err != nil {
		return model.Certificate{}, fmt.Errorf("find certificate: %w", err)
	}
	return row.toModel(), nil
}

func (p *Postgres) InsertCertificate(ctx context.Context, cert model.Certificate) (c model.Certificate, err error) {
	defer func(start time.Time) {
		if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrCodeCollision) {
			observe(opInsertCert, start, nil)
			return
		}
		observe(opInsertCert, start, err)
	}(time.Now())

	row := certificateRow{
		ID:            cert.ID,
		UserID:        cert.UserID,
		CourseID:      cert.CourseID,
		CertificateID: cert.Code,
		IssueDate:     cert.IssueDate,
	}
	if cert.PDFURL != "" {
		row.PDFURL = &cert.PDFURL
	}

	err = p.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		return model.Certificate{}, classifyInsertError(err)
	}
	return row.toModel(), nil
}

func (p *Postgres) IsCourseComplete(ctx context.Context, userID, courseID string) (ok bool, err error) {
	defer func(start time.Time) { observe(opCompletion, start, err) }(time.Now())

	var done sql.NullBool
	err = p.db.WithContext(ctx).
		Raw("SELECT check_course_completion(?, ?)", userID, courseID).
		Row().Scan(&done)
	if err != nil {
		return false, fmt.Errorf("check course completion: %w", err)
	}
	return done.Valid && done.Bool, nil
}

func (p *Postgres) CourseProgress(ctx context.Context, userID, courseID string) (pct int, err error) {
	defer func(start time.Time) { observe(opProgress, start, err) }(time.Now())

	var progress sql.NullFloat64
	err = p.db.WithContext(ctx).
		Raw("SELECT get_course_progress(?, ?)", userID, courseID).
		Row().Scan(&progress)
	if err != nil {
		return 0, fmt.Errorf("get course progress: %w", err)
	}
	if !progress.Valid {
		return 0, nil
	}
	return clampPercent(int(math.Round(progress.Float64))), nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// classifyInsertError maps unique violations on certificates to ErrDuplicate
// or ErrCodeCollision depending on the violated constraint.
func classifyInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "certificate_id") {
			return fmt.Errorf("%w: %s", ErrCodeCollision, pgErr.ConstraintName)
		}
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return fmt.Errorf("insert certificate: %w", err)
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
