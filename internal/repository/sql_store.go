package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/rkobroo/Ownrkoapi/internal/models"
)

const jobColumns = `id, url, format, quality, status, progress, download_speed, downloaded_size, eta,
	error_message, file_path, title, platform, thumbnail, duration, channel, views, created_at, updated_at`

// SQLStore 基于 database/sql 的任务存储 (sqlite / postgres)
type SQLStore struct {
	db      *sql.DB
	dialect string
	logger  *zap.Logger
	now     func() time.Time
}

// OpenSQLStore 打开数据库并执行迁移
func OpenSQLStore(driver, dsn string, logger *zap.Logger) (*SQLStore, error) {
	if driver == "sqlite" {
		dsn = withBusyTimeout(dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		// sqlite 单写者, 串行化连接
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(driver, db, dsn, logger); err != nil {
		db.Close()
		return nil, err
	}

	return NewSQLStore(db, driver, logger), nil
}

// NewSQLStore 使用已迁移的连接创建存储
func NewSQLStore(db *sql.DB, dialect string, logger *zap.Logger) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, logger: logger, now: time.Now}
}

func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

// rebind 将 ? 占位符转换为 postgres 的 $n
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.DownloadJob, error) {
	var (
		job              models.DownloadJob
		status           string
		created, updated int64
	)
	err := row.Scan(
		&job.ID, &job.URL, &job.Format, &job.Quality, &status, &job.Progress,
		&job.DownloadSpeed, &job.DownloadedSize, &job.ETA, &job.ErrorMessage, &job.FilePath,
		&job.Title, &job.Platform, &job.Thumbnail, &job.Duration, &job.Channel, &job.Views,
		&created, &updated,
	)
	if err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	job.CreatedAt = time.Unix(0, created).UTC()
	job.UpdatedAt = time.Unix(0, updated).UTC()
	return &job, nil
}

// Create 创建 pending 状态的任务
func (s *SQLStore) Create(ctx context.Context, req *models.CreateJobRequest) (*models.DownloadJob, error) {
	r := *req
	r.Normalize()

	now := s.now().UTC()
	job := &models.DownloadJob{
		ID:        uuid.NewString(),
		URL:       r.URL,
		Format:    r.Format,
		Quality:   r.Quality,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := s.rebind(`
		INSERT INTO download_jobs (id, url, format, quality, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		job.ID, job.URL, job.Format, job.Quality, string(job.Status), now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to create download job: %w", err)
	}
	return job, nil
}

// Get 获取任务
func (s *SQLStore) Get(ctx context.Context, id string) (*models.DownloadJob, error) {
	query := s.rebind(`SELECT ` + jobColumns + ` FROM download_jobs WHERE id = ?`)
	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download job: %w", err)
	}
	return job, nil
}

// List 创建时间倒序
func (s *SQLStore) List(ctx context.Context) ([]*models.DownloadJob, error) {
	query := `SELECT ` + jobColumns + ` FROM download_jobs ORDER BY created_at DESC, seq DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list download jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.DownloadJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate download jobs: %w", err)
	}
	return jobs, nil
}

// Update 在事务中读取、合并、写回
func (s *SQLStore) Update(ctx context.Context, id string, update *models.JobUpdate) (*models.DownloadJob, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	selectQuery := `SELECT ` + jobColumns + ` FROM download_jobs WHERE id = ?`
	if s.dialect == "postgres" {
		selectQuery += ` FOR UPDATE`
	}
	job, err := scanJob(tx.QueryRowContext(ctx, s.rebind(selectQuery), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load download job: %w", err)
	}

	update.Apply(job)
	job.UpdatedAt = s.now().UTC()

	updateQuery := s.rebind(`
		UPDATE download_jobs
		SET status = ?, progress = ?, download_speed = ?, downloaded_size = ?, eta = ?,
			error_message = ?, file_path = ?, title = ?, platform = ?, thumbnail = ?,
			duration = ?, channel = ?, views = ?, updated_at = ?
		WHERE id = ?
	`)
	_, err = tx.ExecContext(ctx, updateQuery,
		string(job.Status), job.Progress, job.DownloadSpeed, job.DownloadedSize, job.ETA,
		job.ErrorMessage, job.FilePath, job.Title, job.Platform, job.Thumbnail,
		job.Duration, job.Channel, job.Views, job.UpdatedAt.UnixNano(),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update download job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit download job update: %w", err)
	}
	return job, nil
}

// Delete 删除任务
func (s *SQLStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM download_jobs WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete download job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Ping 检查数据库连接
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 关闭连接池
func (s *SQLStore) Close() error {
	return s.db.Close()
}
