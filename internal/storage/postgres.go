// Package storage 将运行结果保存到 PostgreSQL
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/lib/pq"

	"github.com/iWorld-y/azure_radar/internal/config"
	"github.com/iWorld-y/azure_radar/internal/model"
)

// ErrRunNotFound 运行记录不存在
var ErrRunNotFound = errors.New("run not found")

// RunSummary 运行记录列表项
type RunSummary struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	CategoryCount  int       `json:"category_count"`
}

// StoredCategory 已保存的类别结果
type StoredCategory struct {
	Name          string          `json:"name"`
	Kind          string          `json:"kind"`
	Summary       string          `json:"summary"`
	ResourceCount int             `json:"resource_count"`
	Resources     json.RawMessage `json:"resources,omitempty"`
}

// StoredRun 完整的运行记录
type StoredRun struct {
	RunSummary
	ExecutiveKind    string           `json:"executive_kind"`
	ExecutiveSummary string           `json:"executive_summary"`
	Markdown         string           `json:"markdown"`
	Categories       []StoredCategory `json:"categories"`
}

type Storage struct {
	db *sql.DB
}

// DSN 根据配置生成连接串
func DSN(cfg config.DBConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
}

func NewStorage(cfg config.DBConfig) (*Storage, error) {
	return Open("postgres", DSN(cfg))
}

// Open 使用指定驱动和连接串打开数据库并初始化表结构
func Open(driver, dsn string) (*Storage, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS summary_runs (
			id TEXT PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			executive_kind TEXT,
			executive_summary TEXT,
			markdown TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS category_outcomes (
			id SERIAL PRIMARY KEY,
			run_id TEXT REFERENCES summary_runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			category_name TEXT NOT NULL,
			kind TEXT NOT NULL,
			summary TEXT,
			resource_count INTEGER NOT NULL DEFAULT 0,
			resources TEXT
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun 在一个事务中保存运行记录、报告和各类别结果
func (s *Storage) SaveRun(ctx context.Context, result *model.RunResult, markdown string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO summary_runs (id, subscription_id, started_at, finished_at, executive_kind, executive_summary, markdown)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		result.ID, result.SubscriptionID, result.StartedAt.UTC(), result.FinishedAt.UTC(),
		result.ExecutiveSummary.Kind.String(), sanitize(result.ExecutiveSummary.Text), sanitize(markdown))
	if err != nil {
		return rollback(tx, fmt.Errorf("insert run: %w", err))
	}

	for i, o := range result.Outcomes {
		resources, err := json.Marshal(o.Resources)
		if err != nil {
			return rollback(tx, fmt.Errorf("marshal resources [%s]: %w", o.CategoryName, err))
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO category_outcomes (run_id, position, category_name, kind, summary, resource_count, resources)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			result.ID, i, o.CategoryName, o.Summary.Kind.String(), sanitize(o.Summary.Text), len(o.Resources), sanitize(string(resources)))
		if err != nil {
			return rollback(tx, fmt.Errorf("insert category [%s]: %w", o.CategoryName, err))
		}
	}

	return tx.Commit()
}

// ListRuns 按时间倒序列出运行记录
func (s *Storage) ListRuns(ctx context.Context, page, pageSize int) ([]RunSummary, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summary_runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.subscription_id, r.started_at, r.finished_at,
			(SELECT COUNT(*) FROM category_outcomes c WHERE c.run_id = r.id)
		FROM summary_runs r
		ORDER BY r.started_at DESC
		LIMIT $1 OFFSET $2`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := make([]RunSummary, 0, pageSize)
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.SubscriptionID, &r.StartedAt, &r.FinishedAt, &r.CategoryCount); err != nil {
			return nil, 0, err
		}
		list = append(list, r)
	}
	return list, total, rows.Err()
}

// GetRun 读取一次运行的完整记录
func (s *Storage) GetRun(ctx context.Context, id string) (*StoredRun, error) {
	run := &StoredRun{}
	var execKind, execSummary, markdown sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subscription_id, started_at, finished_at, executive_kind, executive_summary, markdown
		FROM summary_runs WHERE id = $1`, id).
		Scan(&run.ID, &run.SubscriptionID, &run.StartedAt, &run.FinishedAt, &execKind, &execSummary, &markdown)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	run.ExecutiveKind = execKind.String
	run.ExecutiveSummary = execSummary.String
	run.Markdown = markdown.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT category_name, kind, summary, resource_count, resources
		FROM category_outcomes WHERE run_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	run.Categories = []StoredCategory{}
	for rows.Next() {
		var c StoredCategory
		var summary, resources sql.NullString
		if err := rows.Scan(&c.Name, &c.Kind, &summary, &c.ResourceCount, &resources); err != nil {
			return nil, err
		}
		c.Summary = summary.String
		if resources.Valid && resources.String != "" {
			c.Resources = json.RawMessage(resources.String)
		}
		run.Categories = append(run.Categories, c)
	}
	run.CategoryCount = len(run.Categories)
	return run, rows.Err()
}

func rollback(tx *sql.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: %v", err, rerr)
	}
	return err
}

// sanitize 移除无效的 UTF-8 字符和 NULL 字节，PostgreSQL 文本字段不支持
func sanitize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return removeNullBytes(s)
}

func removeNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
