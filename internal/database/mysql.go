package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"loto-bot/internal/config"
	"loto-bot/internal/logger"

	"github.com/go-sql-driver/mysql"
)

// 批量写入和分页读取的大小
const (
	insertBatchSize = 500
	readPageSize    = 1000
)

// ErrDrawNotFound 开奖记录不存在
var ErrDrawNotFound = errors.New("draw not found")

// ErrDuplicateDraw 同一日期的开奖已存在
var ErrDuplicateDraw = errors.New("draw already exists for this date")

// mysqlDuplicateEntry 唯一键冲突错误码
const mysqlDuplicateEntry = 1062

// MySQLDB MySQL数据库客户端
type MySQLDB struct {
	db *sql.DB
}

// NewMySQLDB 创建新的MySQL数据库连接
func NewMySQLDB(cfg *config.Database) (*MySQLDB, error) {
	db, err := sql.Open("mysql", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	mysqlDB := &MySQLDB{db: db}
	if err := mysqlDB.createTablesIfNotExists(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return mysqlDB, nil
}

// Close 关闭数据库连接
func (m *MySQLDB) Close() error {
	return m.db.Close()
}

// Ping 检查连接
func (m *MySQLDB) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// SaveDraws 批量保存开奖数据，同一日期已存在的记录被忽略，返回新增条数
func (m *MySQLDB) SaveDraws(ctx context.Context, draws []Draw) (int, error) {
	inserted := 0
	for start := 0; start < len(draws); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(draws) {
			end = len(draws)
		}
		batch := draws[start:end]

		placeholders := make([]string, len(batch))
		args := make([]interface{}, 0, len(batch)*5)
		for i, d := range batch {
			placeholders[i] = "(?, ?, ?, ?, ?)"
			args = append(args, d.ID, d.Date, FormatNumbers(d.Numbers), d.SpecialNumber, nullString(d.Day))
		}

		query := `INSERT IGNORE INTO draws (id, draw_date, numbers, special_number, day) VALUES ` +
			strings.Join(placeholders, ", ")

		result, err := m.db.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("failed to save draws batch %d: %w", start/insertBatchSize+1, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(affected)
		logger.Debugf("Saved draws batch %d (%d rows, %d new)", start/insertBatchSize+1, len(batch), affected)
	}

	return inserted, nil
}

// AddDraw 保存单条开奖数据
func (m *MySQLDB) AddDraw(ctx context.Context, draw *Draw) error {
	query := `INSERT INTO draws (id, draw_date, numbers, special_number, day) VALUES (?, ?, ?, ?, ?)`
	_, err := m.db.ExecContext(ctx, query, draw.ID, draw.Date, FormatNumbers(draw.Numbers), draw.SpecialNumber, nullString(draw.Day))
	if isDuplicateEntry(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateDraw, draw.Date)
	}
	if err != nil {
		return fmt.Errorf("failed to add draw: %w", err)
	}
	logger.Debugf("Added draw %s (%s)", draw.ID, draw.Date)
	return nil
}

// UpdateDraw 更新开奖数据
func (m *MySQLDB) UpdateDraw(ctx context.Context, draw *Draw) error {
	query := `UPDATE draws SET draw_date = ?, numbers = ?, special_number = ?, day = ? WHERE id = ?`
	result, err := m.db.ExecContext(ctx, query, draw.Date, FormatNumbers(draw.Numbers), draw.SpecialNumber, nullString(draw.Day), draw.ID)
	if isDuplicateEntry(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateDraw, draw.Date)
	}
	if err != nil {
		return fmt.Errorf("failed to update draw: %w", err)
	}
	return requireAffected(result, draw.ID)
}

// DeleteDraw 删除开奖数据
func (m *MySQLDB) DeleteDraw(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM draws WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete draw: %w", err)
	}
	return requireAffected(result, id)
}

// GetDrawByID 根据ID获取开奖数据
func (m *MySQLDB) GetDrawByID(ctx context.Context, id string) (*Draw, error) {
	query := `SELECT id, draw_date, numbers, special_number, day FROM draws WHERE id = ?`
	draw, err := scanDraw(m.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDrawNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw by id: %w", err)
	}
	return draw, nil
}

// GetLatestDraws 获取最新的开奖数据（按日期倒序）
func (m *MySQLDB) GetLatestDraws(ctx context.Context, limit int) ([]Draw, error) {
	query := `SELECT id, draw_date, numbers, special_number, day
			  FROM draws
			  ORDER BY draw_date DESC
			  LIMIT ?`

	rows, err := m.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest draws: %w", err)
	}
	defer rows.Close()

	return collectDraws(rows)
}

// GetAllDraws 分页读取全部开奖数据（按日期倒序）
func (m *MySQLDB) GetAllDraws(ctx context.Context) ([]Draw, error) {
	query := `SELECT id, draw_date, numbers, special_number, day
			  FROM draws
			  ORDER BY draw_date DESC
			  LIMIT ? OFFSET ?`

	var all []Draw
	for page := 0; ; page++ {
		rows, err := m.db.QueryContext(ctx, query, readPageSize, page*readPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to query draws page %d: %w", page+1, err)
		}
		draws, err := collectDraws(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}

		all = append(all, draws...)
		if len(draws) < readPageSize {
			break
		}
	}

	logger.Debugf("Loaded %d draws from database", len(all))
	return all, nil
}

// CountDraws 统计开奖数据条数
func (m *MySQLDB) CountDraws(ctx context.Context) (int, error) {
	var count int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM draws`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count draws: %w", err)
	}
	return count, nil
}

// SavePredictions 批量保存预测记录
func (m *MySQLDB) SavePredictions(ctx context.Context, predictions []Prediction) error {
	if len(predictions) == 0 {
		logger.Warn("No predictions to save")
		return nil
	}

	for start := 0; start < len(predictions); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(predictions) {
			end = len(predictions)
		}
		batch := predictions[start:end]

		placeholders := make([]string, len(batch))
		args := make([]interface{}, 0, len(batch)*5)
		for i, p := range batch {
			status := p.Status
			if status == "" {
				status = StatusPending
			}
			placeholders[i] = "(?, ?, ?, ?, ?)"
			args = append(args, FormatNumbers(p.Numbers), p.SpecialNumber, p.Confidence, p.Method, string(status))
		}

		query := `INSERT INTO predictions (numbers, special_number, confidence, method, status) VALUES ` +
			strings.Join(placeholders, ", ")

		if _, err := m.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to save predictions batch %d: %w", start/insertBatchSize+1, err)
		}
	}

	logger.Debugf("Saved %d predictions", len(predictions))
	return nil
}

// GetPredictions 分页读取预测记录（按创建时间倒序），limit<=0表示不限制
func (m *MySQLDB) GetPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	query := `SELECT id, numbers, special_number, confidence, method, status, created_at
			  FROM predictions
			  ORDER BY created_at DESC, id DESC
			  LIMIT ? OFFSET ?`

	var all []Prediction
	for page := 0; ; page++ {
		pageSize := readPageSize
		if limit > 0 && limit-len(all) < pageSize {
			pageSize = limit - len(all)
		}

		rows, err := m.db.QueryContext(ctx, query, pageSize, page*readPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to query predictions page %d: %w", page+1, err)
		}
		predictions, err := collectPredictions(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}

		all = append(all, predictions...)
		if len(predictions) < pageSize || (limit > 0 && len(all) >= limit) {
			break
		}
	}

	return all, nil
}

// AddSubscriber 添加推送订阅
func (m *MySQLDB) AddSubscriber(ctx context.Context, chatID int64) error {
	_, err := m.db.ExecContext(ctx, `INSERT IGNORE INTO subscribers (chat_id) VALUES (?)`, chatID)
	if err != nil {
		return fmt.Errorf("failed to add subscriber: %w", err)
	}
	return nil
}

// RemoveSubscriber 取消推送订阅
func (m *MySQLDB) RemoveSubscriber(ctx context.Context, chatID int64) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM subscribers WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("failed to remove subscriber: %w", err)
	}
	return nil
}

// GetSubscribers 获取全部订阅用户
func (m *MySQLDB) GetSubscribers(ctx context.Context) ([]Subscriber, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT chat_id, created_at FROM subscribers ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []Subscriber
	for rows.Next() {
		var s Subscriber
		if err := rows.Scan(&s.ChatID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading subscriber rows: %w", err)
	}
	return subscribers, nil
}

// createTablesIfNotExists 自动创建表结构
func (m *MySQLDB) createTablesIfNotExists(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS draws (
			id VARCHAR(36) PRIMARY KEY,
			draw_date DATE NOT NULL COMMENT 'draw date',
			numbers VARCHAR(32) NOT NULL COMMENT 'five main numbers, comma separated',
			special_number TINYINT NOT NULL COMMENT 'chance number',
			day VARCHAR(16) DEFAULT NULL COMMENT 'weekday name',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uk_draw_date (draw_date)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			numbers VARCHAR(32) NOT NULL,
			special_number TINYINT NOT NULL,
			confidence DECIMAL(4,2) NOT NULL,
			method VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_method (method),
			INDEX idx_created_at (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS subscribers (
			chat_id BIGINT PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}

	for _, stmt := range statements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDraw(row rowScanner) (*Draw, error) {
	var (
		d       Draw
		date    time.Time
		numbers string
		day     sql.NullString
	)
	if err := row.Scan(&d.ID, &date, &numbers, &d.SpecialNumber, &day); err != nil {
		return nil, err
	}

	nums, err := ParseNumbers(numbers)
	if err != nil {
		return nil, fmt.Errorf("invalid numbers for draw %s: %w", d.ID, err)
	}
	d.Numbers = nums
	d.Date = date.Format("2006-01-02")
	d.Day = day.String
	return &d, nil
}

func collectDraws(rows *sql.Rows) ([]Draw, error) {
	var draws []Draw
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draw: %w", err)
		}
		draws = append(draws, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading draw rows: %w", err)
	}
	return draws, nil
}

func collectPredictions(rows *sql.Rows) ([]Prediction, error) {
	var predictions []Prediction
	for rows.Next() {
		var (
			p       Prediction
			numbers string
			status  string
		)
		if err := rows.Scan(&p.ID, &numbers, &p.SpecialNumber, &p.Confidence, &p.Method, &status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		nums, err := ParseNumbers(numbers)
		if err != nil {
			return nil, fmt.Errorf("invalid numbers for prediction %d: %w", p.ID, err)
		}
		p.Numbers = nums
		p.Status = PredictionStatus(status)
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading prediction rows: %w", err)
	}
	return predictions, nil
}

func requireAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrDrawNotFound, id)
	}
	return nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
