package usage

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ToolUsageLog is the tool_usage_logs row.
type ToolUsageLog struct {
	ID         uint      `gorm:"primaryKey"`
	Caller     string    `gorm:"type:text;not null;index"`
	Tool       string    `gorm:"type:text;not null;index"`
	Status     string    `gorm:"type:text;not null"`
	ErrorKind  *string   `gorm:"type:text"`
	DurationMs int64     `gorm:"not null"`
	RequestID  *string   `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func (ToolUsageLog) TableName() string { return "tool_usage_logs" }

// Store is a gorm-backed Recorder.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Open connects to dsn, migrates the schema and returns a Store.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("database URL is empty")
	}
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse database URL")
	}
	if connCfg.RuntimeParams == nil {
		connCfg.RuntimeParams = map[string]string{}
	}
	if connCfg.RuntimeParams["application_name"] == "" {
		connCfg.RuntimeParams["application_name"] = "wakatime-mcp"
	}

	sqlDB := stdlib.OpenDB(*connCfg)
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "open database")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	s, err := NewStore(ctx, db, logger)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open gorm handle and migrates the schema.
func NewStore(ctx context.Context, db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.WithContext(ctx).AutoMigrate(&ToolUsageLog{}); err != nil {
		return nil, errors.Wrap(err, "migrate usage log")
	}
	return &Store{db: db, logger: logger}, nil
}

// Record inserts e asynchronously (fire-and-forget). Entries recorded after
// Close are dropped.
func (s *Store) Record(ctx context.Context, e Entry) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("usage store closed, entry dropped", zap.String("tool", e.Tool))
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	row := newRow(e, time.Now())
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			s.logger.Warn("record usage failed", zap.String("tool", e.Tool), zap.Error(err))
		}
	}()
}

func newRow(e Entry, now time.Time) ToolUsageLog {
	row := ToolUsageLog{
		Caller:     e.Caller,
		Tool:       e.Tool,
		Status:     e.Status,
		DurationMs: e.Duration.Milliseconds(),
		CreatedAt:  now.UTC(),
	}
	if e.ErrorKind != "" {
		row.ErrorKind = &e.ErrorKind
	}
	if e.RequestID != "" {
		row.RequestID = &e.RequestID
	}
	return row
}

// CountByTool returns call counts per tool since the given time, most used first.
func (s *Store) CountByTool(ctx context.Context, since time.Time) ([]ToolCount, error) {
	var counts []ToolCount
	err := s.db.WithContext(ctx).Model(&ToolUsageLog{}).
		Select("tool, COUNT(*) AS count").
		Where("created_at >= ?", since.UTC()).
		Group("tool").
		Order("count DESC, tool").
		Scan(&counts).Error
	if err != nil {
		return nil, errors.Wrap(err, "count usage")
	}
	return counts, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// drain stops accepting entries and waits for pending inserts.
func (s *Store) drain() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// Close waits for pending inserts and closes the connection pool.
func (s *Store) Close() error {
	s.drain()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
