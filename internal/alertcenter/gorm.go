package alertcenter

import (
	"context"
	"fmt"
	"net"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tkoskin/headsup/internal/conf"
	"github.com/tkoskin/headsup/internal/errors"
	"github.com/tkoskin/headsup/internal/notification"
	"github.com/tkoskin/headsup/internal/observability/metrics"
)

// defaultSlowQueryThreshold defines the duration after which a journal
// query is considered slow and logged with a warning.
const defaultSlowQueryThreshold = 1 * time.Second

// alertRecord is the journal row for one alert. The column is named
// alert_key because plain "key" is reserved in MySQL.
type alertRecord struct {
	AlertKey  string `gorm:"primaryKey;size:191"`
	Body      string
	Sound     bool
	FireAt    time.Time
	State     string `gorm:"index;size:16"` // pending or delivered
	FiredAt   *time.Time
	UpdatedAt time.Time
}

// TableName overrides the derived table name.
func (alertRecord) TableName() string { return "alerts" }

// gormJournal implements Journal on a GORM database.
type gormJournal struct {
	db      *gorm.DB
	metrics *metrics.AlertStoreMetrics
}

// OpenJournal opens the journal backend selected by the store settings.
// The memory backend needs no journal and returns nil without error.
func OpenJournal(settings *conf.StoreSettings, m *metrics.AlertStoreMetrics) (Journal, error) {
	var dialector gorm.Dialector
	switch settings.Backend {
	case "", "memory":
		return nil, nil
	case "sqlite":
		dialector = sqlite.Open(settings.SQLite.Path)
	case "mysql":
		cfg := gomysql.NewConfig()
		cfg.User = settings.MySQL.Username
		cfg.Passwd = settings.MySQL.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(settings.MySQL.Host, settings.MySQL.Port)
		cfg.DBName = settings.MySQL.Database
		cfg.ParseTime = true
		cfg.Loc = time.Local
		cfg.Params = map[string]string{"charset": "utf8mb4"}
		dialector = mysql.Open(cfg.FormatDSN())
	default:
		return nil, errors.Newf("unknown store backend: %s", settings.Backend).
			Component("alertcenter").
			Category(errors.CategoryValidation).
			Context("backend", settings.Backend).
			Build()
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, errors.New(err).
			Component("alertcenter").
			Category(errors.CategoryDatabase).
			Context("operation", "open-journal").
			Context("backend", settings.Backend).
			Build()
	}

	if err := db.AutoMigrate(&alertRecord{}); err != nil {
		return nil, errors.New(err).
			Component("alertcenter").
			Category(errors.CategoryDatabase).
			Context("operation", "auto-migrate").
			Context("backend", settings.Backend).
			Build()
	}

	return &gormJournal{db: db, metrics: m}, nil
}

// RecordAdd upserts a pending row, replacing any previous state stored
// under the same key. Re-adding a delivered alert returns it to the
// pending state with a cleared fire timestamp.
func (j *gormJournal) RecordAdd(ctx context.Context, alert notification.Alert) error {
	rec := &alertRecord{
		AlertKey:  alert.Key,
		Body:      alert.Body,
		Sound:     alert.Sound,
		FireAt:    alert.FireAt,
		State:     ScopePending,
		UpdatedAt: time.Now(),
	}
	err := j.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "alert_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "sound", "fire_at", "state", "fired_at", "updated_at"}),
	}).Create(rec).Error
	j.recordJournalOp(metrics.OpJournalWrite, err)
	if err != nil {
		return errors.New(err).
			Component("alertcenter").
			Category(errors.CategoryDatabase).
			Context("operation", "journal-add").
			Context("key", alert.Key).
			Build()
	}
	return nil
}

// RecordFired moves a pending row to the delivered state.
func (j *gormJournal) RecordFired(ctx context.Context, key string, firedAt time.Time) error {
	err := j.db.WithContext(ctx).Model(&alertRecord{}).
		Where("alert_key = ? AND state = ?", key, ScopePending).
		Updates(map[string]any{
			"state":      ScopeDelivered,
			"fired_at":   firedAt,
			"updated_at": time.Now(),
		}).Error
	j.recordJournalOp(metrics.OpJournalWrite, err)
	if err != nil {
		return errors.New(err).
			Component("alertcenter").
			Category(errors.CategoryDatabase).
			Context("operation", "journal-fire").
			Context("key", key).
			Build()
	}
	return nil
}

// RecordRemoved deletes rows for the given keys in the given scope.
func (j *gormJournal) RecordRemoved(ctx context.Context, scope string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := j.db.WithContext(ctx).
		Where("alert_key IN ? AND state = ?", keys, scope).
		Delete(&alertRecord{}).Error
	j.recordJournalOp(metrics.OpJournalWrite, err)
	if err != nil {
		return errors.New(err).
			Component("alertcenter").
			Category(errors.CategoryDatabase).
			Context("operation", "journal-remove").
			Context("scope", scope).
			Build()
	}
	return nil
}

// Restore loads both queues ordered by fire time.
func (j *gormJournal) Restore(ctx context.Context) (pending []notification.Alert, delivered []DeliveredAlert, err error) {
	var records []alertRecord
	err = j.db.WithContext(ctx).Order("fire_at").Find(&records).Error
	if err != nil {
		return nil, nil, errors.New(err).
			Component("alertcenter").
			Category(errors.CategoryDatabase).
			Context("operation", "journal-restore").
			Build()
	}

	for i := range records {
		rec := &records[i]
		alert := notification.Alert{
			Key:    rec.AlertKey,
			Body:   rec.Body,
			Sound:  rec.Sound,
			FireAt: rec.FireAt,
		}
		if rec.State == ScopeDelivered {
			firedAt := rec.FireAt
			if rec.FiredAt != nil {
				firedAt = *rec.FiredAt
			}
			delivered = append(delivered, DeliveredAlert{Alert: alert, FiredAt: firedAt})
			continue
		}
		pending = append(pending, alert)
	}
	return pending, delivered, nil
}

// Prune deletes delivered rows that fired before the cutoff.
func (j *gormJournal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := j.db.WithContext(ctx).
		Where("state = ? AND fired_at < ?", ScopeDelivered, cutoff).
		Delete(&alertRecord{})
	j.recordJournalOp(metrics.OpJournalPrune, res.Error)
	if res.Error != nil {
		return 0, errors.New(res.Error).
			Component("alertcenter").
			Category(errors.CategoryDatabase).
			Context("operation", "journal-prune").
			Build()
	}
	return res.RowsAffected, nil
}

// Close closes the underlying SQL connection.
func (j *gormJournal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// recordJournalOp records one journal operation outcome when metrics
// are configured.
func (j *gormJournal) recordJournalOp(op string, err error) {
	if j.metrics == nil {
		return
	}
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	j.metrics.RecordJournalOperation(op, status)
}

// gormLogger adapts GORM's logging interface onto the package file
// logger, flagging slow queries and recording query failures.
type gormLogger struct {
	slowThreshold time.Duration
	logLevel      gormlogger.LogLevel
}

func newGormLogger() *gormLogger {
	return &gormLogger{
		slowThreshold: defaultSlowQueryThreshold,
		logLevel:      gormlogger.Warn,
	}
}

// LogMode implements gormlogger.Interface.
func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

// Info implements gormlogger.Interface.
func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Info {
		getFileLogger(false).InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Warn implements gormlogger.Interface.
func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Warn {
		getFileLogger(false).WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Error implements gormlogger.Interface.
func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Error {
		getFileLogger(false).ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace implements gormlogger.Interface.
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		getFileLogger(false).ErrorContext(ctx, "journal query failed",
			"error", err,
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		getFileLogger(false).WarnContext(ctx, "slow journal query",
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows,
			"threshold", l.slowThreshold)
	case l.logLevel >= gormlogger.Info:
		getFileLogger(false).DebugContext(ctx, "journal query",
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows)
	}
}
