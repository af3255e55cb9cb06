// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/monofi/monofid/internal/storage"
	"github.com/monofi/monofid/internal/storage/models"
)

// gormLogger adapts zap to GORM's logger.Interface.
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Info("trace", fields...)
	}
}

type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	gormLogger := newGormLogger(zapLogger.Named("gorm"))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger,
	}, nil
}

// RunMigrations uses GORM AutoMigrate guarded by an advisory lock so
// concurrent daemon instances don't race.
func (p *postgresStorage) RunMigrations() error {
	var lockObtained bool
	err := p.db.Raw("SELECT pg_try_advisory_lock(202)").Scan(&lockObtained).Error
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(202)")

	err = p.db.AutoMigrate(
		&models.Submission{},
		&models.WhaleSighting{},
		&models.PriceSample{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (p *postgresStorage) SaveSubmission(ctx context.Context, sub *models.Submission) error {
	return p.db.WithContext(ctx).Create(sub).Error
}

func (p *postgresStorage) GetSubmission(ctx context.Context, submissionID string) (*models.Submission, error) {
	var sub models.Submission
	err := p.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (p *postgresStorage) ListSubmissions(ctx context.Context, limit, offset int) ([]*models.Submission, error) {
	var subs []*models.Submission
	err := p.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&subs).Error
	return subs, err
}

func (p *postgresStorage) UpdateSubmissionStatus(ctx context.Context, submissionID string, status string, errorMsg string) error {
	return p.db.WithContext(ctx).Model(&models.Submission{}).
		Where("submission_id = ?", submissionID).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMsg,
		}).Error
}

func (p *postgresStorage) SaveWhaleSighting(ctx context.Context, sighting *models.WhaleSighting) error {
	return p.db.WithContext(ctx).Create(sighting).Error
}

func (p *postgresStorage) ListWhaleSightings(ctx context.Context, limit int) ([]*models.WhaleSighting, error) {
	var sightings []*models.WhaleSighting
	err := p.db.WithContext(ctx).
		Order("observed_at desc").
		Limit(limit).
		Find(&sightings).Error
	return sightings, err
}

func (p *postgresStorage) SavePriceSample(ctx context.Context, sample *models.PriceSample) error {
	return p.db.WithContext(ctx).Create(sample).Error
}

func (p *postgresStorage) ListPriceSamples(ctx context.Context, symbol string, limit int) ([]*models.PriceSample, error) {
	var samples []*models.PriceSample
	err := p.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("sampled_at desc").
		Limit(limit).
		Find(&samples).Error
	return samples, err
}
