package infrastructure

import (
	"errors"
	"fmt"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// filterColumns are the columns FindAll accepts as filters
var filterColumns = map[string]bool{
	"status":     true,
	"platform":   true,
	"provider":   true,
	"error_kind": true,
	"mode":       true,
	"delivery":   true,
}

// SQLiteAcquisitionRepository implements AcquisitionRepository using SQLite
type SQLiteAcquisitionRepository struct {
	db *gorm.DB
}

// NewSQLiteAcquisitionRepository opens (or creates) the history database
func NewSQLiteAcquisitionRepository(dbPath string) (*SQLiteAcquisitionRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.Acquisition{}, &domain.AcquisitionAttempt{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteAcquisitionRepository{db: db}, nil
}

// Create stores a new acquisition. Attempts are written separately.
func (r *SQLiteAcquisitionRepository) Create(acquisition *domain.Acquisition) error {
	return r.db.Omit("Attempts").Create(acquisition).Error
}

// Update saves the acquisition columns
func (r *SQLiteAcquisitionRepository) Update(acquisition *domain.Acquisition) error {
	return r.db.Omit("Attempts").Save(acquisition).Error
}

// AddAttempt appends one provider attempt
func (r *SQLiteAcquisitionRepository) AddAttempt(attempt *domain.AcquisitionAttempt) error {
	return r.db.Create(attempt).Error
}

// FindByID finds an acquisition with its attempts in sequence order
func (r *SQLiteAcquisitionRepository) FindByID(id string) (*domain.Acquisition, error) {
	var acquisition domain.Acquisition
	err := r.db.
		Preload("Attempts", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		First(&acquisition, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAcquisitionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acquisition, nil
}

// FindAll lists acquisitions newest first. Unknown filter keys are rejected;
// limit <= 0 means no limit.
func (r *SQLiteAcquisitionRepository) FindAll(filters map[string]interface{}, limit int) ([]*domain.Acquisition, error) {
	query := r.db.Model(&domain.Acquisition{})
	for key, value := range filters {
		if !filterColumns[key] {
			return nil, fmt.Errorf("unsupported filter: %s", key)
		}
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var acquisitions []*domain.Acquisition
	err := query.Order("created_at DESC").Find(&acquisitions).Error
	return acquisitions, err
}

// GetStats returns acquisition statistics
func (r *SQLiteAcquisitionRepository) GetStats() (*domain.AcquisitionStats, error) {
	stats := &domain.AcquisitionStats{
		ByProvider:  make(map[string]int64),
		ByErrorKind: make(map[string]int64),
	}

	if err := r.db.Model(&domain.Acquisition{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.AcquisitionStatus
		Count  int64
	}{}
	if err := r.db.Model(&domain.Acquisition{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}
	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.StatusRunning:
			stats.Running = sc.Count
		case domain.StatusSucceeded:
			stats.Succeeded = sc.Count
		case domain.StatusFailed:
			stats.Failed = sc.Count
		}
	}

	if err := r.groupCount("provider", "status = ?", domain.StatusSucceeded, stats.ByProvider); err != nil {
		return nil, err
	}
	if err := r.groupCount("error_kind", "status = ?", domain.StatusFailed, stats.ByErrorKind); err != nil {
		return nil, err
	}
	return stats, nil
}

// groupCount counts acquisitions matching where, grouped by column
func (r *SQLiteAcquisitionRepository) groupCount(column, where string, arg interface{}, into map[string]int64) error {
	rows := []struct {
		Name  string
		Count int64
	}{}
	err := r.db.Model(&domain.Acquisition{}).
		Select(column+" as name, count(*) as count").
		Where(where, arg).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.Name != "" {
			into[row.Name] = row.Count
		}
	}
	return nil
}

// Close closes the database connection
func (r *SQLiteAcquisitionRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
