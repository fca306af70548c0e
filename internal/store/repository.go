package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when no report exists for the requested root.
var ErrNotFound = errors.New("store: report not found")

// ReportRepository persists published reports and serves the latest one
// per logs root across restarts.
type ReportRepository interface {
	Save(report *Report) error
	FindLatestByRoot(root string) (*Report, error)
	Roots() ([]string, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

type reportRepo struct {
	db *gorm.DB
}

// NewReportRepository creates a repository over the given connection.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepo{db: db}
}

func (r *reportRepo) Save(report *Report) error {
	return r.db.Create(report).Error
}

func (r *reportRepo) FindLatestByRoot(root string) (*Report, error) {
	var report Report
	err := r.db.
		Preload("Issues", func(db *gorm.DB) *gorm.DB { return db.Order("rank ASC") }).
		Where("root = ?", root).
		Order("generated_at DESC").
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepo) Roots() ([]string, error) {
	var roots []string
	err := r.db.Model(&Report{}).Distinct("root").Pluck("root", &roots).Error
	return roots, err
}

// DeleteOlderThan removes reports generated before the cutoff together
// with their issue rows, and returns the number of reports removed.
func (r *reportRepo) DeleteOlderThan(cutoff time.Time) (int64, error) {
	var ids []string
	if err := r.db.Model(&Report{}).
		Where("generated_at < ?", cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := r.db.Where("report_id IN ?", ids).Delete(&ReportIssue{}).Error; err != nil {
		return 0, err
	}
	res := r.db.Where("id IN ?", ids).Delete(&Report{})
	return res.RowsAffected, res.Error
}
