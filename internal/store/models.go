package store

import (
	"time"
)

// Report is the persisted form of a published analysis report. Reports are
// written once and superseded by later runs, never updated in place.
type Report struct {
	ID            string    `gorm:"primaryKey;size:36"`
	Root          string    `gorm:"not null;index"`
	SignatureHash string    `gorm:"not null;index:idx_signature_hash"`
	GeneratedAt   time.Time `gorm:"not null;index"`

	UsersProcessed   int
	SystemsProcessed int
	FilesProcessed   int
	EntriesParsed    int

	FilesSkipped       int
	ParseErrors        int
	RecordsSkipped     int
	Anomalies          int
	EnrichmentFailures int

	// Aggregated statistics, serialized as JSON maps.
	SeverityStats string `gorm:"type:text"`
	CategoryStats string `gorm:"type:text"`

	Issues []ReportIssue `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Report) TableName() string {
	return "reports"
}

// ReportIssue is one issue row of a persisted report. Rank preserves the
// detector's deterministic output order.
type ReportIssue struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	ReportID string `gorm:"not null;index;size:36"`
	Rank     int    `gorm:"not null"`

	Signature       string `gorm:"not null;index"`
	Category        string `gorm:"not null"`
	Severity        int    `gorm:"not null"`
	RootCause       string `gorm:"type:text"`
	Solution        string `gorm:"type:text"`
	OccurrenceCount int    `gorm:"not null"`
	Enriched        bool

	// JSON-serialized affected user set and bounded sample entries.
	AffectedUsers string `gorm:"type:text"`
	SampleEntries string `gorm:"type:text"`

	FirstSeen *time.Time
	LastSeen  *time.Time
}

func (ReportIssue) TableName() string {
	return "report_issues"
}
