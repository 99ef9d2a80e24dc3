package database

import (
	"fmt"
	"strings"
	"time"
)

// Record is one persisted annotation: a sample span, its category and the
// label variants the decoder produced for it, longest first.
type Record struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	Run         string    `gorm:"index:idx_records_run;size:120" json:"run,omitempty"`
	StartSample uint64    `gorm:"index:idx_records_start;not null" json:"start_sample"`
	EndSample   uint64    `gorm:"not null" json:"end_sample"`
	Category    string    `gorm:"index:idx_records_category;size:20" json:"category"`
	Label       string    `gorm:"size:255" json:"label"`
	AltLabels   string    `gorm:"size:255" json:"alt_labels,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Record) TableName() string {
	return "annotations"
}

// String returns a formatted string representation
func (r Record) String() string {
	return fmt.Sprintf("[%d-%d] %s: %s", r.StartSample, r.EndSample, r.Category, r.Label)
}

// IsValid checks if the record has required fields
func (r Record) IsValid() bool {
	return r.EndSample >= r.StartSample && r.Category != "" && r.Label != ""
}

// AllLabels returns every label variant, longest first
func (r Record) AllLabels() []string {
	if r.AltLabels == "" {
		return []string{r.Label}
	}
	return append([]string{r.Label}, strings.Split(r.AltLabels, "\x1f")...)
}

// joinAltLabels packs the shorter label variants into a single column
func joinAltLabels(labels []string) string {
	if len(labels) <= 1 {
		return ""
	}
	return strings.Join(labels[1:], "\x1f")
}
