package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// RecordRepository provides database operations for decoded annotations
type RecordRepository struct {
	db *gorm.DB
}

// NewRecordRepository creates a new repository instance
func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Insert stores a single annotation record
func (r *RecordRepository) Insert(record *Record) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if !record.IsValid() {
		return fmt.Errorf("record is not valid: span=%d-%d, category=%s",
			record.StartSample, record.EndSample, record.Category)
	}
	record.CreatedAt = time.Now()
	return r.db.Create(record).Error
}

// InsertBatch stores multiple annotation records in transactions
func (r *RecordRepository) InsertBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	const batchSize = 1000

	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}

		batch := records[i:end]
		valid := make([]Record, 0, len(batch))
		for _, record := range batch {
			if record.IsValid() {
				record.CreatedAt = time.Now()
				valid = append(valid, record)
			}
		}
		if len(valid) == 0 {
			continue
		}

		err := r.db.Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(valid, len(valid)).Error
		})
		if err != nil {
			return fmt.Errorf("batch insert failed at batch starting at index %d: %w", i, err)
		}
	}

	return nil
}

// Count returns the total number of stored annotations
func (r *RecordRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&Record{}).Count(&count).Error
	return count, err
}

// DeleteAll removes every stored annotation
func (r *RecordRepository) DeleteAll() error {
	return r.db.Where("1 = 1").Delete(&Record{}).Error
}

// GetByCategory returns annotations of one category ordered by position
func (r *RecordRepository) GetByCategory(category string, limit int) ([]Record, error) {
	var records []Record
	err := r.db.Where("category = ?", category).
		Order("start_sample ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// GetInRange returns annotations overlapping the given sample range
func (r *RecordRepository) GetInRange(start, end uint64) ([]Record, error) {
	var records []Record
	err := r.db.Where("start_sample <= ? AND end_sample >= ?", end, start).
		Order("start_sample ASC").
		Find(&records).Error
	return records, err
}

// FindByLabelPattern searches for labels matching a pattern
func (r *RecordRepository) FindByLabelPattern(pattern string, limit int) ([]Record, error) {
	var records []Record
	err := r.db.Where("label LIKE ?", "%"+pattern+"%").
		Order("start_sample ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// GetStatistics returns per-category annotation counts
func (r *RecordRepository) GetStatistics() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	count, err := r.Count()
	if err != nil {
		return nil, err
	}
	stats["total_annotations"] = count

	var categoryStats []struct {
		Category string `json:"category"`
		Count    int    `json:"count"`
	}
	err = r.db.Model(&Record{}).
		Select("category, COUNT(*) as count").
		Group("category").
		Order("count DESC").
		Find(&categoryStats).Error
	if err != nil {
		return nil, err
	}
	stats["categories"] = categoryStats

	return stats, nil
}

// HealthCheck verifies the repository is working correctly
func (r *RecordRepository) HealthCheck() error {
	var count int64
	return r.db.Model(&Record{}).Count(&count).Error
}
