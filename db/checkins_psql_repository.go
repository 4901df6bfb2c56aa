package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"ticketing/entity"
)

const checkInColumns = `check_in_id, booking_id, confirmation_code, scanner_id, scanner_type,
	location, quantity, checked_in_at`

// CheckInsRepository is the append-only admission audit log.
type CheckInsRepository struct {
	db *sqlx.DB
}

func NewCheckInsRepository(db *sqlx.DB) *CheckInsRepository {
	if db == nil {
		panic("db is nil")
	}
	return &CheckInsRepository{db: db}
}

func (r *CheckInsRepository) Append(ctx context.Context, record entity.CheckInRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO check_ins (`+checkInColumns+`)
		VALUES (:check_in_id, :booking_id, :confirmation_code, :scanner_id, :scanner_type,
			:location, :quantity, :checked_in_at)
	`, record)
	if err != nil {
		return fmt.Errorf("could not append check-in record: %w", err)
	}
	return nil
}

func (r *CheckInsRepository) Recent(ctx context.Context, limit int) ([]entity.CheckInRecord, error) {
	var records []entity.CheckInRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT `+checkInColumns+` FROM check_ins ORDER BY checked_in_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list recent check-ins: %w", err)
	}
	return records, nil
}

func (r *CheckInsRepository) FindByConfirmationCode(ctx context.Context, code string) ([]entity.CheckInRecord, error) {
	var records []entity.CheckInRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT `+checkInColumns+` FROM check_ins WHERE confirmation_code = $1 ORDER BY checked_in_at
	`, code)
	if err != nil {
		return nil, fmt.Errorf("could not list check-ins for code: %w", err)
	}
	return records, nil
}

func (r *CheckInsRepository) StatsForDay(ctx context.Context, day time.Time) (entity.DailyCheckInStats, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	rows := []struct {
		ScannerID string `db:"scanner_id"`
		Count     int    `db:"count"`
	}{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT scanner_id, COUNT(*) AS count
		FROM check_ins
		WHERE checked_in_at >= $1 AND checked_in_at < $2
		GROUP BY scanner_id
	`, start, end)
	if err != nil {
		return entity.DailyCheckInStats{}, fmt.Errorf("could not aggregate check-in stats: %w", err)
	}

	stats := entity.DailyCheckInStats{Day: start, ByScanner: make(map[string]int, len(rows))}
	for _, row := range rows {
		stats.ByScanner[row.ScannerID] = row.Count
		stats.Total += row.Count
	}
	return stats, nil
}
