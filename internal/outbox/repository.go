package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	AppendTx(tx *gorm.DB, messages ...*Message) error
	ClaimBatch(ctx context.Context, workerID string, limit int) ([]Message, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, lastError string, nextAttemptAt time.Time) error
	MarkDead(ctx context.Context, id uuid.UUID, lastError string) error
	ReleaseStuckClaims(ctx context.Context, claimTimeout time.Duration) (int64, error)
	CleanupProcessed(ctx context.Context, retention time.Duration) (int64, error)
	CountPending(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// AppendTx writes outbox rows on the caller's transaction so the rows commit
// or roll back together with the state change that raised them
func (r *repository) AppendTx(tx *gorm.DB, messages ...*Message) error {
	if len(messages) == 0 {
		return nil
	}
	return tx.Create(messages).Error
}

// ClaimBatch atomically moves up to limit due rows to Claimed and returns
// them. SKIP LOCKED lets horizontally scaled workers claim without overlap;
// try_count is charged at claim time.
func (r *repository) ClaimBatch(ctx context.Context, workerID string, limit int) ([]Message, error) {
	var claimed []Message
	err := r.db.WithContext(ctx).Raw(`
		UPDATE outbox_messages
		SET status = ?, try_count = try_count + 1, claimed_by = ?, claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_messages
			WHERE status = ? AND next_attempt_at <= NOW()
			ORDER BY occurred_on ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, StatusClaimed, workerID, StatusPending, limit).Scan(&claimed).Error
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Update("status", StatusProcessed).Error
}

// Reschedule returns a claimed row to Pending with the next attempt time set
func (r *repository) Reschedule(ctx context.Context, id uuid.UUID, lastError string, nextAttemptAt time.Time) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          StatusPending,
			"last_error":      lastError,
			"next_attempt_at": nextAttemptAt,
			"claimed_by":      "",
			"claimed_at":      nil,
		}).Error
}

// MarkDead parks a row in the DLQ state; it is excluded from normal claims
func (r *repository) MarkDead(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     StatusFailed,
			"last_error": lastError,
		}).Error
}

// ReleaseStuckClaims returns rows claimed longer than claimTimeout ago to
// Pending. Covers workers that died mid-flight.
func (r *repository) ReleaseStuckClaims(ctx context.Context, claimTimeout time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-claimTimeout)
	result := r.db.WithContext(ctx).Model(&Message{}).
		Where("status = ? AND claimed_at < ?", StatusClaimed, cutoff).
		Updates(map[string]interface{}{
			"status":          StatusPending,
			"next_attempt_at": time.Now().UTC(),
			"claimed_by":      "",
			"claimed_at":      nil,
		})
	return result.RowsAffected, result.Error
}

// CleanupProcessed deletes processed rows past the retention window
func (r *repository) CleanupProcessed(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	result := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", StatusProcessed, cutoff).
		Delete(&Message{})
	return result.RowsAffected, result.Error
}

func (r *repository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("status = ?", StatusPending).
		Count(&count).Error
	return count, err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	var msg Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
