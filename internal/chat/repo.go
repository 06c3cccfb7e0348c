package chat

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo is the SQL transcript store and the job table.
type Repo struct {
	db         *gorm.DB
	maxEntries int
}

// NewRepo keeps at most maxEntries messages per session; 0 means no cap.
func NewRepo(db *gorm.DB, maxEntries int) *Repo {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Repo{db: db, maxEntries: maxEntries}
}

func (r *Repo) Append(ctx context.Context, sessionID string, e Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&Session{SessionID: sessionID}).Error; err != nil {
			return err
		}
		if err := tx.Create(&Message{
			SessionID: sessionID,
			Role:      string(e.Role),
			Content:   e.Content,
		}).Error; err != nil {
			return err
		}
		return trimSession(tx, sessionID, r.maxEntries)
	})
}

// trimSession drops everything older than the newest max messages.
func trimSession(tx *gorm.DB, sessionID string, max int) error {
	if max <= 0 {
		return nil
	}
	var ids []uint64
	if err := tx.Model(&Message{}).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Offset(max-1).
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return tx.Where("session_id = ? AND id < ?", sessionID, ids[0]).
		Delete(&Message{}).Error
}

// All returns messages in ASC id order (oldest -> newest).
func (r *Repo) All(ctx context.Context, sessionID string) ([]Entry, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Entry{Role: Role(m.Role), Content: m.Content})
	}
	return out, nil
}

func (r *Repo) Clear(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&Message{}).Error
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// UpdateJobStatusRunning moves a queued job to running. It reports false when
// the job is gone or was already taken.
func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteQueuedJob removes a job nobody has started, so its idempotency key
// can be used again.
func (r *Repo) DeleteQueuedJob(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, JobQueued).
		Delete(&Job{}).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, label, reply, followUp string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":    JobSucceeded,
			"label":     label,
			"reply":     reply,
			"follow_up": followUp,
			"error":     nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":    JobFailed,
			"error":     errMsg,
			"label":     nil,
			"reply":     nil,
			"follow_up": nil,
		}).Error
}

func (r *Repo) GetJobBySessionAndIdempotencyKey(ctx context.Context, sessionID string, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND idempotency_key = ?", sessionID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (session_id, idempotency_key)
// already exists, it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobBySessionAndIdempotencyKey(ctx, job.SessionID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
