package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/suPer8Hu/mood-chat/internal/classifier"
	"github.com/suPer8Hu/mood-chat/internal/common"
	"github.com/suPer8Hu/mood-chat/internal/logger"
	"github.com/suPer8Hu/mood-chat/internal/mood"
	"gorm.io/gorm"
)

var (
	ErrEmptyInput    = errors.New("empty input")
	ErrAsyncDisabled = errors.New("async analysis is not configured")
)

type Classifier interface {
	Classify(ctx context.Context, raw string) (classifier.Result, error)
}

type Responder interface {
	Reply(l mood.Label) string
	FollowUp(l mood.Label) string
}

// Turn is the outcome of one analyzed statement.
type Turn struct {
	Input    string            `json:"input"`
	Label    mood.Label        `json:"label"`
	Source   classifier.Source `json:"source"`
	Reply    string            `json:"reply"`
	FollowUp string            `json:"follow_up"`
}

type Service struct {
	store      Store
	classifier Classifier
	responder  Responder
	jobs       *Repo
	log        *logger.Logger
}

// NewService wires the pipeline. jobs may be nil when async analysis is off.
func NewService(store Store, c Classifier, r Responder, jobs *Repo, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, classifier: c, responder: r, jobs: jobs, log: log.With("service", "chat")}
}

// Analyze records the user's statement, classifies it and records the reply
// and follow-up. When classification fails the error wraps
// classifier.ErrClassification and only the user entry is kept.
func (s *Service) Analyze(ctx context.Context, sessionID string, text string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	if err := s.store.Append(ctx, sessionID, Entry{Role: RoleUser, Content: text}); err != nil {
		return nil, err
	}

	return s.respond(ctx, sessionID, text)
}

func (s *Service) respond(ctx context.Context, sessionID string, text string) (*Turn, error) {
	res, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.log.Warn("analysis failed", "session_id", sessionID, "err", err)
		return nil, err
	}

	turn := &Turn{
		Input:    text,
		Label:    res.Label,
		Source:   res.Source,
		Reply:    s.responder.Reply(res.Label),
		FollowUp: s.responder.FollowUp(res.Label),
	}

	if err := s.store.Append(ctx, sessionID, Entry{Role: RoleAssistant, Content: turn.Reply}); err != nil {
		return nil, err
	}
	if err := s.store.Append(ctx, sessionID, Entry{Role: RoleAssistant, Content: turn.FollowUp}); err != nil {
		return nil, err
	}

	s.log.Debug("analysis done", "session_id", sessionID, "label", turn.Label, "source", turn.Source)
	return turn, nil
}

func (s *Service) Transcript(ctx context.Context, sessionID string) ([]Entry, error) {
	return s.store.All(ctx, sessionID)
}

func (s *Service) ClearTranscript(ctx context.Context, sessionID string) error {
	return s.store.Clear(ctx, sessionID)
}

func (s *Service) AsyncEnabled() bool { return s.jobs != nil }

// SubmitJob creates a queued job. A repeated idempotency key returns the
// existing job with created=false. The transcript is only written when the
// job is processed.
func (s *Service) SubmitJob(ctx context.Context, sessionID string, text string, idempoKey *string) (job *Job, created bool, err error) {
	if s.jobs == nil {
		return nil, false, ErrAsyncDisabled
	}
	if strings.TrimSpace(text) == "" {
		return nil, false, ErrEmptyInput
	}

	if idempoKey != nil && *idempoKey != "" {
		existing, err := s.jobs.GetJobBySessionAndIdempotencyKey(ctx, sessionID, *idempoKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	}

	jobID, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}

	return s.jobs.CreateJobOrGetExisting(ctx, &Job{
		ID:             jobID,
		SessionID:      sessionID,
		Prompt:         text,
		IdempotencyKey: idempoKey,
		Status:         JobQueued,
	})
}

// AbandonJob drops a job that could not be enqueued. A retry with the same
// idempotency key then creates a fresh job.
func (s *Service) AbandonJob(ctx context.Context, jobID string) error {
	if s.jobs == nil {
		return ErrAsyncDisabled
	}
	return s.jobs.DeleteQueuedJob(ctx, jobID)
}

// GetJob hides jobs of other sessions behind gorm.ErrRecordNotFound.
func (s *Service) GetJob(ctx context.Context, sessionID string, jobID string) (*Job, error) {
	if s.jobs == nil {
		return nil, ErrAsyncDisabled
	}
	j, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.SessionID != sessionID {
		return nil, gorm.ErrRecordNotFound
	}
	return j, nil
}

// ProcessJob claims a queued job, records the user entry and runs the
// pipeline, then stores the outcome on the job row. Jobs that are gone or
// already claimed are skipped. A classification failure marks the job failed
// and is returned so the consumer can dead-letter the delivery.
func (s *Service) ProcessJob(ctx context.Context, jobID string) error {
	if s.jobs == nil {
		return ErrAsyncDisabled
	}

	claimed, err := s.jobs.UpdateJobStatusRunning(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		s.log.Debug("job skipped", "job_id", jobID)
		return nil
	}

	j, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	if err := s.store.Append(ctx, j.SessionID, Entry{Role: RoleUser, Content: j.Prompt}); err != nil {
		s.markFailed(ctx, jobID, err)
		return err
	}

	turn, err := s.respond(ctx, j.SessionID, j.Prompt)
	if err != nil {
		s.markFailed(ctx, jobID, err)
		return err
	}

	return s.jobs.MarkJobSucceeded(ctx, jobID, string(turn.Label), turn.Reply, turn.FollowUp)
}

func (s *Service) markFailed(ctx context.Context, jobID string, cause error) {
	if err := s.jobs.MarkJobFailed(ctx, jobID, cause.Error()); err != nil {
		s.log.Error("mark job failed", "job_id", jobID, "err", err)
	}
}
