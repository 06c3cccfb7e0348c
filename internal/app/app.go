// Package app assembles the analysis pipeline and transcript store from
// config. Both the HTTP server and the job worker start through here.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/suPer8Hu/mood-chat/internal/ai"
	"github.com/suPer8Hu/mood-chat/internal/chat"
	"github.com/suPer8Hu/mood-chat/internal/classifier"
	"github.com/suPer8Hu/mood-chat/internal/config"
	"github.com/suPer8Hu/mood-chat/internal/logger"
	"github.com/suPer8Hu/mood-chat/internal/mood"
	"github.com/suPer8Hu/mood-chat/internal/responses"
	"github.com/suPer8Hu/mood-chat/internal/store/memory"
	"github.com/suPer8Hu/mood-chat/internal/store/redisstore"
	"github.com/suPer8Hu/mood-chat/internal/textnorm"
)

// TranscriptTTL is how long an idle session's transcript survives in redis.
const TranscriptTTL = 30 * 24 * time.Hour

var ErrAsyncNeedsSharedStore = errors.New("async analysis needs the sql or redis transcript backend")

type Pipeline struct {
	Classifier *classifier.Classifier
	Responder  *responses.Selector
}

// LoadPipeline loads stopwords, the label decoder, model artifacts and the
// response tables. Any failure here is fatal for the process.
func LoadPipeline(ctx context.Context, cfg config.Config, log *logger.Logger) (*Pipeline, error) {
	stop, err := textnorm.LoadStopwords(ctx, log, &http.Client{Timeout: cfg.InferenceTimeout}, cfg.StopwordsPath, cfg.StopwordsURL)
	if err != nil {
		return nil, fmt.Errorf("load stopwords: %w", err)
	}

	dec, err := mood.LoadDecoder(cfg.LabelEncoderPath)
	if err != nil {
		return nil, fmt.Errorf("load label encoder: %w", err)
	}

	artifacts, err := NewModelRegistry(cfg, dec.Len()).Load(ctx, cfg.ModelBackend, cfg.ModelRepo)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	clf, err := classifier.New(artifacts, dec, textnorm.NewNormalizer(stop), cfg.MaxSeqLength)
	if err != nil {
		return nil, err
	}

	catalog, err := responses.Load(cfg.ResponsesPath)
	if err != nil {
		return nil, err
	}

	log.Info("pipeline ready",
		"backend", cfg.ModelBackend,
		"repo", artifacts.Repo,
		"labels", artifacts.NumLabels,
		"stopwords", len(stop),
	)
	return &Pipeline{Classifier: clf, Responder: responses.NewSelector(catalog, nil)}, nil
}

// NewModelRegistry registers every model backend. The mock backend emits
// numLabels classes so it always matches the label encoder.
func NewModelRegistry(cfg config.Config, numLabels int) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("http", ai.EndpointLoader(cfg.InferenceBaseURL, cfg.InferenceAPIKey, cfg.InferenceTimeout))
	reg.Register("hf", ai.HFLoader("", cfg.InferenceBaseURL, cfg.InferenceAPIKey, cfg.InferenceTimeout))
	reg.Register("mock", ai.MockLoader(numLabels))
	return reg
}

// OpenTranscriptStore picks the transcript backend. sqlRepo serves the "sql"
// backend. The returned close func is never nil.
func OpenTranscriptStore(cfg config.Config, sqlRepo *chat.Repo) (chat.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.TranscriptBackend {
	case "", "sql":
		return sqlRepo, noop, nil
	case "redis":
		s, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TranscriptMaxEntries, TranscriptTTL)
		if err != nil {
			return nil, noop, fmt.Errorf("redis transcript store: %w", err)
		}
		return s, s.Close, nil
	case "memory":
		return memory.NewTranscriptStore(cfg.TranscriptMaxEntries), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported TRANSCRIPT_BACKEND=%q", cfg.TranscriptBackend)
	}
}

// CheckAsync rejects configs where the worker could not see the transcript
// the server writes.
func CheckAsync(cfg config.Config) error {
	if cfg.AsyncEnabled() && cfg.TranscriptBackend == "memory" {
		return ErrAsyncNeedsSharedStore
	}
	return nil
}
