package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suPer8Hu/mood-chat/internal/ai"
	"github.com/suPer8Hu/mood-chat/internal/mood"
	"github.com/suPer8Hu/mood-chat/internal/textnorm"
)

// ErrClassification is returned when tokenization or inference fails. No
// label is produced for that turn.
var ErrClassification = errors.New("classification failed")

const DefaultMaxSeqLength = 512

// HappyKeywords force the Normal label when found anywhere in the raw text.
// Matching is by substring, so "goodbye" and "wellbeing" match as well.
var HappyKeywords = []string{"happy", "good", "great", "awesome", "amazing", "joyful", "excited", "well", "fine"}

type Source string

const (
	SourceOverride Source = "override"
	SourceModel    Source = "model"
)

type Result struct {
	Label  mood.Label
	Source Source
}

type Classifier struct {
	normalizer   *textnorm.Normalizer
	tokenizer    ai.Tokenizer
	model        ai.Model
	decoder      *mood.Decoder
	maxSeqLength int
	keywords     []string
}

// New checks that the decoder can name every class the model emits.
func New(artifacts *ai.Artifacts, decoder *mood.Decoder, normalizer *textnorm.Normalizer, maxSeqLength int) (*Classifier, error) {
	if artifacts == nil || artifacts.Tokenizer == nil || artifacts.Model == nil {
		return nil, errors.New("classifier: model artifacts required")
	}
	if decoder == nil {
		return nil, errors.New("classifier: label decoder required")
	}
	if normalizer == nil {
		return nil, errors.New("classifier: normalizer required")
	}
	if artifacts.NumLabels > 0 && artifacts.NumLabels != decoder.Len() {
		return nil, fmt.Errorf("classifier: model has %d labels, decoder has %d", artifacts.NumLabels, decoder.Len())
	}
	if maxSeqLength <= 0 {
		maxSeqLength = DefaultMaxSeqLength
	}
	return &Classifier{
		normalizer:   normalizer,
		tokenizer:    artifacts.Tokenizer,
		model:        artifacts.Model,
		decoder:      decoder,
		maxSeqLength: maxSeqLength,
		keywords:     HappyKeywords,
	}, nil
}

// Override reports whether raw contains one of the happy keywords.
func (c *Classifier) Override(raw string) bool {
	lower := strings.ToLower(raw)
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func (c *Classifier) Classify(ctx context.Context, raw string) (Result, error) {
	if c.Override(raw) {
		return Result{Label: mood.Normal, Source: SourceOverride}, nil
	}

	cleaned := c.normalizer.Normalize(raw)

	enc, err := c.tokenizer.Encode(ctx, cleaned, c.maxSeqLength)
	if err != nil {
		return Result{}, fmt.Errorf("%w: tokenize: %v", ErrClassification, err)
	}
	logits, err := c.model.Forward(ctx, enc)
	if err != nil {
		return Result{}, fmt.Errorf("%w: inference: %v", ErrClassification, err)
	}

	idx := ai.Argmax(logits)
	if idx < 0 {
		return Result{}, fmt.Errorf("%w: model returned no logits", ErrClassification)
	}
	label, err := c.decoder.Decode(idx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrClassification, err)
	}
	return Result{Label: label, Source: SourceModel}, nil
}
