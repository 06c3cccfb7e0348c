package ai

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
)

// MockModel is a deterministic stand-in used for local development and
// tests: the winning class is derived from a hash of the text.
type MockModel struct {
	NumLabels int
	Err       error
}

func NewMockArtifacts(numLabels int) *Artifacts {
	m := &MockModel{NumLabels: numLabels}
	return &Artifacts{Repo: "mock", NumLabels: numLabels, Tokenizer: m, Model: m}
}

// MockLoader ignores repo and always succeeds.
func MockLoader(numLabels int) Loader {
	return func(ctx context.Context, repo string) (*Artifacts, error) {
		_ = ctx
		a := NewMockArtifacts(numLabels)
		a.Repo = repo
		return a, nil
	}
}

func (m *MockModel) Encode(ctx context.Context, text string, maxLength int) (*Encoding, error) {
	_ = ctx
	words := strings.Fields(text)
	if maxLength > 0 && len(words) > maxLength {
		words = words[:maxLength]
	}
	ids := make([]int, len(words))
	mask := make([]int, len(words))
	for i, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		ids[i] = int(h.Sum32() % 30000)
		mask[i] = 1
	}
	return &Encoding{Text: strings.Join(words, " "), InputIDs: ids, AttentionMask: mask, MaxLength: maxLength}, nil
}

func (m *MockModel) Forward(ctx context.Context, enc *Encoding) ([]float32, error) {
	_ = ctx
	if m.Err != nil {
		return nil, m.Err
	}
	if m.NumLabels <= 0 {
		return nil, errors.New("mock: no labels")
	}
	if enc == nil {
		return nil, errors.New("mock: empty encoding")
	}
	logits := make([]float32, m.NumLabels)
	sum := 0
	for _, id := range enc.InputIDs {
		sum += id
	}
	logits[sum%m.NumLabels] = 1
	return logits, nil
}
