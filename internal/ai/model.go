package ai

import "context"

// Encoding is the tokenizer output handed to the model. Backends that
// tokenize server-side only fill Text.
type Encoding struct {
	Text          string
	InputIDs      []int
	AttentionMask []int
	MaxLength     int
}

// Tokenizer turns normalized text into model input, padded and truncated to
// maxLength tokens.
type Tokenizer interface {
	Encode(ctx context.Context, text string, maxLength int) (*Encoding, error)
}

// Model runs one forward pass and returns the raw logits, one per class.
type Model interface {
	Forward(ctx context.Context, enc *Encoding) ([]float32, error)
}

// Artifacts is a loaded tokenizer + classification model pair. Both are
// read-only after load and safe for concurrent use.
type Artifacts struct {
	Repo      string
	NumLabels int
	Tokenizer Tokenizer
	Model     Model
}

// Argmax returns the index of the largest logit, the first one on ties, or
// -1 when logits is empty.
func Argmax(logits []float32) int {
	best := -1
	for i, v := range logits {
		if best < 0 || v > logits[best] {
			best = i
		}
	}
	return best
}
