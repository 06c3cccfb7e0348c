package mood

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Decoder maps a model class index back to its Label. It is fitted at
// training time and shipped as a JSON file next to the binary.
type Decoder struct {
	classes []Label
}

type decoderFile struct {
	Classes []string `json:"classes"`
}

func NewDecoder(classes []Label) (*Decoder, error) {
	if len(classes) == 0 {
		return nil, errors.New("label decoder: no classes")
	}
	seen := make(map[Label]struct{}, len(classes))
	for i, c := range classes {
		if !c.Valid() {
			return nil, fmt.Errorf("label decoder: class %d: unknown label %q", i, c)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("label decoder: duplicate class %q", c)
		}
		seen[c] = struct{}{}
	}
	return &Decoder{classes: append([]Label(nil), classes...)}, nil
}

// LoadDecoder reads a {"classes": [...]} file.
func LoadDecoder(path string) (*Decoder, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("label decoder: %w", err)
	}
	var f decoderFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("label decoder: parse %s: %w", path, err)
	}
	classes := make([]Label, 0, len(f.Classes))
	for _, c := range f.Classes {
		classes = append(classes, Label(c))
	}
	return NewDecoder(classes)
}

func (d *Decoder) Len() int { return len(d.classes) }

// Decode returns the label for a class index.
func (d *Decoder) Decode(index int) (Label, error) {
	if index < 0 || index >= len(d.classes) {
		return "", fmt.Errorf("label decoder: index %d out of range [0,%d)", index, len(d.classes))
	}
	return d.classes[index], nil
}
