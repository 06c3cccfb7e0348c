package responses

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/suPer8Hu/mood-chat/internal/mood"
)

// Load returns the built-in catalog, overlaid with the YAML file at path when
// path is not empty. The file shape is:
//
//	replies:
//	  Anxiety: ["...", "..."]
//	follow_ups:
//	  Anxiety: ["..."]
//
// Labels present in the file replace the built-in candidates for that label.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load responses %s: %w", path, err)
	}

	replies := cloneTable(defaultReplies)
	followUps := cloneTable(defaultFollowUps)

	for _, section := range []string{"replies", "follow_ups"} {
		for key := range k.Cut(section).Raw() {
			if _, err := mood.Parse(key); err != nil {
				return nil, fmt.Errorf("load responses %s: %s: %w", path, section, err)
			}
		}
	}

	for _, l := range mood.All() {
		if key := "replies." + string(l); k.Exists(key) {
			replies[l] = k.Strings(key)
		}
		if key := "follow_ups." + string(l); k.Exists(key) {
			followUps[l] = k.Strings(key)
		}
	}
	return NewCatalog(replies, followUps)
}

func cloneTable(in map[mood.Label][]string) map[mood.Label][]string {
	out := make(map[mood.Label][]string, len(in))
	for l, v := range in {
		out[l] = append([]string(nil), v...)
	}
	return out
}
