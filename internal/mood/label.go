package mood

import "fmt"

// Label is one of the fixed mental-health categories the classifier emits.
type Label string

const (
	Depression          Label = "Depression"
	Borderline          Label = "Borderline personality disorder"
	Bipolar             Label = "Bipolar"
	Anxiety             Label = "Anxiety"
	MentalIllness       Label = "Mentalillness"
	Schizophrenia       Label = "Schizophrenia"
	Normal              Label = "Normal"
	PersonalityDisorder Label = "Personality disorder"
	Suicidal            Label = "Suicidal"
	Stress              Label = "Stress"
)

var all = []Label{
	Depression,
	Borderline,
	Bipolar,
	Anxiety,
	MentalIllness,
	Schizophrenia,
	Normal,
	PersonalityDisorder,
	Suicidal,
	Stress,
}

// All returns every label in a stable order. The slice is a copy.
func All() []Label {
	return append([]Label(nil), all...)
}

func (l Label) Valid() bool {
	for _, v := range all {
		if v == l {
			return true
		}
	}
	return false
}

func (l Label) String() string { return string(l) }

func Parse(s string) (Label, error) {
	l := Label(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown mood label %q", s)
	}
	return l, nil
}
