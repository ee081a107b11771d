package dataset

import "github.com/google/uuid"

// Origin tells whether an example was added in this session or restored from
// a saved project.
type Origin string

const (
	OriginNew    Origin = "new"
	OriginLoaded Origin = "loaded"
)

// Example is one training text attached to a label.
type Example struct {
	ID     uuid.UUID `json:"id"`
	Text   string    `json:"text"`
	Origin Origin    `json:"origin"`
}

func newExample(text string, origin Origin) Example {
	return Example{ID: uuid.New(), Text: text, Origin: origin}
}

// canonical returns the texts of New records, in order.
func canonical(records []Example) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		if r.Origin == OriginNew {
			out = append(out, r.Text)
		}
	}
	return out
}

// working returns every text, Loaded records first.
func working(records []Example) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		if r.Origin == OriginLoaded {
			out = append(out, r.Text)
		}
	}
	for _, r := range records {
		if r.Origin == OriginNew {
			out = append(out, r.Text)
		}
	}
	return out
}

func containsText(records []Example, origin Origin, text string) bool {
	for _, r := range records {
		if r.Origin == origin && r.Text == text {
			return true
		}
	}
	return false
}
