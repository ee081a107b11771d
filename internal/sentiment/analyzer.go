package sentiment

import (
	"strings"
	"unicode"
)

// Result of scoring one text. Comparative is Score divided by the token count.
type Result struct {
	Score       int
	Comparative float64
	Tokens      []string
	Positive    []string
	Negative    []string
}

// Analyzer scores text with a word valence lexicon (-5..5). A valence word
// directly after a negator counts with the opposite sign.
type Analyzer struct {
	lexicon  map[string]int
	negators map[string]struct{}
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{lexicon: defaultLexicon, negators: defaultNegators}
}

// WithLexicon returns an analyzer that also knows extra, overriding defaults.
func (a *Analyzer) WithLexicon(extra map[string]int) *Analyzer {
	merged := make(map[string]int, len(a.lexicon)+len(extra))
	for k, v := range a.lexicon {
		merged[k] = v
	}
	for k, v := range extra {
		merged[strings.ToLower(k)] = v
	}
	return &Analyzer{lexicon: merged, negators: a.negators}
}

func (a *Analyzer) Analyze(text string) Result {
	tokens := Tokenize(text)
	result := Result{Tokens: tokens}

	for i, token := range tokens {
		valence, ok := a.lexicon[token]
		if !ok {
			continue
		}
		if i > 0 {
			if _, negated := a.negators[tokens[i-1]]; negated {
				valence = -valence
			}
		}
		result.Score += valence
		if valence > 0 {
			result.Positive = append(result.Positive, token)
		} else if valence < 0 {
			result.Negative = append(result.Negative, token)
		}
	}

	if len(tokens) > 0 {
		result.Comparative = float64(result.Score) / float64(len(tokens))
	}
	return result
}

// Tokenize lowercases text, drops punctuation except apostrophes and hyphens
// and splits on whitespace.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'', r == '-':
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, text)
	return strings.Fields(cleaned)
}
