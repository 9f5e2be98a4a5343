package matcher

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Criterion weights. They sum to 1.
const (
	keywordWeight = 0.5
	sectionWeight = 0.2
	lengthWeight  = 0.15
	contactWeight = 0.15

	// resumes shorter than this are scaled down on the length criterion
	targetWords = 250
)

// sections a resume is expected to carry
var sections = []string{"experience", "education", "skills"}

// Result is a resume scored against a job description. All scores are in [0,1].
type Result struct {
	AverageScore     float64
	ATSSimilarity    float64
	IndividualScores []float64
	Matched          []string
	Missing          []string
}

// TotalCriteria is the number of individual criteria.
func (r Result) TotalCriteria() int {
	return len(r.IndividualScores)
}

// Report renders a short human-readable breakdown.
func (r Result) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall match: %d%%\n", int(math.Round(r.AverageScore*100)))
	fmt.Fprintf(&b, "Keyword coverage: %d%%\n", int(math.Round(r.ATSSimilarity*100)))
	if len(r.Matched) > 0 {
		fmt.Fprintf(&b, "Matched: %s\n", strings.Join(r.Matched, ", "))
	}
	if len(r.Missing) > 0 {
		fmt.Fprintf(&b, "Missing: %s\n", strings.Join(r.Missing, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ScoreResume calculates how well resume text matches a job description
func ScoreResume(resume, jobDescription string) Result {
	resumeLower := strings.ToLower(resume)

	keywords, matched, missing := matchKeywords(resumeLower, jobDescription)
	scores := []float64{
		keywords,
		matchSections(resumeLower),
		matchLength(resumeLower),
		matchContact(resumeLower),
	}
	avg := scores[0]*keywordWeight + scores[1]*sectionWeight + scores[2]*lengthWeight + scores[3]*contactWeight

	return Result{
		AverageScore:     clamp(avg),
		ATSSimilarity:    keywords,
		IndividualScores: scores,
		Matched:          matched,
		Missing:          missing,
	}
}

// matchKeywords is the share of description keywords found in the resume
func matchKeywords(resumeLower, description string) (float64, []string, []string) {
	keywords := extractKeywords(strings.ToLower(description))
	if len(keywords) == 0 {
		return 0.5, nil, nil // Neutral if no description
	}

	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(resumeLower, isSeparator) {
		words[w] = true
	}

	var matched, missing []string
	for _, k := range keywords {
		if words[k] {
			matched = append(matched, k)
		} else {
			missing = append(missing, k)
		}
	}
	return float64(len(matched)) / float64(len(keywords)), matched, missing
}

func matchSections(resumeLower string) float64 {
	found := 0
	for _, s := range sections {
		if strings.Contains(resumeLower, s) {
			found++
		}
	}
	return float64(found) / float64(len(sections))
}

func matchLength(resumeLower string) float64 {
	n := len(strings.Fields(resumeLower))
	if n >= targetWords {
		return 1
	}
	return float64(n) / targetWords
}

func matchContact(resumeLower string) float64 {
	score := 0.0
	if strings.Contains(resumeLower, "@") {
		score += 0.5
	}
	digits := 0
	for _, r := range resumeLower {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits >= 7 {
		score += 0.5
	}
	return score
}

// extractKeywords pulls distinct meaningful words out of a description, in order
func extractKeywords(text string) []string {
	// Common stop words to ignore
	stopWords := map[string]bool{
		"a": true, "an": true, "in": true, "on": true, "at": true, "to": true,
		"of": true, "or": true, "by": true, "is": true, "as": true, "be": true,
		"we": true, "it": true, "the": true, "and": true, "with": true, "for": true, "that": true,
		"this": true, "from": true, "your": true, "will": true, "have": true,
		"are": true, "our": true, "you": true, "who": true, "into": true,
		"about": true, "experience": true, "work": true, "team": true,
	}

	seen := make(map[string]bool)
	keywords := []string{}
	for _, word := range strings.FieldsFunc(text, isSeparator) {
		if len(word) < 2 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
	}
	return keywords
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
}

func clamp(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
