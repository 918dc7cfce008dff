// Package match scores how well a free-text query names a candidate.
//
// Score combines several lexical heuristics (normalized equality, substring,
// acronym, word overlap, edit distance, word abbreviation, description hit
// and naming patterns) into one additive integer. A case-insensitive exact
// match short-circuits at MaxScore. The scorer is pure: no I/O, no state.
package match

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxScore is the score of a case-insensitive exact match.
const MaxScore = 100

// Heuristic bonuses.
const (
	bonusNormalized      = 95
	bonusPrefix          = 90
	bonusSubstring       = 80
	bonusAcronym         = 85
	bonusAcronymPrefix   = 60
	bonusWordOverlap     = 40
	bonusFuzzy           = 35
	bonusAbbreviation    = 25
	bonusDescription     = 10
	bonusPatternBoundary = 30
	bonusPatternPrefix   = 20
	bonusPatternLoose    = 25
)

// --- Label enum ---

// Label is the coarse quality of a match.
type Label string

const (
	LabelExact   Label = "exact"
	LabelStrong  Label = "strong"
	LabelPartial Label = "partial"
	LabelWeak    Label = "weak"
	LabelMinimal Label = "minimal"
)

// labelRank orders labels from weakest to strongest.
var labelRank = map[Label]int{
	LabelMinimal: 0,
	LabelWeak:    1,
	LabelPartial: 2,
	LabelStrong:  3,
	LabelExact:   4,
}

// AtLeast reports whether l is as good as or better than other.
func (l Label) AtLeast(other Label) bool {
	return labelRank[l] >= labelRank[other]
}

// LabelFor classifies a score into a label.
func LabelFor(score int) Label {
	switch {
	case score >= 90:
		return LabelExact
	case score >= 70:
		return LabelStrong
	case score >= 40:
		return LabelPartial
	case score >= 20:
		return LabelWeak
	default:
		return LabelMinimal
	}
}

// Result is the outcome of scoring one candidate. Score is capped below
// MaxScore for anything but a literal match; Raw is the uncapped sum of
// the heuristic bonuses and orders candidates that share a Score.
type Result struct {
	Score int   `json:"score"`
	Raw   int   `json:"raw"`
	Label Label `json:"label"`
}

// Beats reports whether r ranks strictly ahead of other.
func (r Result) Beats(other Result) bool {
	if r.Score != other.Score {
		return r.Score > other.Score
	}
	return r.Raw > other.Raw
}

// queryStopWords are dropped from queries before normalized comparison.
var queryStopWords = map[string]bool{
	"the":    true,
	"pro":    true,
	"plugin": true,
	"addon":  true,
	"for":    true,
	"and":    true,
}

var (
	versionPattern     = regexp.MustCompile(`\bv?\d+(\.\d+)+\b`)
	parentheticalRegex = regexp.MustCompile(`\s*\([^)]*\)`)
	wordSplitter       = regexp.MustCompile(`[\s\-_]+`)
)

// Score rates how well query names a candidate with the given name and
// description. The result is deterministic and never negative.
func Score(query, name, description string) Result {
	q := strings.ToLower(strings.TrimSpace(query))
	n := strings.ToLower(strings.TrimSpace(name))
	if q == "" || n == "" {
		if q != "" && description != "" && strings.Contains(strings.ToLower(description), q) {
			return Result{Score: bonusDescription, Raw: bonusDescription, Label: LabelFor(bonusDescription)}
		}
		return Result{Score: 0, Label: LabelMinimal}
	}

	if q == n {
		return Result{Score: MaxScore, Raw: MaxScore, Label: LabelExact}
	}

	score := 0
	nq := normalizeQuery(q)
	nn := normalizeCandidate(n)

	if nq != "" && nq == nn {
		score += bonusNormalized
	}

	if idx := strings.Index(n, q); idx == 0 {
		score += bonusPrefix
	} else if idx > 0 {
		score += bonusSubstring
	}

	score += acronymBonus(q, name)
	score += wordOverlapBonus(nq, nn)
	score += fuzzyBonus(q, n)
	score += abbreviationBonus(q, n)

	if description != "" && strings.Contains(strings.ToLower(description), q) {
		score += bonusDescription
	}

	score += patternBonus(q, n)

	raw := score
	// Only a literal match may reach MaxScore.
	if score >= MaxScore {
		score = MaxScore - 1
	}
	return Result{Score: score, Raw: raw, Label: LabelFor(score)}
}

// foldDiacritics strips combining marks so "café" compares equal to "cafe".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// normalizeCandidate lower-cases, folds diacritics, strips version numbers
// and parenthetical suffixes, and collapses separators to single spaces.
func normalizeCandidate(s string) string {
	s = foldDiacritics(strings.ToLower(s))
	s = parentheticalRegex.ReplaceAllString(s, "")
	s = versionPattern.ReplaceAllString(s, "")
	return strings.Join(splitWords(s), " ")
}

// normalizeQuery lower-cases, folds diacritics and drops stop words.
func normalizeQuery(s string) string {
	words := splitWords(foldDiacritics(strings.ToLower(s)))
	kept := words[:0]
	for _, w := range words {
		if !queryStopWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func splitWords(s string) []string {
	var out []string
	for _, w := range wordSplitter.Split(s, -1) {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Acronyms returns the first-letter acronym of a name and, when the name
// has camel-cased words ("BuddyPress"), the acronym that also takes the
// inner capitals ("bpbp" for "BuddyPress Business Profile").
func Acronyms(name string) []string {
	var plain, camel strings.Builder
	for _, w := range splitWords(strings.TrimSpace(name)) {
		r := []rune(w)
		plain.WriteRune(unicode.ToLower(r[0]))
		camel.WriteRune(unicode.ToLower(r[0]))
		for i := 1; i < len(r); i++ {
			if unicode.IsUpper(r[i]) && unicode.IsLower(r[i-1]) {
				camel.WriteRune(unicode.ToLower(r[i]))
			}
		}
	}
	out := []string{plain.String()}
	if camel.String() != plain.String() {
		out = append(out, camel.String())
	}
	return out
}

func acronymBonus(q, name string) int {
	best := 0
	ql := len([]rune(q))
	for _, acr := range Acronyms(name) {
		al := len([]rune(acr))
		if al < 2 {
			continue
		}
		if q == acr {
			return bonusAcronym
		}
		if ql >= 2 && ql < al && strings.HasPrefix(acr, q) {
			b := int(math.Round(float64(ql) / float64(al) * bonusAcronymPrefix))
			if b > best {
				best = b
			}
		}
	}
	return best
}

func wordOverlapBonus(nq, nn string) int {
	var queryWords []string
	for _, w := range strings.Fields(nq) {
		if len([]rune(w)) >= 2 {
			queryWords = append(queryWords, w)
		}
	}
	if len(queryWords) == 0 {
		return 0
	}
	candWords := strings.Fields(nn)

	credit := 0.0
	for _, qw := range queryWords {
		qlen := len([]rune(qw))
		best := 0.0
		for _, cw := range candWords {
			switch {
			case cw == qw:
				best = 1.0
			case qlen >= 3 && strings.HasPrefix(cw, qw):
				best = math.Max(best, 0.8)
			case qlen >= 4 && strings.Contains(cw, qw):
				best = math.Max(best, 0.5)
			}
			if best == 1.0 {
				break
			}
		}
		credit += best
	}

	bonus := int(math.Round(credit / float64(len(queryWords)) * bonusWordOverlap))
	if bonus > bonusWordOverlap {
		bonus = bonusWordOverlap
	}
	return bonus
}

func fuzzyBonus(q, n string) int {
	qr, nr := []rune(q), []rune(n)
	if len(qr) < 3 {
		return 0
	}
	diff := len(nr) - len(qr)
	if diff < 0 {
		diff = -diff
	}
	if diff > len(qr) {
		return 0
	}

	maxLen := len(qr)
	if len(nr) > maxLen {
		maxLen = len(nr)
	}
	dist := Levenshtein(q, n)
	if float64(dist) > 0.2*float64(maxLen) {
		return 0
	}
	return int(math.Round((1 - float64(dist)/float64(maxLen)) * bonusFuzzy))
}

func abbreviationBonus(q, n string) int {
	ql := len([]rune(q))
	best := 0
	for _, w := range splitWords(n) {
		wl := len([]rune(w))
		if wl < ql || !strings.HasPrefix(w, q) {
			continue
		}
		b := int(math.Round(float64(ql) / float64(wl) * bonusAbbreviation))
		if b > best {
			best = b
		}
	}
	if best > bonusAbbreviation {
		best = bonusAbbreviation
	}
	return best
}

// patternBonus tries a word-boundary, a prefix and a separator-tolerant
// pattern in that order; the first that matches wins.
func patternBonus(q, n string) int {
	quoted := regexp.QuoteMeta(q)

	if re, err := regexp.Compile(`\b` + quoted + `\b`); err == nil && re.MatchString(n) {
		return bonusPatternBoundary
	}
	if strings.HasPrefix(n, q) {
		return bonusPatternPrefix
	}

	parts := splitWords(q)
	if len(parts) == 0 {
		parts = []string{q}
	}
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	loose := strings.Join(parts, `[\s\-_]*`)
	if re, err := regexp.Compile(loose); err == nil && re.MatchString(n) {
		return bonusPatternLoose
	}
	return 0
}

// Levenshtein returns the rune-level edit distance between a and b.
func Levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		curr[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}
