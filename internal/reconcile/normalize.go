package reconcile

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Edition/format suffixes that differ between APIs for the same book,
// e.g. "(Hardcover)", "[Kindle Edition]", "- Revised".
var editionSuffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[\(\[]?(Hardcover|Paperback|Kindle|E-?book|Audio)[\)\]]?\s*$`),
	regexp.MustCompile(`(?i)\s*[\(\[]?(First|Second|Third|\d+(?:st|nd|rd|th)) Edition[\)\]]?\s*$`),
	regexp.MustCompile(`(?i)\s*[\(\[](Revised|Annotated|Illustrated|Unabridged)[\)\]]\s*$`),
	regexp.MustCompile(`(?i)\s*-\s*(Revised|Annotated|Illustrated)\s*$`),
}

var (
	publisherSuffixes = []struct {
		pattern *regexp.Regexp
		repl    string
	}{
		{regexp.MustCompile(`(?i)\bLTD\.?\b`), "Ltd"},
		{regexp.MustCompile(`(?i)\bINC\.?\b`), "Inc"},
		{regexp.MustCompile(`(?i)\bLLC\.?\b`), "LLC"},
		{regexp.MustCompile(`(?i)\bCO\.?\b`), "Co"},
		{regexp.MustCompile(`(?i)\bCORPORATION\b`), "Corporation"},
		{regexp.MustCompile(`(?i)\bLIMITED\b`), "Limited"},
	}
	publisherRegionSuffix = regexp.MustCompile(`(?i)\b(U\.?S\.?|UK|EU|CA|AU)\b$`)
	trailingPunctuation   = regexp.MustCompile(`[.,;:\s]+$`)
	genreCategoryPrefix   = regexp.MustCompile(`^(fiction|non-fiction)\s*/\s*`)
)

const maxGenreLength = 100

// iso639Map translates common ISO 639-2 three-letter codes to their
// two-letter ISO 639-1 form.
var iso639Map = map[string]string{
	"eng": "en", "fre": "fr", "fra": "fr", "ger": "de", "deu": "de",
	"spa": "es", "ita": "it", "por": "pt", "rus": "ru", "jpn": "ja",
	"chi": "zh", "zho": "zh", "dut": "nl", "nld": "nl", "fin": "fi",
	"swe": "sv", "nor": "no", "dan": "da", "pol": "pl", "ara": "ar",
	"heb": "he", "kor": "ko", "tur": "tr", "hin": "hi", "lat": "la",
	"gre": "el", "ell": "el", "cze": "cs", "ces": "cs", "ukr": "uk",
}

// CollapseWhitespace trims a string and collapses internal whitespace runs
// (including tabs and newlines) into single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeKey produces the case/whitespace-normalized form used as a
// deduplication key. Display values keep their original casing.
func NormalizeKey(s string) string {
	return strings.ToLower(CollapseWhitespace(s))
}

// smartTitleCase capitalizes the first letter of each word. Applied only when
// a value arrives fully upper- or lower-cased, so mixed-case originals keep
// their casing.
func smartTitleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func isAllUpperOrLower(s string) bool {
	hasLetter := false
	allUpper, allLower := true, true
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		hasLetter = true
		if unicode.IsUpper(r) {
			allLower = false
		} else {
			allUpper = false
		}
	}
	return hasLetter && (allUpper || allLower)
}

// cleanTitleCore does the structural part of title cleaning: whitespace
// collapse, edition/format suffix removal and punctuation trimming. Casing is
// left untouched, so this form is what title comparison runs on (a case-only
// difference between sources is a real discrepancy worth recording).
func cleanTitleCore(title string) string {
	cleaned := CollapseWhitespace(title)
	if cleaned == "" {
		return ""
	}

	for _, pattern := range editionSuffixPatterns {
		cleaned = strings.TrimSpace(pattern.ReplaceAllString(cleaned, ""))
	}

	cleaned = CollapseWhitespace(cleaned)
	cleaned = strings.Trim(cleaned, ".,;:-_")
	return strings.TrimSpace(cleaned)
}

// CleanTitle standardizes a title string: structural cleanup plus smart case
// normalization for fully upper- or lower-cased values. Returns "" when
// nothing usable remains.
func CleanTitle(title string) string {
	cleaned := cleanTitleCore(title)
	if isAllUpperOrLower(cleaned) {
		cleaned = smartTitleCase(cleaned)
	}
	return cleaned
}

// CleanPublisher standardizes a publisher name: whitespace and case cleanup,
// legal-entity suffix normalization and trailing punctuation removal.
// Returns "" when nothing usable remains.
func CleanPublisher(publisher string) string {
	cleaned := CollapseWhitespace(publisher)
	if cleaned == "" {
		return ""
	}

	if isAllUpperOrLower(cleaned) {
		cleaned = smartTitleCase(cleaned)
	}

	for _, suffix := range publisherSuffixes {
		cleaned = suffix.pattern.ReplaceAllString(cleaned, suffix.repl)
	}

	cleaned = strings.TrimSpace(trailingPunctuation.ReplaceAllString(cleaned, ""))
	cleaned = strings.TrimSpace(publisherRegionSuffix.ReplaceAllString(cleaned, ""))
	return cleaned
}

// CleanGenre normalizes a genre label for the genre dimension: lowercased,
// whitespace-collapsed, category prefix stripped. Returns "" for labels that
// are empty or implausibly long.
func CleanGenre(genre string) string {
	cleaned := strings.ToLower(CollapseWhitespace(genre))
	cleaned = genreCategoryPrefix.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" || len(cleaned) > maxGenreLength {
		return ""
	}
	return cleaned
}

// NormalizeLanguageCode maps a 2- or 3-letter language code to its ISO 639-1
// two-letter form. Unknown 3-letter codes pass through unchanged; anything
// else returns "".
func NormalizeLanguageCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	switch len(code) {
	case 2:
		return code
	case 3:
		if mapped, ok := iso639Map[code]; ok {
			return mapped
		}
		return code
	default:
		return ""
	}
}

// ParsePublishedDate parses the date formats the sources emit: YYYY, YYYY-MM
// and YYYY-MM-DD. Returns false for anything else.
func ParsePublishedDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if len(s) == len(layout) {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
