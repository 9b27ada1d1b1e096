package preview

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reShowSeasonNum  = regexp.MustCompile(`(?i)^(.*?)\s+S(\d{1,2})\b`)
	reShowSeasonWord = regexp.MustCompile(`(?i)^(.*?)\s+Season\s+(\d{1,2})\b`)
	reShowDisc       = regexp.MustCompile(`(?i)^(.*?)\s+Disc\s+\d{1,2}\b`)
	reYear           = regexp.MustCompile(`\((?:19|20)\d{2}\)`)

	keywordTokens = []string{"complete series", "collection"}
	movieIndicators = []string{"blu-ray", "bluray", "dvd", "edition"}
)

// NamePatternResult is the disc-name detector's output (spec §4.3 step 2).
type NamePatternResult struct {
	IsTV      bool
	Show      string
	Season    int
	Ambiguous bool
}

// detectFromName implements spec §4.3 step 2's cascade of disc-name
// patterns, in priority order: explicit season number, then season word,
// then disc-only/keyword (season defaults to 1), then the short-ambiguous-
// name fallback.
func detectFromName(discName string, ambiguousSearchEnabled bool) NamePatternResult {
	name := strings.TrimSpace(discName)

	if m := reShowSeasonNum.FindStringSubmatch(name); m != nil {
		if season, err := strconv.Atoi(m[2]); err == nil {
			return NamePatternResult{IsTV: true, Show: strings.TrimSpace(m[1]), Season: season}
		}
	}
	if m := reShowSeasonWord.FindStringSubmatch(name); m != nil {
		if season, err := strconv.Atoi(m[2]); err == nil {
			return NamePatternResult{IsTV: true, Show: strings.TrimSpace(m[1]), Season: season}
		}
	}
	if m := reShowDisc.FindStringSubmatch(name); m != nil {
		return NamePatternResult{IsTV: true, Show: strings.TrimSpace(m[1]), Season: 1}
	}
	if show, ok := matchKeyword(name); ok {
		return NamePatternResult{IsTV: true, Show: show, Season: 1}
	}

	if ambiguousSearchEnabled && isShortAmbiguous(name) {
		return NamePatternResult{IsTV: true, Show: name, Season: 1, Ambiguous: true}
	}

	return NamePatternResult{IsTV: false, Show: name}
}

func matchKeyword(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, kw := range keywordTokens {
		if idx := strings.Index(lower, kw); idx >= 0 {
			show := strings.TrimSpace(name[:idx])
			if show == "" {
				show = name
			}
			return show, true
		}
	}
	return "", false
}

// isShortAmbiguous flags 1-3 word names with no movie indicator
// ("(19xx)"/"(20xx)", "blu-ray", "dvd", "edition") as possibly-TV (spec
// §4.3 step 2).
func isShortAmbiguous(name string) bool {
	words := strings.Fields(name)
	if len(words) == 0 || len(words) > 3 {
		return false
	}
	if reYear.MatchString(name) {
		return false
	}
	lower := strings.ToLower(name)
	for _, indicator := range movieIndicators {
		if strings.Contains(lower, indicator) {
			return false
		}
	}
	return true
}

// ParseYear extracts a "(YYYY)" year from a disc name, used both for movie
// metadata lookup and filename synthesis (spec §4.3 step 4, step 7).
func ParseYear(name string) *int {
	m := reYear.FindString(name)
	if m == "" {
		return nil
	}
	y, err := strconv.Atoi(strings.Trim(m, "()"))
	if err != nil {
		return nil
	}
	return &y
}
