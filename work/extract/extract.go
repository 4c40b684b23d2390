// Package extract turns noisy free-text playlist titles into structured
// metadata. Providers embed country, quality, language, year and episode
// tags directly in channel and movie names ("FR | TF1 FHD",
// "Inception (2010) [FHD] VFF"); everything here is heuristic pattern
// matching against fixed, ordered tables.
//
// Extraction never fails: unmatched attributes stay at their zero value.
// Each successful match strips the matched token from the working copy
// before the next table runs, so a quality token can never be re-read as a
// language token. Table order is part of the contract (VFF before VF,
// VOSTFR before VO, 4K before FHD before HD) and is pinned by slice order,
// never map iteration.
package extract

import (
	"strconv"
	"strings"

	"github.com/grafana/regexp"

	"kptv-catalog/work/types"
)

// countryPattern pairs a country code with the regex recognizing its code
// and common spelled-out forms anywhere in a title.
type countryPattern struct {
	Code string
	Re   *regexp.Regexp
}

// countryPatterns is scanned in order; first match wins.
var countryPatterns = []countryPattern{
	{"FR", regexp.MustCompile(`(?i)[\[\(]?\b(FR|FRANCE|FRENCH)\b[\]\)]?`)},
	{"UK", regexp.MustCompile(`(?i)[\[\(]?\b(UK|GB|ENGLAND)\b[\]\)]?`)},
	{"US", regexp.MustCompile(`(?i)[\[\(]?\b(USA?)\b[\]\)]?`)},
	{"DE", regexp.MustCompile(`(?i)[\[\(]?\b(DE|GERMANY?|DEUTSCH)\b[\]\)]?`)},
	{"ES", regexp.MustCompile(`(?i)[\[\(]?\b(ES|SPAIN|ESPANA)\b[\]\)]?`)},
	{"IT", regexp.MustCompile(`(?i)[\[\(]?\b(IT|ITALY|ITALIA)\b[\]\)]?`)},
	{"PT", regexp.MustCompile(`(?i)[\[\(]?\b(PT|PORTUGAL)\b[\]\)]?`)},
	{"NL", regexp.MustCompile(`(?i)[\[\(]?\b(NL|NETHERLANDS|HOLLAND)\b[\]\)]?`)},
	{"BE", regexp.MustCompile(`(?i)[\[\(]?\b(BE|BELGIUM|BELGIQUE)\b[\]\)]?`)},
	{"CH", regexp.MustCompile(`(?i)[\[\(]?\b(CH|SWISS|SUISSE)\b[\]\)]?`)},
	{"CA", regexp.MustCompile(`(?i)[\[\(]?\b(CA|CANADA)\b[\]\)]?`)},
	{"AR", regexp.MustCompile(`(?i)[\[\(]?\b(AR|ARABIC)\b[\]\)]?`)},
}

// countryPrefixRe matches the "XX: ", "XX | " and "XX-" prefix forms at the
// start of a title. The captured code is only honored when it is in the
// country table.
var countryPrefixRe = regexp.MustCompile(`^([A-Za-z]{2})\s*[:|\-]\s*`)

type qualityPattern struct {
	Tier types.QualityTier
	Re   *regexp.Regexp
}

// qualityPatterns runs highest tier first so "4K" is never shadowed by a
// lower tier synonym.
var qualityPatterns = []qualityPattern{
	{types.Quality4K, regexp.MustCompile(`(?i)[\[\(]?\b(4K|UHD|2160p)\b[\]\)]?`)},
	{types.QualityFHD, regexp.MustCompile(`(?i)[\[\(]?\b(FHD|1080p)\b[\]\)]?`)},
	{types.QualityHD, regexp.MustCompile(`(?i)[\[\(]?\b(HD|720p)\b[\]\)]?`)},
	{types.QualitySD, regexp.MustCompile(`(?i)[\[\(]?\b(SD|480p)\b[\]\)]?`)},
}

type languagePattern struct {
	Tag string
	Re  *regexp.Regexp
}

// languagePatterns order matters: VFF before VF and VOSTFR before VO, or
// the longer tag would be half-stripped by its prefix.
var languagePatterns = []languagePattern{
	{"MULTI", regexp.MustCompile(`(?i)[\[\(]?\bMULTI\b[\]\)]?`)},
	{"VFF", regexp.MustCompile(`(?i)[\[\(]?\bVFF\b[\]\)]?`)},
	{"TRUEFRENCH", regexp.MustCompile(`(?i)[\[\(]?\bTRUEFRENCH\b[\]\)]?`)},
	{"VOSTFR", regexp.MustCompile(`(?i)[\[\(]?\bVOSTFR\b[\]\)]?`)},
	{"VF", regexp.MustCompile(`(?i)[\[\(]?\bVF\b[\]\)]?`)},
	{"VO", regexp.MustCompile(`(?i)[\[\(]?\bVO\b[\]\)]?`)},
}

var (
	yearRe          = regexp.MustCompile(`[\[\(]?\b((?:19|20)\d\d)\b[\]\)]?`)
	seasonEpisodeRe = regexp.MustCompile(`(?i)\bS(\d{1,2})(?:\s*E(\d{1,2}))?\b`)
	spelledSeasonRe = regexp.MustCompile(`(?i)\b(?:Saison|Season)\s*(\d{1,2})\b`)

	separatorRe    = regexp.MustCompile(`[:|\-]+`)
	emptyBracketRe = regexp.MustCompile(`\[\s*\]|\(\s*\)`)
	spaceRe        = regexp.MustCompile(`\s+`)
)

// Extract derives ContentMetadata from a raw playlist title. Pure and
// idempotent: running Extract over a CleanName strips nothing further.
func Extract(raw string) types.ContentMetadata {
	md := types.ContentMetadata{}
	working := raw

	working = extractCountry(working, &md)

	for _, qp := range qualityPatterns {
		if loc := qp.Re.FindStringIndex(working); loc != nil {
			md.Quality = qp.Tier
			working = stripAt(working, loc)
			break
		}
	}

	for _, lp := range languagePatterns {
		if loc := lp.Re.FindStringIndex(working); loc != nil {
			md.Language = lp.Tag
			working = stripAt(working, loc)
			break
		}
	}

	if m := yearRe.FindStringSubmatchIndex(working); m != nil {
		if y, err := strconv.Atoi(working[m[2]:m[3]]); err == nil {
			md.Year = y
			working = stripAt(working, m[:2])
		}
	}

	working = extractSeasonEpisode(working, &md)

	md.CleanName = cleanName(working, raw)
	return md
}

func extractCountry(working string, md *types.ContentMetadata) string {
	// Prefix form first: "FR: TF1", "FR | TF1", "FR-TF1".
	if m := countryPrefixRe.FindStringSubmatch(working); m != nil {
		code := strings.ToUpper(m[1])
		for _, cp := range countryPatterns {
			if cp.Code == code {
				md.Country = code
				return working[len(m[0]):]
			}
		}
	}

	// Fall back to scanning the whole title; first table entry wins.
	for _, cp := range countryPatterns {
		if loc := cp.Re.FindStringIndex(working); loc != nil {
			md.Country = cp.Code
			return stripAt(working, loc)
		}
	}
	return working
}

func extractSeasonEpisode(working string, md *types.ContentMetadata) string {
	if m := seasonEpisodeRe.FindStringSubmatchIndex(working); m != nil {
		if s, err := strconv.Atoi(working[m[2]:m[3]]); err == nil {
			md.Season = s
		}
		if m[4] >= 0 {
			if e, err := strconv.Atoi(working[m[4]:m[5]]); err == nil {
				md.Episode = e
			}
		}
		return stripAt(working, m[:2])
	}

	if m := spelledSeasonRe.FindStringSubmatchIndex(working); m != nil {
		if s, err := strconv.Atoi(working[m[2]:m[3]]); err == nil {
			md.Season = s
		}
		return stripAt(working, m[:2])
	}
	return working
}

// stripAt removes the matched range, leaving a single space so neighboring
// words do not fuse together.
func stripAt(s string, loc []int) string {
	return s[:loc[0]] + " " + s[loc[1]:]
}

// cleanName collapses leftover separators and whitespace. An empty result
// falls back to the original raw title so a record never loses its name.
func cleanName(working, raw string) string {
	s := emptyBracketRe.ReplaceAllString(working, " ")
	s = separatorRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return raw
	}
	return s
}
