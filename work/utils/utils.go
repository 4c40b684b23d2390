package utils

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ContentID computes the stable identifier for a content record. It is a
// deterministic function of (name, url): the same pair always hashes to the
// same id, which keeps re-ingestion idempotent.
func ContentID(name, rawURL string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(name+"|"+rawURL))
}

// LogURL returns rawURL as-is, or an obfuscated rendering when obfuscation
// is enabled. Playlist and API URLs embed credentials, so anything headed
// for a log line goes through here.
func LogURL(obfuscate bool, rawURL string) string {
	if obfuscate {
		return ObfuscateURL(rawURL)
	}
	return rawURL
}

// ObfuscateURL masks the path, query and fragment of a URL, keeping only
// scheme and host.
//
//	http://host/live/user/pass/1.ts?token=x -> http://host/***?***
func ObfuscateURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "***OBFUSCATED***"
	}
	result := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		result += "/***"
	}
	if u.RawQuery != "" {
		result += "?***"
	}
	if u.Fragment != "" {
		result += "#***"
	}
	return result
}

// SanitizeName makes a display name safe for use in URL path segments and
// database keys: whitespace and URL-significant punctuation collapse to
// single underscores.
func SanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch r {
		case ' ', ',', '/', '\\', '?', '&', '=', ':', ';', '|', '*', '<', '>':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case '"', '\'':
			// dropped entirely
		default:
			b.WriteRune(r)
			lastUnderscore = false
		}
	}
	return strings.Trim(b.String(), "_")
}
