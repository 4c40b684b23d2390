package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	regexp "github.com/grafana/regexp"
	"github.com/grafov/m3u8"

	"kptv-catalog/work/logger"
	"kptv-catalog/work/types"
	"kptv-catalog/work/utils"
)

// Content classification heuristics, applied to URL and name. Order
// matters: VOD file extensions are checked first, then series markers,
// then VOD path segments; anything left is a live channel.
var (
	vodExtRe      = regexp.MustCompile(`(?i)\.(mp4|mkv|avi|mov|flv|wmv|webm|m4v|mpg|mpeg)(\?.*)?$`)
	seriesPathRe  = regexp.MustCompile(`(?i)/series/`)
	seriesTokenRe = regexp.MustCompile(`(?i)\b(S\d{1,2}\s*E\d{1,2}|S0\d|E0\d)\b`)
	vodPathRe     = regexp.MustCompile(`(?i)/(movie|vod)s?/`)
)

// Classify determines the stream type of one playlist entry from its name
// and URL.
func Classify(name, url string) types.StreamType {
	if vodExtRe.MatchString(url) {
		return types.StreamTypeVod
	}
	if seriesPathRe.MatchString(url) || seriesTokenRe.MatchString(name) {
		return types.StreamTypeSeries
	}
	if vodPathRe.MatchString(url) {
		return types.StreamTypeVod
	}
	return types.StreamTypeLive
}

// streamURL reports whether a playlist line looks like a stream URL.
func streamURL(line string) bool {
	return strings.HasPrefix(line, "http://") ||
		strings.HasPrefix(line, "https://") ||
		strings.HasPrefix(line, "rtmp://") ||
		strings.HasPrefix(line, "rtsp://")
}

// ParseM3U converts raw playlist text into content records. HLS master
// playlists are decoded with the grafov parser (each variant becomes one
// record); everything else goes through the line-oriented EXTINF scanner.
//
// Malformed playlist syntax never fails the parse: bad lines and orphan
// EXTINF directives are silently dropped and the result simply has fewer
// records. sourceURL names the playlist itself and is only used for
// entries (HLS media playlists) that point back at their own source.
func ParseM3U(data []byte, sourceURL string) []*types.ContentRecord {
	if bytes.Contains(data, []byte("#EXT-X-STREAM-INF")) || bytes.Contains(data, []byte("#EXT-X-TARGETDURATION")) {
		if records := parseHLS(data, sourceURL); records != nil {
			return records
		}
		// fall through to the scanner when grafov rejects the document
		logger.Debug("grafov parser failed for %s, using fallback scanner", sourceURL)
	}
	return scanEXTINF(data)
}

// parseHLS decodes an HLS master or media playlist. Master variants map to
// one record each, carrying resolution/bandwidth attributes so the
// extractor and dedup layers can treat them as quality variants of the same
// logical channel.
func parseHLS(data []byte, sourceURL string) []*types.ContentRecord {
	playlist, listType, err := m3u8.DecodeFrom(bufio.NewReader(bytes.NewReader(data)), true)
	if err != nil {
		return nil
	}

	switch listType {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		records := make([]*types.ContentRecord, 0, len(master.Variants))
		for _, variant := range master.Variants {
			if variant == nil {
				continue
			}
			name := variant.Name
			if name == "" && variant.Resolution != "" {
				name = fmt.Sprintf("Stream_%s", variant.Resolution)
			} else if name == "" {
				name = fmt.Sprintf("Stream_%d", variant.Bandwidth)
			}
			rec := &types.ContentRecord{
				ID:         utils.ContentID(name, variant.URI),
				Name:       name,
				URL:        variant.URI,
				IsLive:     true,
				StreamType: types.StreamTypeLive,
				Attributes: map[string]string{},
			}
			if variant.Bandwidth > 0 {
				rec.Attributes["bandwidth"] = fmt.Sprintf("%d", variant.Bandwidth)
			}
			if variant.Resolution != "" {
				rec.Attributes["resolution"] = variant.Resolution
			}
			records = append(records, rec)
		}
		return records

	case m3u8.MEDIA:
		// A media playlist is a single stream; the playlist URL itself is
		// the thing to play, not its segments.
		return []*types.ContentRecord{{
			ID:         utils.ContentID("Direct Stream", sourceURL),
			Name:       "Direct Stream",
			URL:        sourceURL,
			IsLive:     true,
			StreamType: types.StreamTypeLive,
			Attributes: map[string]string{},
		}}
	}
	return nil
}

// scanEXTINF is the line-oriented parser for IPTV-style playlists: one
// #EXTINF directive line followed (other directives and comments skipped)
// by one URL line forms an entry.
func scanEXTINF(data []byte) []*types.ContentRecord {
	var records []*types.ContentRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pendingAttrs map[string]string
	var pendingName string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXTINF:"):
			// A second EXTINF before a URL orphans the previous one.
			pendingAttrs, pendingName = ParseEXTINF(line)
		case strings.HasPrefix(line, "#"):
			continue
		case pendingAttrs != nil && streamURL(line):
			name := pendingName
			if name == "" {
				name = pendingAttrs["tvg-name"]
			}
			if name == "" {
				name = "Unknown"
			}
			st := Classify(name, line)
			records = append(records, &types.ContentRecord{
				ID:         utils.ContentID(name, line),
				Name:       name,
				URL:        line,
				Logo:       pendingAttrs["tvg-logo"],
				Group:      pendingAttrs["group-title"],
				IsLive:     st == types.StreamTypeLive,
				StreamType: st,
				Attributes: pendingAttrs,
			})
			pendingAttrs, pendingName = nil, ""
		default:
			// Bare URL with no EXTINF, or junk. Skip.
		}
	}
	// scanner.Err is deliberately ignored: input is an in-memory buffer and
	// oversized lines just truncate the tail of a degenerate playlist.
	return records
}

// ParseEXTINF splits an #EXTINF directive line into its key="value"
// attribute map and the trailing display name. The name separator is the
// last comma outside quotes; attribute values may themselves contain
// commas.
func ParseEXTINF(line string) (map[string]string, string) {
	attrs := make(map[string]string)
	line = strings.TrimPrefix(line, "#EXTINF:")

	lastComma := -1
	inQuotes := false
	for i := len(line) - 1; i >= 0; i-- {
		if line[i] == '"' {
			inQuotes = !inQuotes
		} else if line[i] == ',' && !inQuotes {
			lastComma = i
			break
		}
	}
	if lastComma == -1 {
		return attrs, ""
	}

	attrPart := strings.TrimSpace(line[:lastComma])
	name := strings.TrimSpace(line[lastComma+1:])

	parts := splitAttrs(attrPart)
	if len(parts) > 0 {
		attrs["duration"] = parts[0]
	}
	for _, part := range parts[1:] {
		if eq := strings.Index(part, "="); eq != -1 {
			key := part[:eq]
			value := strings.Trim(part[eq+1:], `"`)
			attrs[key] = value
		}
	}
	return attrs, name
}

// splitAttrs splits the attribute part of an EXTINF line on whitespace,
// keeping quoted values (which may contain spaces) intact.
func splitAttrs(s string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case (r == ' ' || r == '\t') && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
