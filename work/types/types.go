package types

import (
	"time"
)

// StreamType classifies the kind of content a record points at. The catalog
// keeps live channels, movies and series in one flat record list and splits
// them back apart at grouping time, so every record carries its class with it.
type StreamType int

const (
	StreamTypeLive   StreamType = iota // Live television channel
	StreamTypeVod                      // Video-on-demand (movie or standalone file)
	StreamTypeSeries                   // Episodic series content
)

// String returns the lowercase wire name used in URLs and the database.
func (t StreamType) String() string {
	switch t {
	case StreamTypeVod:
		return "vod"
	case StreamTypeSeries:
		return "series"
	default:
		return "live"
	}
}

// ParseStreamType maps a wire name back to a StreamType. Unknown values
// default to live, matching the classifier's own fallback.
func ParseStreamType(s string) StreamType {
	switch s {
	case "vod", "movie", "movies":
		return StreamTypeVod
	case "series":
		return StreamTypeSeries
	default:
		return StreamTypeLive
	}
}

// QualityTier ranks stream quality from unknown (lowest) to 4K (highest).
// The numeric ordering is load-bearing: variant selection compares tiers
// directly, and untagged variants must sort after every tagged one.
type QualityTier int

const (
	QualityUnknown QualityTier = iota
	QualitySD
	QualityHD
	QualityFHD
	Quality4K
)

func (q QualityTier) String() string {
	switch q {
	case Quality4K:
		return "4K"
	case QualityFHD:
		return "FHD"
	case QualityHD:
		return "HD"
	case QualitySD:
		return "SD"
	default:
		return ""
	}
}

// ParseQualityTier maps a tier name (as found in config or API input) to its
// QualityTier. Unrecognized input yields QualityUnknown.
func ParseQualityTier(s string) QualityTier {
	switch s {
	case "4K", "4k", "UHD", "uhd":
		return Quality4K
	case "FHD", "fhd", "1080p":
		return QualityFHD
	case "HD", "hd", "720p":
		return QualityHD
	case "SD", "sd", "480p":
		return QualitySD
	default:
		return QualityUnknown
	}
}

// ContentMetadata holds the attributes extracted from a raw playlist title.
// It is derived, never stored: the extractor is a pure function of the title
// string, and zero values mean the attribute was not present in the title.
type ContentMetadata struct {
	CleanName string      // Title with all recognized tags stripped and separators collapsed
	Country   string      // ISO-3166-ish two letter code, upper case ("FR"), or empty
	Language  string      // Language tag as found ("VFF", "VOSTFR", ...), or empty
	Quality   QualityTier // Detected tier, QualityUnknown when untagged
	Year      int         // Release year, 0 when absent
	Season    int         // Season number, 0 when absent
	Episode   int         // Episode number, 0 when absent
}

// ContentRecord is one entry of an ingested playlist: a single physical
// stream or file, before any grouping. Records are immutable after ingestion
// except for enrichment, which only fills fields that are still empty.
//
// ID is a deterministic hash of (name, url) so re-ingesting the same playlist
// yields the same ids and no duplicate records.
type ContentRecord struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	URL        string            `json:"url"`
	Logo       string            `json:"logo,omitempty"`
	Group      string            `json:"group,omitempty"`
	IsLive     bool              `json:"isLive"`
	StreamType StreamType        `json:"streamType"`
	Attributes map[string]string `json:"-"` // Raw EXTINF / API attributes, kept for filtering

	// Enrichment fields, best effort, filled by the metadata providers.
	Rating  float64 `json:"rating,omitempty"`
	Plot    string  `json:"plot,omitempty"`
	Cast    string  `json:"cast,omitempty"`
	Genre   string  `json:"genre,omitempty"`
	Runtime int     `json:"runtime,omitempty"`
	Awards  string  `json:"awards,omitempty"`
}

// ContentVariant is one physical stream representing a canonical content
// item at a specific quality/language.
type ContentVariant struct {
	ID       string      `json:"id"`
	URL      string      `json:"url"`
	Quality  QualityTier `json:"quality,omitempty"`
	Language string      `json:"language,omitempty"`
}

// DeduplicatedContent is one canonical catalog item built by grouping
// records that share a content key. It always has at least one variant and
// variants keep the encounter order of the source records. The whole set is
// rebuilt from scratch on every ingest pass; treat instances as disposable.
type DeduplicatedContent struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Logo     string           `json:"logo,omitempty"`
	Group    string           `json:"group,omitempty"`
	Type     StreamType       `json:"type"`
	Metadata ContentMetadata  `json:"metadata"`
	Variants []ContentVariant `json:"variants"`
}

// EpgProgram is a single program-guide entry for a live channel. Programs
// for one channel are stored ordered by start time, ascending.
type EpgProgram struct {
	ID          string    `json:"id"`
	ChannelID   int       `json:"channelId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	IsLive      bool      `json:"isLive"`
	Progress    int       `json:"progress,omitempty"` // 0..100, filled for the currently airing program
}

// PlaylistSource identifies where a playlist came from.
type PlaylistSource string

const (
	SourceFile   PlaylistSource = "file"
	SourceURL    PlaylistSource = "url"
	SourceXtream PlaylistSource = "xtream"
)

// Category is an id -> name pair from an Xtream categories listing.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Playlist is one imported source with its records. Playlists are user
// owned: created on import, replaced on re-import, removed on explicit
// deletion.
type Playlist struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Source      PlaylistSource   `json:"source"`
	Records     []*ContentRecord `json:"records,omitempty"`
	Categories  []Category       `json:"categories,omitempty"`
	AddedAt     time.Time        `json:"addedAt"`
	LastUpdated time.Time        `json:"lastUpdated,omitempty"`
}

// Preferences drive variant selection and catalog filtering.
type Preferences struct {
	PreferredQuality  QualityTier `json:"preferredQuality"`
	PreferredLanguage string      `json:"preferredLanguage,omitempty"`
	Countries         []string    `json:"countries,omitempty"` // Empty means all countries
	Groups            []string    `json:"groups,omitempty"`    // Empty means all groups
}
