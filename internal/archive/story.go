// Package archive implements the story-archive data model: decoding one
// metadata-index line into a Story, interning repeated Author/Tag values,
// and the Fetcher that serves lookups and reads against the loaded table.
package archive

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Story is the central archive record. See UnmarshalJSON for the
// null-coalescing and interning rules that populate it.
type Story struct {
	ID                int32
	Title             string
	URL               string
	DescriptionHTML   string
	ShortDescription  string
	NumChapters       int32
	NumComments       int32
	NumLikes          int32
	NumDislikes       int32
	NumViews          int32
	TotalNumViews     int32
	NumWords          int32
	Rating            int32
	Published         bool
	Submitted         bool
	CompletionStatus  CompletionStatus
	ContentRating     ContentRating
	Status            VisibilityStatus
	Prequel           *int32
	Color             *Color
	DateModified      *time.Time
	DatePublished     *time.Time
	DateUpdated       *time.Time
	Archive           Archive
	Author            *Author
	Chapters          []Chapter
	Tags              []*Tag
	CoverImage        *CoverImage
}

// Archive is the payload-package location plus the archival timestamps.
type Archive struct {
	Path         string
	DateChecked  *time.Time
	DateCreated  *time.Time
	DateFetched  *time.Time
	DateUpdated  *time.Time
}

// Author is content-interned: two JSON author blocks with identical fields
// collapse to the same *Author. See interner.go.
type Author struct {
	ID            int32
	Name          string
	URL           string
	BioHTML       *string
	DateJoined    *time.Time
	Avatar        *Avatar
	NumBlogPosts  *int32
	NumFollowers  *int32
	NumStories    *int32
}

// Avatar holds the twelve size-bucketed avatar URLs, 16px through 512px.
type Avatar struct {
	X16, X32, X48, X64, X96, X128, X160, X192, X256, X320, X384, X512 *string
}

// Chapter is a single chapter record; not interned (chapters are not shared
// across stories).
type Chapter struct {
	ChapterNumber int32
	ID            int32
	Title         string
	URL           string
	NumWords      int32
	NumViews      int32
	Published     bool
	DateModified  *time.Time
	DatePublished *time.Time
}

// Tag is content-interned globally: two JSON tag blocks with identical
// fields collapse to the same *Tag. See interner.go.
type Tag struct {
	ID       int32
	Name     string
	URL      string
	Kind     string
	LegacyID string
}

// CoverImage holds the four size variants of a story's cover art.
type CoverImage struct {
	Full      string
	Large     string
	Medium    string
	Thumbnail string
}

// Color is an RGB triple decoded from a "hex" field containing six hex
// digits.
type Color struct {
	Red, Green, Blue byte
}

// CompletionStatus is the story's completion variant. The JSON value
// "on hiatus" is accepted as an alias for "hiatus".
type CompletionStatus int

const (
	Cancelled CompletionStatus = iota
	Complete
	Hiatus
	Incomplete
)

func (s CompletionStatus) String() string {
	switch s {
	case Cancelled:
		return "cancelled"
	case Complete:
		return "complete"
	case Hiatus:
		return "hiatus"
	case Incomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

func parseCompletionStatus(s string) (CompletionStatus, error) {
	switch s {
	case "cancelled":
		return Cancelled, nil
	case "complete":
		return Complete, nil
	case "hiatus", "on hiatus":
		return Hiatus, nil
	case "incomplete":
		return Incomplete, nil
	default:
		return 0, fmt.Errorf("unknown completion_status %q", s)
	}
}

// ContentRating is the story's content-rating variant.
type ContentRating int

const (
	Everyone ContentRating = iota
	Mature
	Teen
)

func (r ContentRating) String() string {
	switch r {
	case Everyone:
		return "everyone"
	case Mature:
		return "mature"
	case Teen:
		return "teen"
	default:
		return "unknown"
	}
}

func parseContentRating(s string) (ContentRating, error) {
	switch s {
	case "everyone":
		return Everyone, nil
	case "mature":
		return Mature, nil
	case "teen":
		return Teen, nil
	default:
		return 0, fmt.Errorf("unknown content_rating %q", s)
	}
}

// VisibilityStatus is the story's visibility variant.
type VisibilityStatus int

const (
	ApproveQueue VisibilityStatus = iota
	NotVisible
	PostQueue
	Visible
)

func (v VisibilityStatus) String() string {
	switch v {
	case ApproveQueue:
		return "approve_queue"
	case NotVisible:
		return "not_visible"
	case PostQueue:
		return "post_queue"
	case Visible:
		return "visible"
	default:
		return "unknown"
	}
}

func parseVisibilityStatus(s string) (VisibilityStatus, error) {
	switch s {
	case "approve_queue":
		return ApproveQueue, nil
	case "not_visible":
		return NotVisible, nil
	case "post_queue":
		return PostQueue, nil
	case "visible":
		return Visible, nil
	default:
		return 0, fmt.Errorf("unknown status %q", s)
	}
}

// rawArchive mirrors the JSON shape of an archive block exactly; unknown
// fields are rejected by the decoder that parses it.
type rawArchive struct {
	DateChecked *time.Time `json:"date_checked"`
	DateCreated *time.Time `json:"date_created"`
	DateFetched *time.Time `json:"date_fetched"`
	DateUpdated *time.Time `json:"date_updated"`
	Path        string     `json:"path"`
}

type rawAvatar struct {
	X16  *string `json:"16"`
	X32  *string `json:"32"`
	X48  *string `json:"48"`
	X64  *string `json:"64"`
	X96  *string `json:"96"`
	X128 *string `json:"128"`
	X160 *string `json:"160"`
	X192 *string `json:"192"`
	X256 *string `json:"256"`
	X320 *string `json:"320"`
	X384 *string `json:"384"`
	X512 *string `json:"512"`
}

type rawAuthor struct {
	Avatar       *rawAvatar      `json:"avatar"`
	BioHTML      *string         `json:"bio_html"`
	DateJoined   *time.Time      `json:"date_joined"`
	ID           json.RawMessage `json:"id"`
	Name         string          `json:"name"`
	NumBlogPosts *int32          `json:"num_blog_posts"`
	NumFollowers *int32          `json:"num_followers"`
	NumStories   *int32          `json:"num_stories"`
	URL          string          `json:"url"`
}

type rawChapter struct {
	ChapterNumber int32      `json:"chapter_number"`
	DateModified  *time.Time `json:"date_modified"`
	DatePublished *time.Time `json:"date_published"`
	ID            int32      `json:"id"`
	NumViews      int32      `json:"num_views"`
	NumWords      int32      `json:"num_words"`
	Published     bool       `json:"published"`
	Title         *string    `json:"title"`
	URL           string     `json:"url"`
}

type rawCoverImage struct {
	Full      string `json:"full"`
	Large     string `json:"large"`
	Medium    string `json:"medium"`
	Thumbnail string `json:"thumbnail"`
}

type rawTag struct {
	ID       int32  `json:"id"`
	Name     string `json:"name"`
	OldID    string `json:"old_id"`
	Kind     string `json:"type"`
	URL      string `json:"url"`
}

// rawStory mirrors the top-level JSON object. Every field named here is the
// complete accepted set; the decoder rejects anything else.
type rawStory struct {
	Archive           rawArchive        `json:"archive"`
	Author            json.RawMessage   `json:"author"`
	Chapters          []json.RawMessage `json:"chapters"`
	Color             json.RawMessage   `json:"color"`
	CompletionStatus  string            `json:"completion_status"`
	ContentRating     string            `json:"content_rating"`
	CoverImage        *rawCoverImage    `json:"cover_image"`
	DateModified      *time.Time        `json:"date_modified"`
	DatePublished     *time.Time        `json:"date_published"`
	DateUpdated       *time.Time        `json:"date_updated"`
	DescriptionHTML   *string           `json:"description_html"`
	ID                int32             `json:"id"`
	NumChapters       int32             `json:"num_chapters"`
	NumComments       int32             `json:"num_comments"`
	NumDislikes       int32             `json:"num_dislikes"`
	NumLikes          int32             `json:"num_likes"`
	NumViews          int32             `json:"num_views"`
	NumWords          int32             `json:"num_words"`
	Prequel           *int32            `json:"prequel"`
	Published         bool              `json:"published"`
	Rating            int32             `json:"rating"`
	ShortDescription  *string           `json:"short_description"`
	Status            string            `json:"status"`
	Submitted         bool              `json:"submitted"`
	Tags              []json.RawMessage `json:"tags"`
	Title             *string           `json:"title"`
	TotalNumViews     int32             `json:"total_num_views"`
	URL               string            `json:"url"`
}

// strictDecode decodes data into v, rejecting any field not present on v's
// type. Applies at every struct level reached through ordinary (non-raw)
// fields of v.
func strictDecode(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements the archive's decoding rules: null coalescing
// on description_html/short_description/title, author-id
// number-or-string, color hex decoding, interning of author and tags, and
// rejection of unknown fields.
func (s *Story) UnmarshalJSON(data []byte) error {
	var raw rawStory
	if err := strictDecode(data, &raw); err != nil {
		return err
	}

	completion, err := parseCompletionStatus(raw.CompletionStatus)
	if err != nil {
		return err
	}
	content, err := parseContentRating(raw.ContentRating)
	if err != nil {
		return err
	}
	status, err := parseVisibilityStatus(raw.Status)
	if err != nil {
		return err
	}

	author, err := decodeAuthor(raw.Author)
	if err != nil {
		return err
	}

	tags, err := decodeTags(raw.Tags)
	if err != nil {
		return err
	}

	chapters, err := decodeChapters(raw.Chapters)
	if err != nil {
		return err
	}

	var color *Color
	if len(raw.Color) > 0 && string(raw.Color) != "null" {
		color, err = decodeColor(raw.Color)
		if err != nil {
			return err
		}
	}

	var coverImage *CoverImage
	if raw.CoverImage != nil {
		coverImage = &CoverImage{
			Full:      raw.CoverImage.Full,
			Large:     raw.CoverImage.Large,
			Medium:    raw.CoverImage.Medium,
			Thumbnail: raw.CoverImage.Thumbnail,
		}
	}

	*s = Story{
		ID:               raw.ID,
		Title:            nullToText(raw.Title),
		URL:              raw.URL,
		DescriptionHTML:  nullToHTML(raw.DescriptionHTML),
		ShortDescription: nullToText(raw.ShortDescription),
		NumChapters:      raw.NumChapters,
		NumComments:      raw.NumComments,
		NumLikes:         raw.NumLikes,
		NumDislikes:      raw.NumDislikes,
		NumViews:         raw.NumViews,
		TotalNumViews:    raw.TotalNumViews,
		NumWords:         raw.NumWords,
		Rating:           raw.Rating,
		Published:        raw.Published,
		Submitted:        raw.Submitted,
		CompletionStatus: completion,
		ContentRating:    content,
		Status:           status,
		Prequel:          raw.Prequel,
		Color:            color,
		DateModified:     raw.DateModified,
		DatePublished:    raw.DatePublished,
		DateUpdated:      raw.DateUpdated,
		Archive: Archive{
			Path:        raw.Archive.Path,
			DateChecked: raw.Archive.DateChecked,
			DateCreated: raw.Archive.DateCreated,
			DateFetched: raw.Archive.DateFetched,
			DateUpdated: raw.Archive.DateUpdated,
		},
		Author:     author,
		Chapters:   chapters,
		Tags:       tags,
		CoverImage: coverImage,
	}

	return nil
}

func nullToText(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullToHTML(s *string) string {
	if s == nil {
		return "<p></p>"
	}
	return *s
}

func decodeAuthorID(raw json.RawMessage) (int32, error) {
	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return int32(asNumber), nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		n, err := strconv.ParseInt(asString, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("author id string %q does not parse as an integer", asString)
		}
		return int32(n), nil
	}

	return 0, fmt.Errorf("author id is neither a number nor a numeric string")
}

func decodeAuthor(raw json.RawMessage) (*Author, error) {
	var ra rawAuthor
	if err := strictDecode(raw, &ra); err != nil {
		return nil, err
	}

	id, err := decodeAuthorID(ra.ID)
	if err != nil {
		return nil, err
	}

	var avatar *Avatar
	if ra.Avatar != nil {
		avatar = &Avatar{
			X16: ra.Avatar.X16, X32: ra.Avatar.X32, X48: ra.Avatar.X48,
			X64: ra.Avatar.X64, X96: ra.Avatar.X96, X128: ra.Avatar.X128,
			X160: ra.Avatar.X160, X192: ra.Avatar.X192, X256: ra.Avatar.X256,
			X320: ra.Avatar.X320, X384: ra.Avatar.X384, X512: ra.Avatar.X512,
		}
	}

	author := Author{
		ID:           id,
		Name:         ra.Name,
		URL:          ra.URL,
		BioHTML:      ra.BioHTML,
		DateJoined:   ra.DateJoined,
		Avatar:       avatar,
		NumBlogPosts: ra.NumBlogPosts,
		NumFollowers: ra.NumFollowers,
		NumStories:   ra.NumStories,
	}

	return Authors.Intern(author), nil
}

func decodeTags(raws []json.RawMessage) ([]*Tag, error) {
	if raws == nil {
		return nil, nil
	}

	tags := make([]*Tag, 0, len(raws))
	for _, raw := range raws {
		var rt rawTag
		if err := strictDecode(raw, &rt); err != nil {
			return nil, err
		}

		tags = append(tags, Tags.Intern(Tag{
			ID:       rt.ID,
			Name:     rt.Name,
			URL:      rt.URL,
			Kind:     rt.Kind,
			LegacyID: rt.OldID,
		}))
	}

	return tags, nil
}

func decodeChapters(raws []json.RawMessage) ([]Chapter, error) {
	if raws == nil {
		return nil, nil
	}

	chapters := make([]Chapter, 0, len(raws))
	for _, raw := range raws {
		var rc rawChapter
		if err := strictDecode(raw, &rc); err != nil {
			return nil, err
		}

		chapters = append(chapters, Chapter{
			ChapterNumber: rc.ChapterNumber,
			ID:            rc.ID,
			Title:         nullToText(rc.Title),
			URL:           rc.URL,
			NumWords:      rc.NumWords,
			NumViews:      rc.NumViews,
			Published:     rc.Published,
			DateModified:  rc.DateModified,
			DatePublished: rc.DatePublished,
		})
	}

	return chapters, nil
}

// decodeColor extracts the "hex" field from an arbitrary JSON object and
// decodes it to exactly three bytes. Color does not reject unknown fields:
// it only ever reads "hex".
func decodeColor(raw json.RawMessage) (*Color, error) {
	var object map[string]interface{}
	if err := json.Unmarshal(raw, &object); err != nil {
		return nil, fmt.Errorf("color is not a JSON object: %w", err)
	}

	text, ok := object["hex"].(string)
	if !ok {
		return nil, fmt.Errorf("color is missing hex value")
	}

	decoded, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("color hex has invalid value: %w", err)
	}
	if len(decoded) != 3 {
		return nil, fmt.Errorf("color hex has invalid length: got %d bytes, want 3", len(decoded))
	}

	return &Color{Red: decoded[0], Green: decoded[1], Blue: decoded[2]}, nil
}
