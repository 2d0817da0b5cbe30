// Package header reads the raw `key: value` block that prefixes every
// authoring submission and populates post or blog fields from it. Parsing is
// total: malformed lines produce human-readable warnings, never errors, and
// every remaining line is still processed.
package header

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"inkdrop/common"
	"inkdrop/models"
)

// Value is a header field value after coercion. The literal strings "true"
// and "false" (any case) become booleans; everything else stays raw text.
type Value struct {
	Raw    string
	Bool   bool
	IsBool bool
}

func coerce(raw string) Value {
	switch strings.ToLower(raw) {
	case "true":
		return Value{Raw: raw, Bool: true, IsBool: true}
	case "false":
		return Value{Raw: raw, Bool: false, IsBool: true}
	}
	return Value{Raw: raw}
}

var htmlTags = regexp.MustCompile(`<[^>]+>`)

// lines splits a header block on CRLF, drops empty lines, strips embedded
// markup and splits each line on the first colon. Lines with no colon are
// skipped rather than treated as an error.
func lines(headerContent string) [][2]string {
	var out [][2]string
	for _, item := range strings.Split(headerContent, "\r\n") {
		if item == "" {
			continue
		}
		clean := htmlTags.ReplaceAllString(item, "")
		name, value, found := strings.Cut(clean, ":")
		if !found {
			continue
		}
		out = append(out, [2]string{strings.TrimSpace(name), strings.TrimSpace(value)})
	}
	return out
}

// postState carries the parse target plus the bits that are not plain field
// assignments: the proposed slug (resolved for uniqueness by the caller) and
// the timezone the visitor declared for date input.
type postState struct {
	post *models.Post
	loc  *time.Location
	slug string
}

// postFields is the explicit dispatch table for post headers. Each setter
// returns a warning string, or "" when the field was applied.
var postFields = map[string]func(*postState, Value) string{
	"title": func(s *postState, v Value) string {
		if v.Raw != "" {
			s.post.Title = v.Raw
		}
		return ""
	},
	"short_description": func(s *postState, v Value) string {
		s.post.ShortDescription = truncate(v.Raw, 100)
		return ""
	},
	"link": func(s *postState, v Value) string {
		s.slug = v.Raw
		return ""
	},
	"alias": func(s *postState, v Value) string {
		s.post.Alias = v.Raw
		return ""
	},
	"published_date": func(s *postState, v Value) string {
		if v.Raw == "" {
			s.post.PublishedDate = time.Now().UTC()
			return ""
		}
		parsed, ok := parseDate(strings.ReplaceAll(v.Raw, "/", "-"), s.loc)
		if !ok {
			return "Bad date format. Use YYYY-MM-DD HH:MM"
		}
		s.post.PublishedDate = parsed
		return ""
	},
	"tags": func(s *postState, v Value) string {
		s.post.AllTags = encodeList(v.Raw)
		return ""
	},
	"tools": func(s *postState, v Value) string {
		s.post.AllTools = encodeList(v.Raw)
		return ""
	},
	"github_url": func(s *postState, v Value) string {
		s.post.GithubURL = v.Raw
		return ""
	},
	"comments_enabled": func(s *postState, v Value) string {
		if !v.IsBool {
			return `comments_enabled needs to be "true" or "false"`
		}
		s.post.CommentsEnabled = v.Bool
		return ""
	},
	"media_urls": func(s *postState, v Value) string {
		if v.Raw == "" {
			s.post.MediaURLs = "[]"
			return ""
		}
		var urls []string
		if err := json.Unmarshal([]byte(v.Raw), &urls); err != nil {
			return "Invalid media_urls format"
		}
		s.post.MediaURLs = mustEncode(urls)
		return ""
	},
	"make_discoverable": func(s *postState, v Value) string {
		if !v.IsBool {
			return `make_discoverable needs to be "true" or "false"`
		}
		s.post.MakeDiscoverable = v.Bool
		return ""
	},
	"is_page": func(s *postState, v Value) string {
		if !v.IsBool {
			return `is_page needs to be "true" or "false"`
		}
		s.post.IsPage = v.Bool
		return ""
	},
	"class_name": func(s *postState, v Value) string {
		s.post.ClassName = common.Slugify(v.Raw)
		return ""
	},
	"canonical_url": func(s *postState, v Value) string {
		s.post.CanonicalURL = v.Raw
		return ""
	},
	"meta_description": func(s *postState, v Value) string {
		s.post.MetaDescription = v.Raw
		return ""
	},
	"meta_image": func(s *postState, v Value) string {
		s.post.MetaImage = v.Raw
		return ""
	},
}

// ParsePost populates post fields from a raw header block. It first resets
// every header-controlled field so that re-parsing the same block always
// lands on the same state, then dispatches each line through postFields.
// It returns the proposed slug (empty when no link: line was given) and the
// collected warnings. The caller owns persistence and slug uniqueness.
func ParsePost(post *models.Post, headerContent string, loc *time.Location) (string, []string) {
	resetPost(post)

	state := &postState{post: post, loc: loc}
	var warnings []string

	for _, line := range lines(headerContent) {
		name := line[0]
		value := coerce(line[1])

		set, known := postFields[name]
		if !known {
			warnings = append(warnings, name+" is an unrecognised header option")
			continue
		}
		if warning := set(state, value); warning != "" {
			warnings = append(warnings, warning)
		}
	}

	if post.Title == "" {
		post.Title = "New drop"
	}

	return state.slug, warnings
}

// resetPost clears everything the header block drives, except the
// title: a block without a title line keeps the post's existing one.
func resetPost(post *models.Post) {
	post.Alias = ""
	post.ClassName = ""
	post.CanonicalURL = ""
	post.MetaDescription = ""
	post.MetaImage = ""
	post.ShortDescription = ""
	post.IsPage = false
	post.MakeDiscoverable = true
	post.AllTags = "[]"
	post.AllTools = "[]"
	post.GithubURL = ""
	post.CommentsEnabled = true
	post.MediaURLs = "[]"
}

// blogFields is the dispatch table for the blog homepage header.
var blogFields = map[string]func(*models.Blog, Value) string{
	"title": func(b *models.Blog, v Value) string {
		b.Title = v.Raw
		return ""
	},
	"favicon": func(b *models.Blog, v Value) string {
		if len(v.Raw) >= 100 {
			return "Favicon is too long. Use an emoji."
		}
		b.Favicon = v.Raw
		return ""
	},
	"meta_description": func(b *models.Blog, v Value) string {
		b.MetaDescription = v.Raw
		return ""
	},
	"meta_image": func(b *models.Blog, v Value) string {
		b.MetaImage = v.Raw
		return ""
	},
}

// ParseBlog populates blog homepage fields from a raw header block and
// returns the collected warnings.
func ParseBlog(blog *models.Blog, headerContent string) []string {
	blog.Favicon = ""
	blog.MetaDescription = ""
	blog.MetaImage = ""

	var warnings []string
	for _, line := range lines(headerContent) {
		name := line[0]
		value := coerce(line[1])

		set, known := blogFields[name]
		if !known {
			warnings = append(warnings, name+" is an unrecognised header option")
			continue
		}
		if warning := set(blog, value); warning != "" {
			warnings = append(warnings, warning)
		}
	}

	if blog.Title == "" {
		blog.Title = "My blog"
	}

	return warnings
}

// Location resolves a timezone name from the visitor's cookie, falling back
// to UTC when the name is unknown.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

var dateFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseDate reads a date or date-time in the visitor's local timezone and
// converts it to UTC for storage.
func parseDate(value string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, value, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// encodeList splits a comma-separated value into a deduplicated,
// order-preserving JSON list.
func encodeList(value string) string {
	var items []string
	seen := map[string]bool{}
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		items = append(items, item)
	}
	return mustEncode(items)
}

func mustEncode(items []string) string {
	if items == nil {
		items = []string{}
	}
	encoded, _ := json.Marshal(items)
	return string(encoded)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
