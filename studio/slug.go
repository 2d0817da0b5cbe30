package studio

import (
	"math/rand"
	"strconv"
	"strings"
	"unicode"

	"gorm.io/gorm"

	"inkdrop/common"
	"inkdrop/models"
)

// cleanSlug lowercases the input and keeps only letters, digits, '/', '-'
// and '_'. Everything else is silently dropped. One wrapping slash on either
// side is stripped.
func cleanSlug(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '/' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	cleaned = strings.TrimSuffix(cleaned, "/")
	cleaned = strings.TrimPrefix(cleaned, "/")
	return cleaned
}

// uniqueSlug resolves the slug for a post within its blog. User input wins,
// then the title, then a random number. On collision with another post of
// the same blog the slug grows a "-new" suffix until it is unique; the
// post's own current slug never counts as a collision.
func uniqueSlug(db *gorm.DB, blog *models.Blog, post *models.Post, raw string) string {
	slug := cleanSlug(raw)

	if slug == "" {
		slug = common.Slugify(post.Title)
	}
	if slug == "" {
		slug = common.Slugify(strconv.Itoa(rand.Intn(10000)))
	}

	for {
		var count int64
		db.Model(&models.Post{}).
			Where("blog_id = ? AND slug = ? AND id != ?", blog.ID, slug, post.ID).
			Count(&count)
		if count == 0 {
			return slug
		}
		slug += "-new"
	}
}
