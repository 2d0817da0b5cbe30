package studio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"inkdrop/models"
)

func TestCleanSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Post!", "mypost"},
		{"/wrapped/", "wrapped"},
		{"nested/path/post", "nested/path/post"},
		{"Ünïcode-Läbel", "ünïcode-läbel"},
		{"under_score", "under_score"},
		{"!!!", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanSlug(tt.in), "input %q", tt.in)
	}
}

func TestUniqueSlug_NoCollision(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	blog := createTestBlog(db, user.ID)

	post := &models.Post{BlogID: blog.ID, Title: "Fresh"}
	slug := uniqueSlug(db, blog, post, "fresh")

	assert.Equal(t, "fresh", slug)
}

func TestUniqueSlug_Collision(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	blog := createTestBlog(db, user.ID)
	createTestPost(db, blog.ID, "launch", true)

	post := &models.Post{BlogID: blog.ID, Title: "Launch"}
	slug := uniqueSlug(db, blog, post, "launch")

	assert.Equal(t, "launch-new", slug)
}

func TestUniqueSlug_RepeatedCollision(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	blog := createTestBlog(db, user.ID)
	createTestPost(db, blog.ID, "launch", true)
	createTestPost(db, blog.ID, "launch-new", true)

	post := &models.Post{BlogID: blog.ID}
	slug := uniqueSlug(db, blog, post, "launch")

	assert.Equal(t, "launch-new-new", slug)
}

func TestUniqueSlug_OwnSlugNotACollision(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	blog := createTestBlog(db, user.ID)
	existing := createTestPost(db, blog.ID, "launch", true)

	slug := uniqueSlug(db, blog, existing, "launch")

	assert.Equal(t, "launch", slug)
}

func TestUniqueSlug_OtherBlogNotACollision(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	blog := createTestBlog(db, user.ID)

	other := &models.Blog{UserID: user.ID, Title: "Other", Subdomain: "other"}
	db.Create(other)
	createTestPost(db, other.ID, "launch", true)

	post := &models.Post{BlogID: blog.ID}
	slug := uniqueSlug(db, blog, post, "launch")

	assert.Equal(t, "launch", slug)
}

func TestUniqueSlug_FallsBackToTitle(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	blog := createTestBlog(db, user.ID)

	post := &models.Post{BlogID: blog.ID, Title: "Hello World"}
	slug := uniqueSlug(db, blog, post, "")

	assert.Equal(t, "hello-world", slug)
}

func TestUniqueSlug_RandomWhenNothingUsable(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	blog := createTestBlog(db, user.ID)

	post := &models.Post{BlogID: blog.ID}
	slug := uniqueSlug(db, blog, post, "")

	assert.NotEmpty(t, slug)
}
