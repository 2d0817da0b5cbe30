package studio

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"inkdrop/models"
)

func TestEditPost_SaveDraft(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	createTestBlog(db, user.ID)
	studioModule := NewStudioModule(db, nil)
	router := setupTestRouter(studioModule)
	cookies := loginAs(router, user.ID)

	w := doForm(router, "/studio/testblog/post/new", url.Values{
		"header_content": {"title: Hello World"},
		"body_content":   {"first draft"},
		"publish":        {"false"},
	}, cookies)

	assert.Equal(t, http.StatusFound, w.Code)

	var post models.Post
	err := db.Where("title = ?", "Hello World").First(&post).Error
	assert.NoError(t, err)
	assert.False(t, post.Publish)
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, "first draft", post.Content)
	assert.Contains(t, w.Header().Get("Location"), "/studio/testblog/post/"+post.UID)

	// The author's own upvote is recorded on creation.
	var upvotes int64
	db.Model(&models.Upvote{}).Where("post_id = ?", post.ID).Count(&upvotes)
	assert.Equal(t, int64(1), upvotes)
}

func TestEditPost_Publish(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	createTestBlog(db, user.ID)
	studioModule := NewStudioModule(db, nil)
	router := setupTestRouter(studioModule)
	cookies := loginAs(router, user.ID)

	w := doForm(router, "/studio/testblog/post/new", url.Values{
		"header_content": {"title: Launch"},
		"body_content":   {"we shipped"},
		"publish":        {"true"},
	}, cookies)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/studio/testblog/posts", w.Header().Get("Location"))

	var post models.Post
	assert.NoError(t, db.Where("title = ?", "Launch").First(&post).Error)
	assert.True(t, post.Publish)
}

func TestEditPost_BodyTooLongRejected(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	createTestBlog(db, user.ID)
	studioModule := NewStudioModule(db, nil)
	router := setupTestRouter(studioModule)
	cookies := loginAs(router, user.ID)

	w := doForm(router, "/studio/testblog/post/new", url.Values{
		"header_content": {"title: Big"},
		"body_content":   {strings.Repeat("a", maxPostLength+1)},
		"publish":        {"true"},
	}, cookies)

	// The editor is re-rendered with the error, nothing is saved.
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.Post{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestEditPost_QuotaRejected(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	blog := createTestBlog(db, user.ID)

	posts := make([]models.Post, maxPostsPerBlog)
	for i := range posts {
		posts[i] = models.Post{
			BlogID: blog.ID,
			UID:    "uid-" + strconv.Itoa(i),
			Title:  "Filler",
			Slug:   "filler-" + strconv.Itoa(i),
		}
	}
	db.CreateInBatches(posts, 500)

	studioModule := NewStudioModule(db, nil)
	router := setupTestRouter(studioModule)
	cookies := loginAs(router, user.ID)

	w := doForm(router, "/studio/testblog/post/new", url.Values{
		"header_content": {"title: One Too Many"},
		"body_content":   {"text"},
		"publish":        {"false"},
	}, cookies)

	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.Post{}).Where("blog_id = ?", blog.ID).Count(&count)
	assert.Equal(t, int64(maxPostsPerBlog), count)
}

func TestEditPost_PublishedNotTouchedByAutosave(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	blog := createTestBlog(db, user.ID)
	post := createTestPost(db, blog.ID, "live", true)
	studioModule := NewStudioModule(db, nil)
	router := setupTestRouter(studioModule)
	cookies := loginAs(router, user.ID)

	// No publish field, the way the autosave posts the form.
	w := doForm(router, "/studio/testblog/post/uid-live", url.Values{
		"header_content": {"title: Overwritten"},
		"body_content":   {"overwritten"},
	}, cookies)

	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Post
	db.First(&reloaded, post.ID)
	assert.Equal(t, "Test Post", reloaded.Title)
	assert.True(t, reloaded.Publish)
}

func TestHomeEditor_BodyTooLongRejected(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	blog := createTestBlog(db, user.ID)
	blog.Content = "original"
	db.Save(blog)
	studioModule := NewStudioModule(db, nil)
	router := setupTestRouter(studioModule)
	cookies := loginAs(router, user.ID)

	w := doForm(router, "/studio/testblog/", url.Values{
		"header_content": {"title: Test Blog"},
		"body_content":   {strings.Repeat("a", maxHomeLength+1)},
	}, cookies)

	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Blog
	db.First(&reloaded, blog.ID)
	assert.Equal(t, "original", reloaded.Content)
}

func TestHomeEditor_Saves(t *testing.T) {
	db := setupTestDB()
	user := createTestUser(db)
	blog := createTestBlog(db, user.ID)
	studioModule := NewStudioModule(db, nil)
	router := setupTestRouter(studioModule)
	cookies := loginAs(router, user.ID)

	w := doForm(router, "/studio/testblog/", url.Values{
		"header_content": {"title: Renamed Blog"},
		"body_content":   {"hello from the homepage"},
	}, cookies)

	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Blog
	db.First(&reloaded, blog.ID)
	assert.Equal(t, "Renamed Blog", reloaded.Title)
	assert.Equal(t, "hello from the homepage", reloaded.Content)
}
