package blog

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"inkdrop/common"
	"inkdrop/models"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	db.AutoMigrate(&models.User{}, &models.UserSettings{}, &models.Blog{},
		&models.Post{}, &models.Upvote{}, &models.Comment{}, &models.DangerousReport{})
	return db
}

var testTemplateNames = []string{
	"landing.html", "blog_home.html", "post.html", "posts_list.html",
	"not_found.html", "public_analytics.html",
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("test-session", store))

	tmpl := template.New("")
	for _, name := range testTemplateNames {
		template.Must(tmpl.New(name).Parse(""))
	}
	router.SetHTMLTemplate(tmpl)

	// test-only login endpoint so handlers can see a session user
	router.GET("/test-login/:id", func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("id"))
		session := sessions.Default(c)
		session.Set("user_id", id)
		session.Save()
		c.Status(http.StatusOK)
	})

	blogModule := NewBlogModule(db, common.NewResolver(db), nil)
	blogModule.RegisterRoutes(router)
	return router
}

func createTestUser(db *gorm.DB, email string) *models.User {
	user := &models.User{
		Email:        email,
		PasswordHash: "hashedpassword",
		IsActive:     true,
	}
	db.Create(user)
	return user
}

func createTestBlog(db *gorm.DB, userID int) *models.Blog {
	blog := &models.Blog{
		UserID:    userID,
		Title:     "Test Blog",
		Subdomain: "testblog",
	}
	db.Create(blog)
	return blog
}

func createTestPost(db *gorm.DB, blogID int, slug string, publish bool) *models.Post {
	post := &models.Post{
		BlogID:        blogID,
		UID:           "uid-" + slug,
		Token:         "token-" + slug,
		Title:         "Test Post",
		Slug:          slug,
		Content:       "# Test Content\n\nThis is a **test** post.",
		Publish:       publish,
		PublishedDate: time.Now().UTC(),
		AllTags:       `["go"]`,
		AllTools:      `["vim"]`,
	}
	db.Create(post)
	return post
}

func doRequest(router *gin.Engine, method, host, target string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Host = host
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHome_MainSite(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	router := setupTestRouter(db)

	w := doRequest(router, "GET", "example.com", "/", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHome_TenantBlog(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	createTestBlog(db, user.ID)
	router := setupTestRouter(db)

	w := doRequest(router, "GET", "testblog.example.com", "/", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHome_UnknownHost(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	router := setupTestRouter(db)

	w := doRequest(router, "GET", "ghost.example.com", "/", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPost_Published(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)
	createTestPost(db, blog.ID, "launch", true)
	router := setupTestRouter(db)

	w := doRequest(router, "GET", "testblog.example.com", "/launch", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Tag"), "testblog_")
}

func TestPost_SlugCaseInsensitive(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)
	createTestPost(db, blog.ID, "launch", true)
	router := setupTestRouter(db)

	w := doRequest(router, "GET", "testblog.example.com", "/LAUNCH", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPost_MultiSegmentSlug(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)
	createTestPost(db, blog.ID, "notes/2024/launch", true)
	router := setupTestRouter(db)

	w := doRequest(router, "GET", "testblog.example.com", "/notes/2024/launch", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPost_AliasRedirect(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)
	post := createTestPost(db, blog.ID, "new-name", true)
	post.Alias = "old-name"
	db.Save(post)
	router := setupTestRouter(db)

	w := doRequest(router, "GET", "testblog.example.com", "/old-name", nil)

	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/new-name", w.Header().Get("Location"))
}

func TestPost_AliasRedirectCaseInsensitive(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)
	post := createTestPost(db, blog.ID, "new-name", true)
	post.Alias = "Old-Name"
	db.Save(post)
	router := setupTestRouter(db)

	w := doRequest(router, "GET", "testblog.example.com", "/old-name", nil)

	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/new-name", w.Header().Get("Location"))
}

func TestPost_DraftHiddenWithoutToken(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)
	createTestPost(db, blog.ID, "secret-draft", false)
	router := setupTestRouter(db)

	assert.Equal(t, http.StatusNotFound,
		doRequest(router, "GET", "testblog.example.com", "/secret-draft", nil).Code)
	assert.Equal(t, http.StatusNotFound,
		doRequest(router, "GET", "testblog.example.com", "/secret-draft?token=wrong", nil).Code)
	assert.Equal(t, http.StatusOK,
		doRequest(router, "GET", "testblog.example.com", "/secret-draft?token=token-secret-draft", nil).Code)
}

func TestPostsList_DefaultPath(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)
	createTestPost(db, blog.ID, "launch", true)
	router := setupTestRouter(db)

	w := doRequest(router, "GET", "testblog.example.com", "/blog", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPostsList_CustomPath(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)
	blog.BlogPath = "writing"
	db.Save(blog)
	router := setupTestRouter(db)

	assert.Equal(t, http.StatusOK,
		doRequest(router, "GET", "testblog.example.com", "/writing", nil).Code)
	// the default path keeps working alongside the custom one
	assert.Equal(t, http.StatusOK,
		doRequest(router, "GET", "testblog.example.com", "/blog", nil).Code)
}

func TestPublishedPosts_Filters(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)

	goPost := createTestPost(db, blog.ID, "go-post", true)

	rustPost := createTestPost(db, blog.ID, "rust-post", true)
	rustPost.AllTags = `["rust"]`
	db.Save(rustPost)

	draft := createTestPost(db, blog.ID, "draft-post", false)
	_ = draft

	blogModule := NewBlogModule(db, common.NewResolver(db), nil)

	all := blogModule.publishedPosts(blog, "", "")
	assert.Len(t, all, 2)

	tagged := blogModule.publishedPosts(blog, "go", "")
	assert.Len(t, tagged, 1)
	assert.Equal(t, goPost.ID, tagged[0].ID)

	both := blogModule.publishedPosts(blog, "rust", "vim")
	assert.Len(t, both, 1)
	assert.Equal(t, rustPost.ID, both[0].ID)

	none := blogModule.publishedPosts(blog, "go", "emacs")
	assert.Empty(t, none)
}

func TestPublishedPosts_MultiValueFilters(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)

	both := createTestPost(db, blog.ID, "both-tags", true)
	both.AllTags = `["go","rust"]`
	db.Save(both)

	goOnly := createTestPost(db, blog.ID, "go-only", true)
	_ = goOnly

	blogModule := NewBlogModule(db, common.NewResolver(db), nil)

	matched := blogModule.publishedPosts(blog, "go, rust", "")
	assert.Len(t, matched, 1)
	assert.Equal(t, both.ID, matched[0].ID)

	single := blogModule.publishedPosts(blog, "go", "")
	assert.Len(t, single, 2)
}

func TestPublishedPosts_FutureDatedHidden(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)

	createTestPost(db, blog.ID, "live", true)

	scheduled := createTestPost(db, blog.ID, "scheduled", true)
	scheduled.PublishedDate = time.Now().UTC().Add(48 * time.Hour)
	db.Save(scheduled)

	blogModule := NewBlogModule(db, common.NewResolver(db), nil)

	posts := blogModule.publishedPosts(blog, "", "")
	assert.Len(t, posts, 1)
	assert.Equal(t, "live", posts[0].Slug)
}

func TestCleanPath(t *testing.T) {
	assert.Equal(t, "launch", cleanPath("/launch/"))
	assert.Equal(t, "launch", cleanPath("/la\x00unch"))
	assert.Equal(t, "a/b", cleanPath("/a/b"))
	assert.Equal(t, "", cleanPath("/"))
}

func TestMetaDescription(t *testing.T) {
	explicit := &models.Post{MetaDescription: "set by hand", Content: "body"}
	assert.Equal(t, "set by hand", metaDescription(explicit))

	short := &models.Post{ShortDescription: "the short one", Content: "body"}
	assert.Equal(t, "the short one", metaDescription(short))

	long := &models.Post{Content: "word "}
	for i := 0; i < 8; i++ {
		long.Content += long.Content
	}
	derived := metaDescription(long)
	assert.Contains(t, derived, "word")
	assert.LessOrEqual(t, len(derived), 161)
	assert.Contains(t, derived, "...")
}

func TestSitemap(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)
	createTestPost(db, blog.ID, "launch", true)
	createTestPost(db, blog.ID, "hidden", false)
	router := setupTestRouter(db)

	w := doRequest(router, "GET", "testblog.example.com", "/sitemap.xml", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/launch")
	assert.NotContains(t, w.Body.String(), "/hidden")
}

func TestSitemap_IncludesPagesExcludesScheduled(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)

	page := createTestPost(db, blog.ID, "about", true)
	page.IsPage = true
	db.Save(page)

	scheduled := createTestPost(db, blog.ID, "scheduled", true)
	scheduled.PublishedDate = time.Now().UTC().Add(48 * time.Hour)
	db.Save(scheduled)

	router := setupTestRouter(db)

	w := doRequest(router, "GET", "testblog.example.com", "/sitemap.xml", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/about")
	assert.NotContains(t, w.Body.String(), "/scheduled")
}

func TestPing(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	blog := createTestBlog(db, user.ID)
	blog.Domain = "custom.blog"
	db.Save(blog)
	router := setupTestRouter(db)

	assert.Equal(t, http.StatusOK,
		doRequest(router, "GET", "example.com", "/ping?domain=custom.blog", nil).Code)
	assert.Equal(t, http.StatusNotFound,
		doRequest(router, "GET", "example.com", "/ping?domain=nobody.home", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		doRequest(router, "GET", "example.com", "/ping", nil).Code)
}

func TestPublicAnalytics_OffByDefault(t *testing.T) {
	t.Setenv("MAIN_SITE_HOSTS", "example.com")
	db := setupTestDB()
	user := createTestUser(db, "a@example.com")
	createTestBlog(db, user.ID)
	router := setupTestRouter(db)

	w := doRequest(router, "GET", "testblog.example.com", "/analytics", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
