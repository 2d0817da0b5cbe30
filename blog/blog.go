package blog

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"

	"inkdrop/analytics"
	"inkdrop/cache"
	"inkdrop/common"
	"inkdrop/models"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Linkify),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// stripTags reduces rendered HTML to plain text, for derived meta
// descriptions.
var stripTags = bluemonday.StrictPolicy()

type BlogModule struct {
	db        *gorm.DB
	resolver  *common.Resolver
	analytics *analytics.AnalyticsModule
}

func NewBlogModule(db *gorm.DB, resolver *common.Resolver, analyticsModule *analytics.AnalyticsModule) *BlogModule {
	return &BlogModule{
		db:        db,
		resolver:  resolver,
		analytics: analyticsModule,
	}
}

func (b *BlogModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/", b.home)
	router.GET("/sitemap.xml", b.sitemap)
	router.GET("/robots.txt", b.robots)
	router.GET("/ping", b.ping)
	router.GET("/analytics", b.publicAnalytics)

	router.POST("/upvote/:uid", b.upvote)
	router.POST("/add-comment/:uid", b.addComment)
	router.POST("/delete-comment/:id", b.deleteComment)
	router.POST("/report/:uid", b.reportDangerous)
	router.POST("/delete-report/:uid", b.deleteReport)

	// Post slugs may contain slashes, so they can't be a route param.
	router.NoRoute(b.catchAll)
}

// tenant resolves the blog for the request host. homepage is true when
// the request hit a bare platform host.
func (b *BlogModule) tenant(c *gin.Context) (blog *models.Blog, homepage bool, found bool) {
	blog, found = b.resolver.ResolveAddress(c)
	if found && blog == nil {
		return nil, true, true
	}
	return blog, false, found
}

func (b *BlogModule) notFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "not_found.html", gin.H{})
}

func (b *BlogModule) home(c *gin.Context) {
	blog, homepage, found := b.tenant(c)
	if !found {
		b.notFound(c)
		return
	}
	if homepage {
		c.HTML(http.StatusOK, "landing.html", gin.H{})
		return
	}

	b.analytics.TrackVisit(c, blog.ID, nil)

	c.HTML(http.StatusOK, "blog_home.html", gin.H{
		"blog":    blog,
		"content": template.HTML(renderMarkdown(blog.Content)),
		"posts":   b.publishedPosts(blog, "", ""),
	})
}

// catchAll serves anything that is not a registered route as a post
// lookup on the resolved blog.
func (b *BlogModule) catchAll(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		b.notFound(c)
		return
	}

	blog, homepage, found := b.tenant(c)
	if !found || homepage {
		b.notFound(c)
		return
	}

	slug := cleanPath(c.Request.URL.Path)
	if slug == "" {
		b.notFound(c)
		return
	}

	// "blog" keeps working even when a custom path is set
	if slug == blogPath(blog) || slug == "blog" {
		b.postsList(c, blog)
		return
	}

	b.post(c, blog, slug)
}

// cleanPath normalises a request path into a slug: null bytes dropped,
// wrapping slashes stripped, lowered for the lookup later.
func cleanPath(path string) string {
	path = strings.ReplaceAll(path, "\x00", "")
	return strings.Trim(path, "/")
}

func blogPath(blog *models.Blog) string {
	if blog.BlogPath != "" {
		return blog.BlogPath
	}
	return "blog"
}

func (b *BlogModule) post(c *gin.Context, blog *models.Blog, slug string) {
	var post models.Post
	err := b.db.Where("blog_id = ? AND LOWER(slug) = ? AND is_template_draft = ?",
		blog.ID, strings.ToLower(slug), false).First(&post).Error
	if err != nil {
		// Old slugs live on as aliases and redirect permanently.
		var aliased models.Post
		aliasErr := b.db.Where("blog_id = ? AND LOWER(alias) = ? AND is_template_draft = ?",
			blog.ID, strings.ToLower(slug), false).First(&aliased).Error
		if aliasErr == nil {
			c.Redirect(http.StatusMovedPermanently, "/"+aliased.Slug)
			return
		}
		b.notFound(c)
		return
	}

	// Drafts are only reachable with the post's preview token.
	if !post.Publish && c.Query("token") != post.Token {
		b.notFound(c)
		return
	}

	if post.Publish {
		b.analytics.TrackVisit(c, blog.ID, &post.ID)
	}

	c.Header("Cache-Tag", fmt.Sprintf("%s_%d", blog.Subdomain, post.ID))

	var upvoteCount int64
	b.db.Model(&models.Upvote{}).Where("post_id = ?", post.ID).Count(&upvoteCount)

	// The upvote highlight is per-visitor. Anonymous renders can end up
	// in the shared page cache, so only session-carrying requests, which
	// bypass the cache, get it.
	upvoted := false
	if _, err := c.Cookie(cache.SessionCookieName); err == nil {
		hashID := common.SaltAndHash(c, "year")
		var mine int64
		b.db.Model(&models.Upvote{}).Where("post_id = ? AND hash_id = ?", post.ID, hashID).Count(&mine)
		upvoted = mine > 0
	}

	var comments []models.Comment
	b.db.Preload("User").Where("post_id = ? AND deleted = ?", post.ID, false).
		Order("created_at").Find(&comments)

	data := gin.H{
		"blog":           blog,
		"post":           &post,
		"content":        template.HTML(renderMarkdown(post.Content)),
		"metaDesc":       metaDescription(&post),
		"upvoteCount":    upvoteCount,
		"upvoted":        upvoted,
		"comments":       commentViews(b.db, comments),
		"commentAdded":   c.Query("comment_added") == "true",
		"commentDeleted": c.Query("comment_deleted") == "true",
		"reportAdded":    c.Query("report_added") == "true",
		"reportDeleted":  c.Query("report_deleted") == "true",
		"errorMessage":   errorMessage(c),
		"viewCount":      b.analytics.PostVisitCount(post.ID),
	}

	if userID, loggedIn := sessionUserID(c); loggedIn {
		var latestReport models.DangerousReport
		reportErr := b.db.Where("post_id = ? AND user_id = ? AND deleted = ?", post.ID, userID, false).
			Order("created_at DESC").First(&latestReport).Error
		if reportErr == nil {
			data["userLatestReport"] = &latestReport
		}
		data["loggedIn"] = true
		data["userID"] = userID
	}

	c.HTML(http.StatusOK, "post.html", data)
}

// errorMessage translates a redirect error code into the message shown
// above the comment form.
func errorMessage(c *gin.Context) string {
	switch c.Query("error") {
	case "login_required":
		return "You need to log in first."
	case "missing_content":
		return "Please write a comment."
	case "invalid_content":
		return "Comments need to be between 5 and 1000 characters."
	case "missing_report_comment":
		return "Please describe the problem."
	case "invalid_report_comment":
		return "Reports need to be between 5 and 100 characters."
	case "already_reported":
		return "You already have an open report on this post."
	case "report_delete_failed":
		return "No open report of yours was found on this post."
	case "submission_failed":
		return "Something went wrong. Please try again."
	}
	return ""
}

func (b *BlogModule) postsList(c *gin.Context, blog *models.Blog) {
	tag := c.Query("q")
	tool := c.Query("tool")

	c.HTML(http.StatusOK, "posts_list.html", gin.H{
		"blog":  blog,
		"posts": b.publishedPosts(blog, tag, tool),
		"tag":   tag,
		"tool":  tool,
	})
}

// publishedPosts lists live posts newest first, optionally narrowed by
// tag and tool filters. Each filter takes a comma-separated list and a
// post must carry every value named. Scheduled posts stay hidden until
// their published date arrives.
func (b *BlogModule) publishedPosts(blog *models.Blog, tag, tool string) []models.Post {
	query := b.db.Where(
		"blog_id = ? AND publish = ? AND is_page = ? AND is_template_draft = ? AND published_date <= ?",
		blog.ID, true, false, false, time.Now().UTC())

	for _, value := range splitFilter(tag) {
		query = query.Where("all_tags LIKE ?", jsonMember(value))
	}
	for _, value := range splitFilter(tool) {
		query = query.Where("all_tools LIKE ?", jsonMember(value))
	}

	var posts []models.Post
	query.Order("published_date DESC").Find(&posts)
	return posts
}

func splitFilter(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

// jsonMember builds a LIKE pattern matching a value inside a
// JSON-encoded string list.
func jsonMember(value string) string {
	return `%"` + strings.ReplaceAll(strings.ReplaceAll(value, `%`, ``), `"`, ``) + `"%`
}

func renderMarkdown(source string) string {
	var buf strings.Builder
	if err := md.Convert([]byte(source), &buf); err != nil {
		return ""
	}
	return buf.String()
}

// metaDescription prefers the explicit header value, then the short
// description, then the first 157 characters of the post text.
func metaDescription(post *models.Post) string {
	if post.MetaDescription != "" {
		return post.MetaDescription
	}
	if post.ShortDescription != "" {
		return post.ShortDescription
	}

	text := strings.TrimSpace(stripTags.Sanitize(renderMarkdown(post.Content)))
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > 157 {
		return string([]rune(text)[:157]) + "..."
	}
	return text
}

func (b *BlogModule) sitemap(c *gin.Context) {
	blog, homepage, found := b.tenant(c)
	if !found || homepage {
		b.notFound(c)
		return
	}

	scheme := "https"
	if c.Request.TLS == nil {
		scheme = "http"
	}
	base := scheme + "://" + c.Request.Host

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	sb.WriteString("  <url><loc>" + base + "/</loc></url>\n")
	// Unlike the posts list, the sitemap carries pages too.
	var posts []models.Post
	b.db.Where(
		"blog_id = ? AND publish = ? AND is_template_draft = ? AND published_date <= ?",
		blog.ID, true, false, time.Now().UTC()).
		Order("published_date DESC").Find(&posts)
	for _, post := range posts {
		sb.WriteString("  <url><loc>" + base + "/" + post.Slug + "</loc><lastmod>" +
			post.LastModified.Format("2006-01-02") + "</lastmod></url>\n")
	}
	sb.WriteString("</urlset>\n")

	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(sb.String()))
}

func (b *BlogModule) robots(c *gin.Context) {
	_, homepage, found := b.tenant(c)
	if !found {
		b.notFound(c)
		return
	}

	body := "User-agent: *\nAllow: /\n"
	if !homepage {
		scheme := "https"
		if c.Request.TLS == nil {
			scheme = "http"
		}
		body += "Sitemap: " + scheme + "://" + c.Request.Host + "/sitemap.xml\n"
	}
	c.String(http.StatusOK, body)
}

// ping answers whether a domain is registered with a blog here. Used to
// verify custom domain DNS before switching traffic over.
func (b *BlogModule) ping(c *gin.Context) {
	domain := strings.ToLower(strings.TrimSpace(c.Query("domain")))
	if domain == "" {
		c.String(http.StatusBadRequest, "no domain given")
		return
	}

	if _, ok := b.resolver.BlogByDomain(domain); ok {
		c.String(http.StatusOK, "ok")
		return
	}
	c.String(http.StatusNotFound, "unknown domain")
}

func (b *BlogModule) publicAnalytics(c *gin.Context) {
	blog, homepage, found := b.tenant(c)
	if !found || homepage || !blog.PublicAnalytics {
		b.notFound(c)
		return
	}

	// Public dashboards are an upgraded-account feature.
	var settings models.UserSettings
	if err := b.db.Where("user_id = ?", blog.UserID).First(&settings).Error; err != nil || !settings.Upgraded {
		b.notFound(c)
		return
	}

	c.HTML(http.StatusOK, "public_analytics.html", gin.H{
		"blog":   blog,
		"visits": b.analytics.VisitsByDay(blog.ID, 30),
	})
}
