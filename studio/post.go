package studio

import (
	"bytes"
	"html/template"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"

	"inkdrop/backup"
	"inkdrop/cache"
	"inkdrop/common"
	"inkdrop/header"
	"inkdrop/models"
)

const (
	maxPostsPerBlog = 3000
	maxPostLength   = 1000000
)

var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(),
	),
)

func (s *StudioModule) listPosts(c *gin.Context) {
	blog := currentBlog(c)

	var posts []models.Post
	if err := s.db.Where("blog_id = ? AND is_page = ? AND is_template_draft = ?", blog.ID, false, false).
		Order("published_date DESC").
		Find(&posts).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "studio_error.html", gin.H{
			"error": "Could not load posts",
			"blog":  blog,
		})
		return
	}

	c.HTML(http.StatusOK, "studio_list_posts.html", gin.H{
		"blog":  blog,
		"posts": posts,
	})
}

func (s *StudioModule) listPages(c *gin.Context) {
	blog := currentBlog(c)

	var pages []models.Post
	if err := s.db.Where("blog_id = ? AND is_page = ? AND is_template_draft = ?", blog.ID, true, false).
		Order("published_date DESC").
		Find(&pages).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "studio_error.html", gin.H{
			"error": "Could not load pages",
			"blog":  blog,
		})
		return
	}

	c.HTML(http.StatusOK, "studio_list_pages.html", gin.H{
		"blog":  blog,
		"pages": pages,
	})
}

// editPost renders the post editor and handles submissions. Both new posts
// (no uid in the path) and existing ones come through here; the submitted
// header block drives every post field via the header parser.
func (s *StudioModule) editPost(c *gin.Context) {
	blog := currentBlog(c)
	uid := c.Param("uid")

	var post *models.Post
	if uid != "" {
		var existing models.Post
		if err := s.db.Where("blog_id = ? AND uid = ?", blog.ID, uid).First(&existing).Error; err != nil {
			c.HTML(http.StatusNotFound, "studio_error.html", gin.H{
				"error": "Post not found",
				"blog":  blog,
			})
			return
		}
		post = &existing
	}

	var errorMessages []string
	headerContent := c.PostForm("header_content")
	bodyContent := c.PostForm("body_content")
	publishParam := c.PostForm("publish")

	if c.Request.Method == http.MethodPost && headerContent != "" {
		// Published posts only change on an explicit save action; autosaves
		// must not touch them.
		if post != nil && post.Publish && publishParam != "true" && publishParam != "false" {
			errorMessages = append(errorMessages, "Published posts cannot be updated automatically. Use 'Save as new draft' to create a draft version.")
			s.renderEditor(c, blog, post, errorMessages)
			return
		}

		var postCount int64
		s.db.Model(&models.Post{}).Where("blog_id = ?", blog.ID).Count(&postCount)
		if postCount >= maxPostsPerBlog {
			errorMessages = append(errorMessages, "You have reached the maximum number of posts. This is a safety feature to prevent abuse. If you're sure you need more, please contact support.")
			s.renderEditor(c, blog, post, errorMessages)
			return
		}

		if len(bodyContent) > maxPostLength {
			errorMessages = append(errorMessages, "Your content is too long. This is a safety feature to prevent abuse. If you're sure you need more, please contact support.")
			s.renderEditor(c, blog, post, errorMessages)
			return
		}

		isNew := post == nil
		if isNew {
			post = s.newPost(blog)
		}
		wasPublished := post.Publish

		timezoneName, _ := c.Cookie("timezone")
		slug, warnings := header.ParsePost(post, headerContent, header.Location(timezoneName))
		errorMessages = append(errorMessages, warnings...)

		post.Slug = uniqueSlug(s.db, blog, post, slug)
		if post.PublishedDate.IsZero() {
			post.PublishedDate = time.Now().UTC()
		}
		post.Content = bodyContent
		post.Publish = publishParam == "true"
		post.LastModified = time.Now().UTC()

		// Saving a published post back as a draft must not touch the
		// published version; the draft becomes a brand new post.
		savingPublishedAsDraft := wasPublished && publishParam == "false"
		if savingPublishedAsDraft {
			post = s.draftCopy(blog, post)
			isNew = true
		}

		if err := s.db.Save(post).Error; err != nil {
			errorMessages = append(errorMessages, "Your post has not been saved. Please try again.")
			s.renderEditor(c, blog, post, errorMessages)
			return
		}

		backup.InThread(s.db, blog)
		cache.ClearForBlog(blog)

		if isNew {
			s.db.Create(&models.Upvote{
				PostID: post.ID,
				HashID: common.SaltAndHash(c, "year"),
			})
		}

		if post.Publish || savingPublishedAsDraft {
			if post.IsPage {
				c.Redirect(http.StatusFound, "/studio/"+blog.Subdomain+"/pages")
			} else {
				c.Redirect(http.StatusFound, "/studio/"+blog.Subdomain+"/posts")
			}
			return
		}
		if isNew {
			c.Redirect(http.StatusFound, "/studio/"+blog.Subdomain+"/post/"+post.UID)
			return
		}
		// Existing draft edits stay on the editor.
	}

	s.renderEditor(c, blog, post, errorMessages)
}

func (s *StudioModule) newPost(blog *models.Blog) *models.Post {
	token, _ := generateToken()
	return &models.Post{
		BlogID:           blog.ID,
		UID:              uuid.NewString(),
		Token:            token,
		MakeDiscoverable: true,
		CommentsEnabled:  true,
		AllTags:          "[]",
		AllTools:         "[]",
		MediaURLs:        "[]",
		CreatedAt:        time.Now().UTC(),
	}
}

// draftCopy clones a published post into a fresh unpublished one.
func (s *StudioModule) draftCopy(blog *models.Blog, original *models.Post) *models.Post {
	draft := s.newPost(blog)
	draft.Title = original.Title
	draft.Slug = uniqueSlug(s.db, blog, draft, original.Slug)
	draft.Content = original.Content
	draft.IsPage = original.IsPage
	draft.MakeDiscoverable = original.MakeDiscoverable
	draft.CommentsEnabled = original.CommentsEnabled
	draft.AllTags = original.AllTags
	draft.AllTools = original.AllTools
	draft.GithubURL = original.GithubURL
	draft.ShortDescription = original.ShortDescription
	draft.MetaDescription = original.MetaDescription
	draft.MetaImage = original.MetaImage
	draft.CanonicalURL = original.CanonicalURL
	draft.ClassName = original.ClassName
	draft.MediaURLs = original.MediaURLs
	draft.PublishedDate = time.Now().UTC()
	draft.LastModified = time.Now().UTC()
	return draft
}

func (s *StudioModule) renderEditor(c *gin.Context, blog *models.Blog, post *models.Post, errorMessages []string) {
	templateHeader, templateBody := splitTemplate(blog.PostTemplate)
	popularTags, popularTools := s.popularTagsAndTools(10)

	c.HTML(http.StatusOK, "studio_post_edit.html", gin.H{
		"blog":           blog,
		"post":           post,
		"errorMessages":  errorMessages,
		"templateHeader": templateHeader,
		"templateBody":   templateBody,
		"isPage":         c.Query("is_page"),
		"popularTags":    popularTags,
		"popularTools":   popularTools,
	})
}

// preview parses the submitted header and body into a transient post and
// renders it without saving anything.
func (s *StudioModule) preview(c *gin.Context) {
	blog := currentBlog(c)

	post := s.newPost(blog)
	headerContent := c.PostForm("header_content")
	bodyContent := c.PostForm("body_content")

	timezoneName, _ := c.Cookie("timezone")
	slug, _ := header.ParsePost(post, headerContent, header.Location(timezoneName))

	post.Slug = cleanSlug(slug)
	if post.Slug == "" {
		post.Slug = common.Slugify(post.Title)
	}
	if post.PublishedDate.IsZero() {
		post.PublishedDate = time.Now().UTC()
	}
	post.Content = bodyContent

	var buf bytes.Buffer
	if err := md.Convert([]byte(post.Content), &buf); err != nil {
		buf.WriteString(post.Content)
	}

	c.HTML(http.StatusOK, "post.html", gin.H{
		"blog":        blog,
		"post":        post,
		"contentHTML": template.HTML(buf.String()),
		"preview":     true,
	})
}

type fieldCount struct {
	Name  string
	Count int
}

// popularTagsAndTools counts tags and tools across all published posts on
// the platform, for editor suggestions.
func (s *StudioModule) popularTagsAndTools(limit int) ([]fieldCount, []fieldCount) {
	var posts []models.Post
	s.db.Where("publish = ? AND is_page = ? AND is_template_draft = ?", true, false, false).
		Select("all_tags", "all_tools").
		Find(&posts)

	tagCounts := map[string]int{}
	toolCounts := map[string]int{}
	for _, post := range posts {
		for _, tag := range post.Tags() {
			tagCounts[tag]++
		}
		for _, tool := range post.Tools() {
			toolCounts[tool]++
		}
	}

	return topCounts(tagCounts, limit), topCounts(toolCounts, limit)
}

func topCounts(counts map[string]int, limit int) []fieldCount {
	ranked := make([]fieldCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, fieldCount{Name: name, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// splitTemplate divides a saved post template into its header and body
// halves on the "___" sentinel.
func splitTemplate(postTemplate string) (string, string) {
	if postTemplate == "" {
		return "", ""
	}
	parts := strings.SplitN(postTemplate, "___", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(postTemplate), ""
}
