package studio

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"inkdrop/backup"
	"inkdrop/cache"
	"inkdrop/common"
	"inkdrop/header"
	"inkdrop/models"
)

const maxHomeLength = 100000

// homeEditor is the studio landing page: the blog homepage is edited with
// the same header+body format as posts.
func (s *StudioModule) homeEditor(c *gin.Context) {
	blog := currentBlog(c)

	var errorMessages []string
	headerContent := c.PostForm("header_content")
	bodyContent := c.PostForm("body_content")

	if c.Request.Method == http.MethodPost && headerContent != "" {
		if len(bodyContent) > maxHomeLength {
			errorMessages = append(errorMessages, "Your content is too long. This is a safety feature to prevent abuse. If you're sure you need more, please contact support.")
		} else {
			errorMessages = append(errorMessages, header.ParseBlog(blog, headerContent)...)
			blog.Content = bodyContent
			if blogPath, ok := c.GetPostForm("blog_path"); ok {
				blog.BlogPath = common.Slugify(blogPath)
			}
			blog.LastModified = time.Now().UTC()

			if err := s.db.Save(blog).Error; err != nil {
				errorMessages = append(errorMessages, "Your changes have not been saved. Please try again.")
			} else {
				backup.InThread(s.db, blog)
				cache.ClearForBlog(blog)
			}
		}
	}

	c.HTML(http.StatusOK, "studio_home.html", gin.H{
		"blog":          blog,
		"errorMessages": errorMessages,
		"headerContent": headerContent,
	})
}

func (s *StudioModule) analyticsPage(c *gin.Context) {
	blog := currentBlog(c)

	if c.Request.Method == http.MethodPost {
		blog.PublicAnalytics = c.PostForm("public_analytics") == "true"
		s.db.Save(blog)
	}

	if s.analytics == nil {
		c.HTML(http.StatusOK, "studio_analytics.html", gin.H{
			"blog":             blog,
			"analyticsEnabled": false,
		})
		return
	}

	visitsByDay := s.analytics.VisitsByDay(blog.ID, 30)
	topPosts := s.analytics.TopPosts(blog.ID, 30, 10)

	for i := range topPosts {
		var post models.Post
		if err := s.db.First(&post, topPosts[i].PostID).Error; err == nil {
			topPosts[i].PostTitle = post.Title
		}
	}

	c.HTML(http.StatusOK, "studio_analytics.html", gin.H{
		"blog":             blog,
		"analyticsEnabled": true,
		"visitsByDay":      visitsByDay,
		"topPosts":         topPosts,
	})
}
