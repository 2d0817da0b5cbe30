package studio

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"inkdrop/header"
	"inkdrop/models"
)

// postTemplate manages the blog's reusable post template. Saving keeps a
// hidden unpublished "template draft" post in sync so the template can be
// previewed with the preview token like any other draft.
func (s *StudioModule) postTemplate(c *gin.Context) {
	blog := currentBlog(c)

	var errorMessages []string
	successMessage := ""

	if c.Request.Method == http.MethodPost {
		headerContent := c.PostForm("header_content")
		bodyContent := c.PostForm("body_content")
		action := c.PostForm("action")

		switch action {
		case "save_template":
			wasExisting := blog.PostTemplate != ""
			blog.PostTemplate = joinTemplate(headerContent, bodyContent)

			if err := s.db.Save(blog).Error; err != nil {
				errorMessages = append(errorMessages, "Could not save template")
				break
			}

			if _, err := s.updateTemplateDraft(blog, headerContent, bodyContent); err != nil {
				errorMessages = append(errorMessages, "Could not update template preview")
				break
			}

			if wasExisting {
				successMessage = "Template updated"
			} else {
				successMessage = "Template saved"
			}

		case "delete_template":
			blog.PostTemplate = ""
			if err := s.db.Save(blog).Error; err != nil {
				errorMessages = append(errorMessages, "Could not delete template")
				break
			}
			s.db.Where("blog_id = ? AND is_template_draft = ?", blog.ID, true).Delete(&models.Post{})
			successMessage = "Template deleted"
		}
	}

	templateHeader, templateBody := splitTemplate(blog.PostTemplate)

	var templateDraft *models.Post
	if blog.PostTemplate != "" {
		var draft models.Post
		if err := s.db.Where("blog_id = ? AND is_template_draft = ?", blog.ID, true).First(&draft).Error; err == nil {
			templateDraft = &draft
		}
	}

	popularTags, popularTools := s.popularTagsAndTools(10)

	c.HTML(http.StatusOK, "studio_post_template.html", gin.H{
		"blog":           blog,
		"templateHeader": templateHeader,
		"templateBody":   templateBody,
		"popularTags":    popularTags,
		"popularTools":   popularTools,
		"errorMessages":  errorMessages,
		"successMessage": successMessage,
		"templateDraft":  templateDraft,
	})
}

func joinTemplate(headerContent, bodyContent string) string {
	switch {
	case headerContent != "" && bodyContent != "":
		return headerContent + "\n___\n" + bodyContent
	case headerContent != "":
		return headerContent
	default:
		return bodyContent
	}
}

// updateTemplateDraft creates or refreshes the blog's single template draft
// post. The draft is never published and keeps a fixed slug, so a blog has
// at most one of these.
func (s *StudioModule) updateTemplateDraft(blog *models.Blog, headerContent, bodyContent string) (*models.Post, error) {
	var draft models.Post
	err := s.db.Where("blog_id = ? AND is_template_draft = ?", blog.ID, true).First(&draft).Error
	if err != nil {
		token, _ := generateToken()
		draft = models.Post{
			BlogID:          blog.ID,
			UID:             "template-" + blog.Subdomain + "-" + uuid.NewString()[:8],
			Token:           token,
			IsTemplateDraft: true,
			Publish:         false,
			PublishedDate:   time.Now().UTC(),
			CreatedAt:       time.Now().UTC(),
		}
	}

	header.ParsePost(&draft, headerContent, nil)
	if draft.Title == "New drop" {
		draft.Title = "Template Preview"
	}

	draft.Content = bodyContent
	draft.Slug = "template-preview"
	draft.Publish = false
	draft.IsTemplateDraft = true
	draft.MakeDiscoverable = true
	draft.LastModified = time.Now().UTC()

	if err := s.db.Save(&draft).Error; err != nil {
		return nil, err
	}
	return &draft, nil
}
