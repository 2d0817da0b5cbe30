package blog

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inkdrop/common"
	"inkdrop/models"
)

const (
	minCommentLength = 5
	maxCommentLength = 1000
	minReportLength  = 5
	maxReportLength  = 100
)

func sessionUserID(c *gin.Context) (int, bool) {
	session := sessions.Default(c)
	raw := session.Get("user_id")
	if raw == nil {
		return 0, false
	}
	userID, ok := raw.(int)
	return userID, ok
}

// tenantPost finds a post by uid on the blog the request host resolves
// to. Posts never leak across tenants.
func (b *BlogModule) tenantPost(c *gin.Context, uid string) (*models.Blog, *models.Post, bool) {
	blog, homepage, found := b.tenant(c)
	if !found || homepage {
		return nil, nil, false
	}

	var post models.Post
	err := b.db.Where("blog_id = ? AND uid = ?", blog.ID, uid).First(&post).Error
	if err != nil {
		return nil, nil, false
	}
	return blog, &post, true
}

func postURL(post *models.Post) string {
	return "/" + post.Slug
}

func redirectError(c *gin.Context, post *models.Post, code string) {
	c.Redirect(http.StatusFound, postURL(post)+"?error="+code)
}

// nicknameSet reports whether the user has claimed a nickname; comments
// and reports can only display one that exists.
func (b *BlogModule) nicknameSet(userID int) bool {
	var settings models.UserSettings
	err := b.db.Where("user_id = ?", userID).First(&settings).Error
	return err == nil && settings.Nickname != ""
}

type commentView struct {
	models.Comment
	DisplayName string
}

// commentViews resolves each comment's display name: the author's
// nickname if they chose it, otherwise their email.
func commentViews(db *gorm.DB, comments []models.Comment) []commentView {
	views := make([]commentView, 0, len(comments))
	for _, comment := range comments {
		name := comment.User.Email
		if comment.UseNickname {
			var settings models.UserSettings
			if err := db.Where("user_id = ?", comment.UserID).First(&settings).Error; err == nil && settings.Nickname != "" {
				name = settings.Nickname
			}
		}
		views = append(views, commentView{Comment: comment, DisplayName: name})
	}
	return views
}

func (b *BlogModule) addComment(c *gin.Context) {
	_, post, ok := b.tenantPost(c, c.Param("uid"))
	if !ok {
		b.notFound(c)
		return
	}

	userID, loggedIn := sessionUserID(c)
	if !loggedIn {
		redirectError(c, post, "login_required")
		return
	}

	if !post.CommentsEnabled {
		b.notFound(c)
		return
	}

	content := strings.TrimSpace(c.PostForm("content"))
	if content == "" {
		redirectError(c, post, "missing_content")
		return
	}
	if length := utf8.RuneCountInString(content); length < minCommentLength || length > maxCommentLength {
		redirectError(c, post, "invalid_content")
		return
	}

	useNickname := c.PostForm("display_option") == "nickname" && b.nicknameSet(userID)
	comment := models.Comment{
		PostID:         post.ID,
		UserID:         userID,
		Content:        content,
		UseNickname:    useNickname,
		UseEmailAsName: !useNickname,
	}
	if err := b.db.Create(&comment).Error; err != nil {
		redirectError(c, post, "submission_failed")
		return
	}

	c.Redirect(http.StatusFound, postURL(post)+"?comment_added=true")
}

// deleteComment soft deletes a comment. Only its author can; everyone
// else sees a 404, same as a comment that never existed.
func (b *BlogModule) deleteComment(c *gin.Context) {
	userID, loggedIn := sessionUserID(c)
	if !loggedIn {
		b.notFound(c)
		return
	}

	commentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		b.notFound(c)
		return
	}

	var comment models.Comment
	if err := b.db.Where("id = ? AND deleted = ?", commentID, false).First(&comment).Error; err != nil {
		b.notFound(c)
		return
	}
	if comment.UserID != userID {
		b.notFound(c)
		return
	}

	var post models.Post
	if err := b.db.First(&post, comment.PostID).Error; err != nil {
		b.notFound(c)
		return
	}

	comment.SoftDelete()
	b.db.Save(&comment)

	c.Redirect(http.StatusFound, postURL(&post)+"?comment_deleted=true")
}

func (b *BlogModule) reportDangerous(c *gin.Context) {
	_, post, ok := b.tenantPost(c, c.Param("uid"))
	if !ok {
		b.notFound(c)
		return
	}

	userID, loggedIn := sessionUserID(c)
	if !loggedIn {
		redirectError(c, post, "login_required")
		return
	}

	comment := strings.TrimSpace(c.PostForm("comment"))
	if comment == "" {
		redirectError(c, post, "missing_report_comment")
		return
	}
	if length := utf8.RuneCountInString(comment); length < minReportLength || length > maxReportLength {
		redirectError(c, post, "invalid_report_comment")
		return
	}

	// One open report per user and post. Dismissed reports don't count.
	var existing int64
	b.db.Model(&models.DangerousReport{}).
		Where("post_id = ? AND user_id = ? AND deleted = ?", post.ID, userID, false).
		Count(&existing)
	if existing > 0 {
		redirectError(c, post, "already_reported")
		return
	}

	report := models.DangerousReport{
		PostID:      post.ID,
		UserID:      userID,
		Comment:     comment,
		UseNickname: c.PostForm("display_option") == "nickname" && b.nicknameSet(userID),
	}
	if err := b.db.Create(&report).Error; err != nil {
		redirectError(c, post, "submission_failed")
		return
	}

	c.Redirect(http.StatusFound, postURL(post)+"?report_added=true")
}

// deleteReport withdraws the user's most recent open report on a post.
func (b *BlogModule) deleteReport(c *gin.Context) {
	_, post, ok := b.tenantPost(c, c.Param("uid"))
	if !ok {
		b.notFound(c)
		return
	}

	userID, loggedIn := sessionUserID(c)
	if !loggedIn {
		redirectError(c, post, "report_delete_failed")
		return
	}

	var report models.DangerousReport
	err := b.db.Where("post_id = ? AND user_id = ? AND deleted = ?", post.ID, userID, false).
		Order("created_at DESC").First(&report).Error
	if err != nil {
		redirectError(c, post, "report_delete_failed")
		return
	}

	report.SoftDelete()
	b.db.Save(&report)

	c.Redirect(http.StatusFound, postURL(post)+"?report_deleted=true")
}

// upvote records one upvote per visitor fingerprint per post. The
// "title" field is a honeypot that must stay empty; bots fill it in.
func (b *BlogModule) upvote(c *gin.Context) {
	_, post, ok := b.tenantPost(c, c.Param("uid"))
	if !ok {
		b.notFound(c)
		return
	}

	if c.PostForm("uid") != post.UID || c.PostForm("title") != "" {
		b.notFound(c)
		return
	}

	hashID := common.SaltAndHash(c, "year")

	var existing models.Upvote
	err := b.db.Where("post_id = ? AND hash_id = ?", post.ID, hashID).First(&existing).Error
	if err == nil {
		b.notFound(c)
		return
	}

	b.db.Create(&models.Upvote{PostID: post.ID, HashID: hashID})
	c.String(http.StatusOK, "Upvoted %s", post.Title)
}
