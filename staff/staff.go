package staff

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"inkdrop/cache"
	"inkdrop/models"
)

type StaffModule struct {
	db *gorm.DB
}

func NewStaffModule(db *gorm.DB) *StaffModule {
	return &StaffModule{db: db}
}

func (s *StaffModule) RegisterRoutes(router *gin.Engine) {
	staffGroup := router.Group("/staff")
	{
		staffGroup.GET("/login", s.loginPage)
		staffGroup.POST("/login", s.loginPost)
		staffGroup.GET("/logout", s.logout)
		staffGroup.GET("/", s.requireStaffAuth, s.index)
		staffGroup.GET("/reports", s.requireStaffAuth, s.reports)
		staffGroup.POST("/dismiss-report/:reportID", s.requireStaffAuth, s.dismissReport)
		staffGroup.POST("/deactivate-user/:userID", s.requireStaffAuth, s.deactivateUser)
		staffGroup.POST("/reactivate-user/:userID", s.requireStaffAuth, s.reactivateUser)
		staffGroup.POST("/clear-cache/:blogID", s.requireStaffAuth, s.clearBlogCache)
		staffGroup.POST("/clear-all-cache", s.requireStaffAuth, s.clearAllCache)
	}
}

func (s *StaffModule) requireStaffAuth(c *gin.Context) {
	session := sessions.Default(c)
	userID := session.Get("staff_user_id")

	if userID == nil {
		c.Redirect(http.StatusFound, "/staff/login")
		c.Abort()
		return
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		c.Redirect(http.StatusFound, "/staff/login")
		c.Abort()
		return
	}

	if !isStaffEmail(user.Email) {
		session.Clear()
		session.Save()
		c.HTML(http.StatusForbidden, "staff_error.html", gin.H{
			"error": "Not authorized",
		})
		c.Abort()
		return
	}

	c.Set("staff_user", user)
	c.Next()
}

func isStaffEmail(email string) bool {
	staffEmails := os.Getenv("STAFF_EMAILS")
	if staffEmails == "" {
		return false
	}

	for _, e := range strings.Split(staffEmails, ",") {
		if strings.TrimSpace(e) == email {
			return true
		}
	}
	return false
}

func (s *StaffModule) loginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "staff_login.html", gin.H{})
}

func (s *StaffModule) loginPost(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		c.HTML(http.StatusUnauthorized, "staff_login.html", gin.H{
			"error": "Incorrect email or password",
			"email": email,
		})
		return
	}

	if !checkPasswordHash(password, user.PasswordHash) {
		c.HTML(http.StatusUnauthorized, "staff_login.html", gin.H{
			"error": "Incorrect email or password",
			"email": email,
		})
		return
	}

	if !isStaffEmail(user.Email) {
		c.HTML(http.StatusForbidden, "staff_login.html", gin.H{
			"error": "You do not have staff access",
			"email": email,
		})
		return
	}

	session := sessions.Default(c)
	session.Set("staff_user_id", user.ID)
	session.Save()

	c.Redirect(http.StatusFound, "/staff/")
}

func (s *StaffModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.Redirect(http.StatusFound, "/staff/login")
}

func (s *StaffModule) index(c *gin.Context) {
	var blogs []models.Blog
	if err := s.db.Preload("User").Find(&blogs).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "staff_error.html", gin.H{
			"error": "Could not load blogs",
		})
		return
	}

	type BlogWithStats struct {
		Blog      models.Blog
		PostCount int64
	}

	blogsWithStats := make([]BlogWithStats, len(blogs))
	for i, blog := range blogs {
		var postCount int64
		s.db.Model(&models.Post{}).Where("blog_id = ?", blog.ID).Count(&postCount)

		blogsWithStats[i] = BlogWithStats{
			Blog:      blog,
			PostCount: postCount,
		}
	}

	var openReports int64
	s.db.Model(&models.DangerousReport{}).Where("deleted = ?", false).Count(&openReports)

	c.HTML(http.StatusOK, "staff_index.html", gin.H{
		"blogs":       blogsWithStats,
		"openReports": openReports,
	})
}

// reports lists open dangerous-content reports with the reported post
// and its blog, newest first.
func (s *StaffModule) reports(c *gin.Context) {
	var reports []models.DangerousReport
	s.db.Preload("User").Where("deleted = ?", false).Order("created_at DESC").Find(&reports)

	type ReportWithPost struct {
		Report models.DangerousReport
		Post   models.Post
		Blog   models.Blog
	}

	items := make([]ReportWithPost, 0, len(reports))
	for _, report := range reports {
		var post models.Post
		if err := s.db.First(&post, report.PostID).Error; err != nil {
			continue
		}
		var blog models.Blog
		s.db.First(&blog, post.BlogID)

		items = append(items, ReportWithPost{Report: report, Post: post, Blog: blog})
	}

	c.HTML(http.StatusOK, "staff_reports.html", gin.H{
		"reports": items,
	})
}

func (s *StaffModule) dismissReport(c *gin.Context) {
	reportID := c.Param("reportID")

	var report models.DangerousReport
	if err := s.db.Where("deleted = ?", false).First(&report, reportID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}

	report.SoftDelete()
	if err := s.db.Save(&report).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not dismiss report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// deactivateUser takes every blog of the user offline without touching
// their data. The resolver stops answering for inactive owners.
func (s *StaffModule) deactivateUser(c *gin.Context) {
	s.setUserActive(c, false)
}

func (s *StaffModule) reactivateUser(c *gin.Context) {
	s.setUserActive(c, true)
}

func (s *StaffModule) setUserActive(c *gin.Context, active bool) {
	userID := c.Param("userID")

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	user.IsActive = active
	if err := s.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update user"})
		return
	}

	var blogs []models.Blog
	s.db.Where("user_id = ?", user.ID).Find(&blogs)
	for i := range blogs {
		cache.ClearForBlog(&blogs[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"isActive": user.IsActive,
	})
}

func (s *StaffModule) clearBlogCache(c *gin.Context) {
	blogID := c.Param("blogID")

	var blog models.Blog
	if err := s.db.First(&blog, blogID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Blog not found"})
		return
	}

	cache.ClearForBlog(&blog)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cache cleared",
	})
}

func (s *StaffModule) clearAllCache(c *gin.Context) {
	if err := cache.ClearAll(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not clear cache: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cache cleared",
	})
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
