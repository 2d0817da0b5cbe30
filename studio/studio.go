package studio

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"inkdrop/analytics"
	"inkdrop/common"
	emailpkg "inkdrop/email"
	"inkdrop/models"
)

type StudioModule struct {
	db        *gorm.DB
	analytics *analytics.AnalyticsModule
}

func NewStudioModule(db *gorm.DB, analyticsModule *analytics.AnalyticsModule) *StudioModule {
	return &StudioModule{
		db:        db,
		analytics: analyticsModule,
	}
}

func (s *StudioModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/login", s.loginPage)
	router.POST("/login", s.loginPost)
	router.GET("/signup", s.signupPage)
	router.POST("/signup", s.signupPost)
	router.GET("/confirm/:token", s.confirmEmail)
	router.GET("/logout", s.logout)
	router.GET("/dashboard", s.requireAuth, s.dashboard)
	router.GET("/account", s.requireAuth, s.accountSettings)
	router.POST("/account", s.requireAuth, s.accountSettings)
	router.GET("/upgrade", s.requireAuth, s.upgradePage)

	studioGroup := router.Group("/studio/:subdomain")
	studioGroup.Use(s.requireAuth, s.loadBlog)
	{
		studioGroup.GET("/", s.homeEditor)
		studioGroup.POST("/", s.homeEditor)
		studioGroup.GET("/posts", s.listPosts)
		studioGroup.GET("/pages", s.listPages)
		studioGroup.GET("/post/new", s.editPost)
		studioGroup.POST("/post/new", s.editPost)
		studioGroup.GET("/post/:uid", s.editPost)
		studioGroup.POST("/post/:uid", s.editPost)
		studioGroup.POST("/preview", s.preview)
		studioGroup.GET("/template", s.postTemplate)
		studioGroup.POST("/template", s.postTemplate)
		studioGroup.GET("/domain", s.customDomain)
		studioGroup.POST("/domain", s.customDomain)
		studioGroup.GET("/directives", s.directives)
		studioGroup.POST("/directives", s.directives)
		studioGroup.GET("/analytics", s.analyticsPage)
		studioGroup.POST("/analytics", s.analyticsPage)
	}
}

func (s *StudioModule) requireAuth(c *gin.Context) {
	session := sessions.Default(c)
	userID := session.Get("user_id")

	if userID == nil {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}

	c.Set("user_id", userID)
	c.Next()
}

// loadBlog resolves the studio blog for the subdomain in the path. Owners
// always resolve; anyone else needs the operator passport cookie.
func (s *StudioModule) loadBlog(c *gin.Context) {
	subdomain := c.Param("subdomain")
	userID := c.GetInt("user_id")

	var blog models.Blog
	query := s.db.Where("LOWER(subdomain) = ?", strings.ToLower(subdomain))
	if !hasPassport(c) {
		query = query.Where("user_id = ?", userID)
	}

	if err := query.First(&blog).Error; err != nil {
		c.HTML(http.StatusNotFound, "studio_error.html", gin.H{"error": "Blog not found"})
		c.Abort()
		return
	}

	c.Set("blog", &blog)
	c.Next()
}

func hasPassport(c *gin.Context) bool {
	passport := os.Getenv("ADMIN_PASSPORT")
	if passport == "" {
		return false
	}
	cookie, err := c.Cookie("admin_passport")
	return err == nil && cookie == passport
}

func currentBlog(c *gin.Context) *models.Blog {
	blogData, _ := c.Get("blog")
	return blogData.(*models.Blog)
}

// upgradePage explains what an upgraded account unlocks. Billing happens
// off-platform; support flips the flag against the order id.
func (s *StudioModule) upgradePage(c *gin.Context) {
	userID := c.GetInt("user_id")

	var settings models.UserSettings
	s.db.Where("user_id = ?", userID).First(&settings)

	c.HTML(http.StatusOK, "studio_upgrade.html", gin.H{
		"settings": settings,
	})
}

func (s *StudioModule) loginPage(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get("user_id") != nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}

	c.HTML(http.StatusOK, "studio_login.html", gin.H{})
}

func (s *StudioModule) loginPost(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		c.HTML(http.StatusUnauthorized, "studio_login.html", gin.H{
			"error": "Incorrect email or password",
			"email": email,
		})
		return
	}

	if !checkPasswordHash(password, user.PasswordHash) {
		c.HTML(http.StatusUnauthorized, "studio_login.html", gin.H{
			"error": "Incorrect email or password",
			"email": email,
		})
		return
	}

	if !user.EmailVerified {
		c.HTML(http.StatusUnauthorized, "studio_login.html", gin.H{
			"error": "Email not verified. Please check your inbox and confirm your email.",
			"email": email,
		})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	c.Redirect(http.StatusFound, "/dashboard")
}

func (s *StudioModule) signupPage(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get("user_id") != nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}

	c.HTML(http.StatusOK, "studio_signup.html", gin.H{})
}

// signupPost creates the user and their blog in one go. Every account owns
// exactly one blog, claimed by subdomain at signup.
func (s *StudioModule) signupPost(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")
	subdomain := common.Slugify(c.PostForm("subdomain"))
	title := c.PostForm("title")

	formData := gin.H{
		"email":     email,
		"subdomain": subdomain,
		"title":     title,
	}

	if subdomain == "" {
		formData["error"] = "Please choose a subdomain"
		c.HTML(http.StatusBadRequest, "studio_signup.html", formData)
		return
	}

	var existingUser models.User
	if err := s.db.Where("email = ?", email).First(&existingUser).Error; err == nil {
		formData["error"] = "This email is already registered"
		c.HTML(http.StatusBadRequest, "studio_signup.html", formData)
		return
	}

	var existingBlog models.Blog
	if err := s.db.Where("LOWER(subdomain) = ?", strings.ToLower(subdomain)).First(&existingBlog).Error; err == nil {
		formData["error"] = "This subdomain is already taken"
		c.HTML(http.StatusBadRequest, "studio_signup.html", formData)
		return
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		formData["error"] = "Could not create account"
		c.HTML(http.StatusInternalServerError, "studio_signup.html", formData)
		return
	}

	verificationToken, err := generateToken()
	if err != nil {
		formData["error"] = "Could not create account"
		c.HTML(http.StatusInternalServerError, "studio_signup.html", formData)
		return
	}

	user := models.User{
		Email:                  email,
		PasswordHash:           passwordHash,
		EmailVerified:          false,
		EmailVerificationToken: verificationToken,
		IsActive:               true,
	}

	if err := s.db.Create(&user).Error; err != nil {
		formData["error"] = "Could not create account"
		c.HTML(http.StatusInternalServerError, "studio_signup.html", formData)
		return
	}

	s.db.Create(&models.UserSettings{UserID: user.ID})

	if title == "" {
		title = "My blog"
	}

	blog := models.Blog{
		UserID:    user.ID,
		Title:     title,
		Subdomain: subdomain,
	}

	if err := s.db.Create(&blog).Error; err != nil {
		s.db.Delete(&user)
		formData["error"] = "Could not create blog"
		c.HTML(http.StatusInternalServerError, "studio_signup.html", formData)
		return
	}

	emailService := emailpkg.NewEmailService()
	if emailErr := emailService.SendVerificationEmail(user.Email, verificationToken); emailErr != nil {
		log.Printf("Error sending verification email to %s: %v", user.Email, emailErr)
		c.HTML(http.StatusOK, "studio_signup_success.html", gin.H{
			"email":      user.Email,
			"emailError": "The verification email could not be sent. Please contact support.",
		})
		return
	}

	c.HTML(http.StatusOK, "studio_signup_success.html", gin.H{
		"email": user.Email,
	})
}

func (s *StudioModule) confirmEmail(c *gin.Context) {
	token := c.Param("token")

	var user models.User
	if err := s.db.Where("email_verification_token = ? AND email_verification_token != ''", token).First(&user).Error; err != nil {
		c.HTML(http.StatusNotFound, "studio_confirm_email.html", gin.H{
			"success": false,
			"message": "Invalid or expired token",
		})
		return
	}

	user.EmailVerified = true
	user.EmailVerificationToken = ""

	if err := s.db.Save(&user).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "studio_confirm_email.html", gin.H{
			"success": false,
			"message": "Could not confirm email",
		})
		return
	}

	c.HTML(http.StatusOK, "studio_confirm_email.html", gin.H{
		"success": true,
		"message": "Email confirmed. You can now log in.",
	})
}

func (s *StudioModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.Redirect(http.StatusFound, "/login")
}

// dashboard sends the user straight to their blog's studio.
func (s *StudioModule) dashboard(c *gin.Context) {
	userID := c.GetInt("user_id")

	var blog models.Blog
	if err := s.db.Where("user_id = ?", userID).First(&blog).Error; err != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}

	c.Redirect(http.StatusFound, "/studio/"+blog.Subdomain+"/")
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
