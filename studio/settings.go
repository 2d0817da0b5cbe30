package studio

import (
	"net"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"inkdrop/models"
)

var domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}$`)

// customDomain lets upgraded users point their own domain at the blog.
func (s *StudioModule) customDomain(c *gin.Context) {
	blog := currentBlog(c)

	var settings models.UserSettings
	s.db.Where("user_id = ?", blog.UserID).First(&settings)
	if !settings.Upgraded {
		c.Redirect(http.StatusFound, "/upgrade")
		return
	}

	var errorMessages []string

	if c.Request.Method == http.MethodPost {
		customDomain := strings.ToLower(strings.TrimSpace(c.PostForm("custom-domain")))
		customDomain = strings.TrimPrefix(customDomain, "https://")
		customDomain = strings.TrimPrefix(customDomain, "http://")

		if customDomain == "" {
			blog.Domain = ""
			s.db.Save(blog)
		} else {
			var taken int64
			s.db.Model(&models.Blog{}).
				Where("LOWER(domain) = ? AND id != ?", customDomain, blog.ID).
				Count(&taken)

			switch {
			case taken > 0:
				errorMessages = append(errorMessages, customDomain+" is already registered with another blog")
			case !domainPattern.MatchString(customDomain):
				errorMessages = append(errorMessages, customDomain+" is an invalid domain")
			default:
				blog.Domain = customDomain
				s.db.Save(blog)
			}
		}
	}

	if blog.Domain != "" && !domainPointsAtUs(blog.Domain) {
		errorMessages = append(errorMessages, "The DNS records for "+blog.Domain+" have not been set.")
	}

	c.HTML(http.StatusOK, "studio_custom_domain.html", gin.H{
		"blog":          blog,
		"errorMessages": errorMessages,
	})
}

// domainPointsAtUs checks, best effort, whether the custom domain resolves
// to the same address as the platform host.
func domainPointsAtUs(domain string) bool {
	site := strings.Split(os.Getenv("MAIN_SITE_HOSTS"), ",")[0]
	if i := strings.Index(site, ":"); i != -1 {
		site = site[:i]
	}
	if site == "" {
		return true
	}

	ours, err := net.LookupHost(site)
	if err != nil || len(ours) == 0 {
		return true
	}
	theirs, err := net.LookupHost(domain)
	if err != nil {
		return false
	}

	for _, a := range theirs {
		for _, b := range ours {
			if a == b {
				return true
			}
		}
	}
	return false
}

// directives lets upgraded users inject raw markup into the head and the
// end of the body of every rendered page.
func (s *StudioModule) directives(c *gin.Context) {
	blog := currentBlog(c)

	var settings models.UserSettings
	s.db.Where("user_id = ?", blog.UserID).First(&settings)
	if !settings.Upgraded {
		c.Redirect(http.StatusFound, "/upgrade")
		return
	}

	if c.Request.Method == http.MethodPost {
		blog.HeaderDirective = c.PostForm("header")
		blog.FooterDirective = c.PostForm("footer")
		s.db.Save(blog)
	}

	c.HTML(http.StatusOK, "studio_directives.html", gin.H{
		"blog": blog,
	})
}

var nicknamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// accountSettings handles the user's account page. Nicknames are claimed
// once and cannot be changed afterwards.
func (s *StudioModule) accountSettings(c *gin.Context) {
	userID := c.GetInt("user_id")

	var settings models.UserSettings
	if err := s.db.Where("user_id = ?", userID).First(&settings).Error; err != nil {
		settings = models.UserSettings{UserID: userID}
		s.db.Create(&settings)
	}

	successMessage := ""
	errorMessage := ""

	if c.Request.Method == http.MethodPost {
		nickname := strings.TrimSpace(c.PostForm("nickname"))

		switch {
		case nickname != "" && settings.Nickname != "":
			errorMessage = "Nickname cannot be changed once set."
		case nickname != "":
			var taken int64
			s.db.Model(&models.UserSettings{}).
				Where("nickname = ? AND user_id != ?", nickname, userID).
				Count(&taken)

			switch {
			case len(nickname) < 2 || len(nickname) > 30:
				errorMessage = "Nickname must be between 2 and 30 characters."
			case !nicknamePattern.MatchString(nickname):
				errorMessage = "Nickname can only contain letters, numbers, hyphens, and underscores."
			case taken > 0:
				errorMessage = "This nickname is already taken."
			default:
				settings.Nickname = nickname
				if err := s.db.Save(&settings).Error; err != nil {
					errorMessage = "An error occurred. Please try again."
				} else {
					successMessage = "Nickname set successfully!"
				}
			}
		}
	}

	c.HTML(http.StatusOK, "studio_account.html", gin.H{
		"settings":       settings,
		"successMessage": successMessage,
		"errorMessage":   errorMessage,
	})
}
