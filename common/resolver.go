package common

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inkdrop/models"
)

// Resolver maps an incoming Host header to a blog. A request either lands on
// the platform homepage, a subdomain of one of the platform hosts, or a
// custom domain pointed at us.
type Resolver struct {
	db       *gorm.DB
	hosts    []string
	passport string
}

func NewResolver(db *gorm.DB) *Resolver {
	var hosts []string
	for _, h := range strings.Split(os.Getenv("MAIN_SITE_HOSTS"), ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			hosts = append(hosts, h)
		}
	}

	return &Resolver{
		db:       db,
		hosts:    hosts,
		passport: os.Getenv("ADMIN_PASSPORT"),
	}
}

// ResolveAddress classifies the request host. A nil blog with found=true is
// the platform homepage; found=false means no blog answers to this host,
// which is a normal outcome for unclaimed domains.
func (r *Resolver) ResolveAddress(c *gin.Context) (*models.Blog, bool) {
	host := c.Request.Host

	for _, site := range r.hosts {
		if host == site {
			return nil, true
		}
	}

	for _, site := range r.hosts {
		if strings.Contains(host, site) {
			subdomain := extractSubdomain(host, site)
			if subdomain == "" {
				return nil, false
			}
			return r.blogBySubdomain(subdomain, r.hasPassport(c))
		}
	}

	return r.BlogByDomain(host)
}

// hasPassport reports whether the request carries the operator bypass cookie,
// which allows resolving blogs owned by deactivated users.
func (r *Resolver) hasPassport(c *gin.Context) bool {
	if r.passport == "" {
		return false
	}
	cookie, err := c.Cookie("admin_passport")
	return err == nil && cookie == r.passport
}

func (r *Resolver) blogBySubdomain(subdomain string, bypass bool) (*models.Blog, bool) {
	var blog models.Blog
	query := r.db.Joins("User").Where("LOWER(blogs.subdomain) = ?", strings.ToLower(subdomain))
	if !bypass {
		query = query.Where("\"User\".is_active = ?", true)
	}
	if err := query.First(&blog).Error; err != nil {
		return nil, false
	}
	return &blog, true
}

// BlogByDomain looks up a blog by custom domain. If the exact host does not
// match, it retries with "www." stripped or prepended before giving up.
func (r *Resolver) BlogByDomain(domain string) (*models.Blog, bool) {
	if domain == "" {
		return nil, false
	}

	if blog, ok := r.domainLookup(domain); ok {
		return blog, true
	}

	if strings.HasPrefix(domain, "www.") {
		return r.domainLookup(strings.TrimPrefix(domain, "www."))
	}
	return r.domainLookup("www." + domain)
}

func (r *Resolver) domainLookup(domain string) (*models.Blog, bool) {
	var blog models.Blog
	err := r.db.Joins("User").
		Where("blogs.domain != '' AND LOWER(blogs.domain) = ? AND \"User\".is_active = ?", strings.ToLower(domain), true).
		First(&blog).Error
	if err != nil {
		return nil, false
	}
	return &blog, true
}

// extractSubdomain returns the label(s) before the platform host, with any
// port dropped. "alice.example.com:8080" against "example.com" gives "alice".
func extractSubdomain(host, site string) string {
	if i := strings.Index(host, ":"); i != -1 {
		host = host[:i]
	}
	if i := strings.Index(site, ":"); i != -1 {
		site = site[:i]
	}

	if !strings.HasSuffix(host, "."+site) {
		return ""
	}
	return strings.TrimSuffix(host, "."+site)
}
