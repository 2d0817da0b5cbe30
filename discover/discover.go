package discover

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inkdrop/models"
)

const feedLimit = 100

type DiscoverModule struct {
	db *gorm.DB
}

func NewDiscoverModule(db *gorm.DB) *DiscoverModule {
	return &DiscoverModule{db: db}
}

func (d *DiscoverModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/discover", d.feed)
	router.GET("/discover/:tag", d.feedByTag)
}

// FeedItem is one post in the discover feed, together with where it
// lives.
type FeedItem struct {
	Post          models.Post
	BlogTitle     string
	BlogSubdomain string
	Tags          []string
}

func (d *DiscoverModule) feed(c *gin.Context) {
	d.render(c, "")
}

func (d *DiscoverModule) feedByTag(c *gin.Context) {
	d.render(c, c.Param("tag"))
}

// render shows the cross-blog feed of posts their authors opted into
// discovery. Blogs of deactivated users never appear.
func (d *DiscoverModule) render(c *gin.Context, tag string) {
	query := d.db.Table("posts").
		Joins("INNER JOIN blogs ON posts.blog_id = blogs.id").
		Joins("INNER JOIN users ON blogs.user_id = users.id").
		Where("posts.publish = ? AND posts.make_discoverable = ?", true, true).
		Where("posts.is_page = ? AND posts.is_template_draft = ?", false, false).
		Where("users.is_active = ?", true)

	if tag != "" {
		query = query.Where("posts.all_tags LIKE ?", `%"`+tag+`"%`)
	}

	var posts []models.Post
	if err := query.Order("posts.published_date DESC").Limit(feedLimit).Find(&posts).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "discover.html", gin.H{
			"error": "Could not load the feed",
		})
		return
	}

	items := make([]FeedItem, 0, len(posts))
	for _, post := range posts {
		var blog models.Blog
		if err := d.db.First(&blog, post.BlogID).Error; err != nil {
			continue
		}
		items = append(items, FeedItem{
			Post:          post,
			BlogTitle:     blog.Title,
			BlogSubdomain: blog.Subdomain,
			Tags:          post.Tags(),
		})
	}

	c.HTML(http.StatusOK, "discover.html", gin.H{
		"items": items,
		"tag":   tag,
	})
}
