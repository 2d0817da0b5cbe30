package analytics

import (
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"inkdrop/common"
)

// Visit is one recorded page view. Visitors are identified by a salted
// fingerprint hash rather than a cookie, so no identifier is stored
// client side.
type Visit struct {
	ID        uint      `gorm:"primary_key;autoIncrement"`
	BlogID    int       `gorm:"not null;index"`
	PostID    *uint     `gorm:"index"` // nil for homepage and list views
	HashID    string    `gorm:"not null;index"`
	Referrer  string    `json:"referrer"`
	Browser   string    `json:"browser"`
	Language  string    `json:"language"`
	CreatedAt time.Time `gorm:"index"`
}

type AnalyticsModule struct {
	db *gorm.DB
}

func NewAnalyticsModule(db *gorm.DB) *AnalyticsModule {
	if db == nil {
		log.Println("Analytics DB is nil, analytics will be disabled")
		return nil
	}
	if err := db.AutoMigrate(&Visit{}); err != nil {
		log.Printf("Error migrating visits table: %v", err)
		return nil
	}
	return &AnalyticsModule{db: db}
}

// TrackVisit records a page view. Repeat views by the same visitor of
// the same page within 30 minutes are not counted, so refreshes don't
// inflate the numbers. The insert happens off the request path.
func (a *AnalyticsModule) TrackVisit(c *gin.Context, blogID int, postID *uint) {
	if a == nil || a.db == nil {
		return
	}

	hashID := common.SaltAndHash(c, "day")

	cutoff := time.Now().Add(-30 * time.Minute)
	query := a.db.Where("hash_id = ? AND blog_id = ? AND created_at > ?", hashID, blogID, cutoff)
	if postID != nil {
		query = query.Where("post_id = ?", *postID)
	} else {
		query = query.Where("post_id IS NULL")
	}

	var recent Visit
	if err := query.First(&recent).Error; err == nil {
		return
	}

	visit := Visit{
		BlogID:    blogID,
		PostID:    postID,
		HashID:    hashID,
		Referrer:  c.Request.Referer(),
		Browser:   browserName(c.Request.UserAgent()),
		Language:  preferredLanguage(c),
		CreatedAt: time.Now(),
	}

	go func() {
		if err := a.db.Create(&visit).Error; err != nil {
			log.Printf("Error saving visit: %v", err)
		}
	}()
}

func browserName(userAgent string) string {
	if userAgent == "" {
		return ""
	}

	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr"):
		return "Opera"
	default:
		return "Other"
	}
}

func preferredLanguage(c *gin.Context) string {
	acceptLang := c.GetHeader("Accept-Language")
	if acceptLang == "" {
		return ""
	}
	// "en-US,en;q=0.9,pt-BR;q=0.8" -> "en-US"
	lang := strings.TrimSpace(strings.Split(acceptLang, ",")[0])
	return strings.Split(lang, ";")[0]
}

// DayVisits is the visit count for a single calendar day.
type DayVisits struct {
	Date  string
	Count int64
}

// PostVisits is the visit count for one post over a period.
type PostVisits struct {
	PostID    uint
	PostTitle string
	Count     int64
}

// PostVisitCount returns the all-time view count for a post.
func (a *AnalyticsModule) PostVisitCount(postID uint) int64 {
	if a == nil || a.db == nil {
		return 0
	}
	var count int64
	a.db.Model(&Visit{}).Where("post_id = ?", postID).Count(&count)
	return count
}

// VisitsByDay returns one entry per day for the last N days, including
// zero-count days so charts don't skip gaps.
func (a *AnalyticsModule) VisitsByDay(blogID int, days int) []DayVisits {
	if a == nil || a.db == nil {
		return []DayVisits{}
	}

	startDate := time.Now().AddDate(0, 0, -days)

	var results []struct {
		Date  string
		Count int64
	}
	a.db.Model(&Visit{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("blog_id = ? AND created_at >= ?", blogID, startDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&results)

	dayVisits := make([]DayVisits, days)
	for i := 0; i < days; i++ {
		date := time.Now().AddDate(0, 0, -(days - 1 - i))
		dayVisits[i] = DayVisits{Date: date.Format("2006-01-02")}
	}
	for _, result := range results {
		for i := range dayVisits {
			if dayVisits[i].Date == result.Date {
				dayVisits[i].Count = result.Count
				break
			}
		}
	}
	return dayVisits
}

// TopPosts returns the most viewed posts of the last N days. Titles are
// filled in by the caller, which knows which posts still exist.
func (a *AnalyticsModule) TopPosts(blogID int, days int, limit int) []PostVisits {
	if a == nil || a.db == nil {
		return []PostVisits{}
	}

	startDate := time.Now().AddDate(0, 0, -days)

	var results []PostVisits
	a.db.Model(&Visit{}).
		Select("post_id as post_id, COUNT(*) as count").
		Where("blog_id = ? AND post_id IS NOT NULL AND created_at >= ?", blogID, startDate).
		Group("post_id").
		Order("count DESC").
		Limit(limit).
		Scan(&results)

	return results
}
