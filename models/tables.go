package models

import (
	"encoding/json"
	"time"
)

type User struct {
	ID                     int    `gorm:"primary_key;autoIncrement" json:"id"`
	PasswordHash           string `gorm:"not null" json:"-"`
	Email                  string `gorm:"unique;not null" json:"email"`
	EmailVerified          bool   `gorm:"default:false" json:"email_verified"`
	EmailVerificationToken string `json:"-"`
	IsActive               bool   `gorm:"default:true;index" json:"is_active"`
}

type UserSettings struct {
	ID       int    `gorm:"primary_key;autoIncrement" json:"id"`
	UserID   int    `gorm:"not null;uniqueIndex" json:"user_id"`
	Nickname string `gorm:"index" json:"nickname"` // set once, unique when non-empty
	Upgraded bool   `gorm:"default:false" json:"upgraded"`
	OrderID  string `json:"order_id"` // billing reference, opaque to us
}

type Blog struct {
	ID              int       `gorm:"primary_key;autoIncrement" json:"id"`
	UserID          int       `gorm:"not null;index" json:"user_id"`
	Title           string    `gorm:"not null" json:"title"`
	Subdomain       string    `gorm:"unique;not null;index" json:"subdomain"`
	Domain          string    `gorm:"index" json:"domain"` // custom domain, empty unless set
	Content         string    `gorm:"type:text" json:"content"`
	MetaDescription string    `json:"meta_description"`
	MetaImage       string    `json:"meta_image"`
	Favicon         string    `json:"favicon"`
	PostTemplate    string    `gorm:"type:text" json:"post_template"`
	HeaderDirective string    `gorm:"type:text" json:"header_directive"`
	FooterDirective string    `gorm:"type:text" json:"footer_directive"`
	BlogPath        string    `json:"blog_path"` // custom path for the posts list, falls back to "blog"
	PublicAnalytics bool      `gorm:"default:false" json:"public_analytics"`
	CreatedAt       time.Time `json:"created_at"`
	LastModified    time.Time `json:"last_modified"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

type Post struct {
	ID               uint      `gorm:"primary_key"`
	BlogID           int       `gorm:"not null;index" json:"blog_id"`
	UID              string    `gorm:"uniqueIndex;not null" json:"uid"`
	Token            string    `json:"-"` // capability for previewing unpublished posts
	Title            string    `gorm:"not null" json:"title"`
	Slug             string    `gorm:"not null;index" json:"slug"`
	Alias            string    `json:"alias"`
	Content          string    `gorm:"type:text" json:"content"`
	ShortDescription string    `json:"short_description"`
	AllTags          string    `gorm:"type:text;default:'[]'" json:"all_tags"`
	AllTools         string    `gorm:"type:text;default:'[]'" json:"all_tools"`
	GithubURL        string    `json:"github_url"`
	CanonicalURL     string    `json:"canonical_url"`
	ClassName        string    `json:"class_name"`
	MetaDescription  string    `json:"meta_description"`
	MetaImage        string    `json:"meta_image"`
	MediaURLs        string    `gorm:"type:text;default:'[]'" json:"media_urls"`
	Publish          bool      `gorm:"default:false;index" json:"publish"`
	PublishedDate    time.Time `json:"published_date"`
	IsPage           bool      `gorm:"default:false" json:"is_page"`
	IsTemplateDraft  bool      `gorm:"default:false;index" json:"is_template_draft"`
	MakeDiscoverable bool      `gorm:"default:true" json:"make_discoverable"`
	CommentsEnabled  bool      `gorm:"default:true" json:"comments_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	LastModified     time.Time `json:"last_modified"`

	Blog Blog `gorm:"foreignKey:BlogID" json:"-"`
}

// Tags decodes the JSON-encoded tag list. Bad data reads as no tags.
func (p *Post) Tags() []string {
	return decodeStringList(p.AllTags)
}

// Tools decodes the JSON-encoded tool list.
func (p *Post) Tools() []string {
	return decodeStringList(p.AllTools)
}

func decodeStringList(raw string) []string {
	var items []string
	if raw == "" {
		return items
	}
	json.Unmarshal([]byte(raw), &items)
	return items
}

type Upvote struct {
	ID        uint      `gorm:"primary_key"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	HashID    string    `gorm:"not null;index" json:"-"` // salted request fingerprint, year granularity
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID             uint       `gorm:"primary_key"`
	PostID         uint       `gorm:"not null;index" json:"post_id"`
	UserID         int        `gorm:"not null;index" json:"user_id"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	UseNickname    bool       `gorm:"default:false" json:"use_nickname"`
	UseEmailAsName bool       `gorm:"default:true" json:"use_email_as_name"`
	Deleted        bool       `gorm:"default:false;index" json:"deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// SoftDelete marks the comment deleted without removing the row.
func (c *Comment) SoftDelete() {
	now := time.Now().UTC()
	c.Deleted = true
	c.DeletedAt = &now
}

type DangerousReport struct {
	ID          uint       `gorm:"primary_key"`
	PostID      uint       `gorm:"not null;index" json:"post_id"`
	UserID      int        `gorm:"not null;index" json:"user_id"`
	Comment     string     `gorm:"not null" json:"comment"`
	UseNickname bool       `gorm:"default:false" json:"use_nickname"`
	Deleted     bool       `gorm:"default:false;index" json:"deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// SoftDelete marks the report dismissed; historical reports are kept.
func (r *DangerousReport) SoftDelete() {
	now := time.Now().UTC()
	r.Deleted = true
	r.DeletedAt = &now
}
