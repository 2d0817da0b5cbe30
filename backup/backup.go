package backup

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"inkdrop/models"
)

const backupRoot = "backups"

type snapshot struct {
	ExportedAt time.Time     `json:"exported_at"`
	Blog       models.Blog   `json:"blog"`
	Posts      []models.Post `json:"posts"`
}

// Write exports a blog and all of its posts to a JSON file under the
// backup directory, one file per blog, newest export wins.
func Write(db *gorm.DB, blog *models.Blog) error {
	var posts []models.Post
	if err := db.Where("blog_id = ?", blog.ID).Order("created_at").Find(&posts).Error; err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot{
		ExportedAt: time.Now().UTC(),
		Blog:       *blog,
		Posts:      posts,
	}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(backupRoot, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(backupRoot, blog.Subdomain+".json"), data, 0644)
}

// InThread runs Write in the background so saves never block on disk.
// Failures are logged and otherwise swallowed.
func InThread(db *gorm.DB, blog *models.Blog) {
	b := *blog
	go func() {
		if err := Write(db, &b); err != nil {
			log.Printf("backup failed for %s: %v", b.Subdomain, err)
		}
	}()
}
