package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

// SaltAndHash derives an anonymous identifier for the requester from its IP
// and user agent, salted and bucketed by time window so the same visitor
// hashes identically within a period without us storing who they are.
// Supported windows: "year" and "day".
func SaltAndHash(c *gin.Context, window string) string {
	salt := os.Getenv("FINGERPRINT_SALT")
	if salt == "" {
		salt = os.Getenv("SESSION_SECRET")
	}

	now := time.Now().UTC()
	var period string
	switch window {
	case "day":
		period = now.Format("2006-01-02")
	default:
		period = fmt.Sprintf("%d", now.Year())
	}

	data := c.ClientIP() + c.Request.UserAgent() + salt + period
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
