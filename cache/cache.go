package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"inkdrop/models"
)

const cacheRoot = "cache"

// hostDir returns the cache directory for a host. The host is hashed so
// custom domains with odd characters cannot escape the cache root.
func hostDir(host string) string {
	return filepath.Join(cacheRoot, fmt.Sprintf("%016x", xxhash.Sum64String(host)))
}

// pagePath returns the cache file for a rendered page on a host.
func pagePath(host, path string) string {
	return filepath.Join(hostDir(host), fmt.Sprintf("%016x.html", xxhash.Sum64String(path)))
}

// WritePage stores rendered HTML for a host and path.
func WritePage(host, path, html string) error {
	if err := os.MkdirAll(hostDir(host), 0755); err != nil {
		return err
	}
	return os.WriteFile(pagePath(host, path), []byte(html), 0644)
}

// ReadPage returns cached HTML for a host and path, if present.
func ReadPage(host, path string) (string, bool) {
	content, err := os.ReadFile(pagePath(host, path))
	if err != nil {
		return "", false
	}
	return string(content), true
}

// hostsForBlog lists every host the blog is reachable on: its subdomain
// under each platform host, plus the custom domain and its www flip.
func hostsForBlog(blog *models.Blog) []string {
	var hosts []string
	for _, site := range strings.Split(os.Getenv("MAIN_SITE_HOSTS"), ",") {
		site = strings.TrimSpace(site)
		if site == "" {
			continue
		}
		hosts = append(hosts, blog.Subdomain+"."+site)
	}
	if blog.Domain != "" {
		hosts = append(hosts, blog.Domain)
		if flipped, ok := strings.CutPrefix(blog.Domain, "www."); ok {
			hosts = append(hosts, flipped)
		} else {
			hosts = append(hosts, "www."+blog.Domain)
		}
	}
	return hosts
}

// ClearForBlog drops every cached page for the blog, across all the
// hosts it is served on. Called after any edit that changes output.
func ClearForBlog(blog *models.Blog) {
	for _, host := range hostsForBlog(blog) {
		os.RemoveAll(hostDir(host))
	}
}

// ClearAll wipes the whole cache. Used by the staff tools.
func ClearAll() error {
	return os.RemoveAll(cacheRoot)
}
