package main

import (
	"html/template"
	"log"
	"os"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"inkdrop/analytics"
	"inkdrop/blog"
	"inkdrop/cache"
	"inkdrop/common"
	"inkdrop/database"
	"inkdrop/discover"
	"inkdrop/staff"
	"inkdrop/studio"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	db := common.ConnectDb()
	if db == nil {
		log.Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	router := gin.Default()

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("SESSION_SECRET environment variable not set")
	}

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   false,
	})

	router.Use(sessions.Sessions(cache.SessionCookieName, store))
	router.Use(cache.Middleware())

	// Blog owners can inject raw HTML through their directives.
	router.SetFuncMap(template.FuncMap{
		"raw": func(s string) template.HTML { return template.HTML(s) },
	})
	router.LoadHTMLGlob("*/views/*.html")
	router.Static("/public", "./public")

	analyticsModule := analytics.NewAnalyticsModule(db)
	resolver := common.NewResolver(db)

	studioModule := studio.NewStudioModule(db, analyticsModule)
	studioModule.RegisterRoutes(router)

	staffModule := staff.NewStaffModule(db)
	staffModule.RegisterRoutes(router)

	discoverModule := discover.NewDiscoverModule(db)
	discoverModule.RegisterRoutes(router)

	blogModule := blog.NewBlogModule(db, resolver, analyticsModule)
	blogModule.RegisterRoutes(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
