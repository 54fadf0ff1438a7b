// Demo panel: a small blog admin backed by the in-memory store, or by
// PostgreSQL when POSTGRES_DSN is set. Log in via POST /login with a
// "username" form field; the panel lives under /admin.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/gopanel/gopanel"
	"github.com/gopanel/gopanel/adapter/fiberweb"
	"github.com/gopanel/gopanel/adapter/memdata"
	"github.com/gopanel/gopanel/adapter/pgxdata"
	"github.com/gopanel/gopanel/auth"
	"github.com/gopanel/gopanel/data"
	"github.com/gopanel/gopanel/logstore"
	"github.com/gopanel/gopanel/permission"
	"github.com/gopanel/gopanel/registry"
	"github.com/gopanel/gopanel/web"
)

// Post is a blog entry.
type Post struct {
	ID        int
	Title     string `admin:"label=Title,search"`
	Content   string `admin:"label=Body,-list"`
	Published bool
	CreatedAt time.Time `admin:"label=Created,-add,-edit"`
}

// Comment is a reader comment on a post.
type Comment struct {
	ID     int
	PostID int    `admin:"label=Post"`
	Author string `admin:"search"`
	Body   string `admin:"-list"`
}

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := gopanel.LoadConfig()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Registry
	reg := registry.New()
	if _, err := reg.RegisterApplication("blog", "Blog"); err != nil {
		log.Fatal("register application", zap.Error(err))
	}
	if _, err := reg.RegisterModel("blog", Post{}); err != nil {
		log.Fatal("register model", zap.Error(err))
	}
	if _, err := reg.RegisterModel("blog", Comment{}); err != nil {
		log.Fatal("register model", zap.Error(err))
	}

	// Data access
	var accessor data.Accessor
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		pool, err := pgxdata.NewPool(ctx, dsn, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		store := pgxdata.New(pool)
		if err := store.EnsureSchema(ctx, reg, log); err != nil {
			log.Fatal("failed to ensure schema", zap.Error(err))
		}
		accessor = store
	} else {
		mem := memdata.New()
		seed(ctx, mem, reg, log)
		accessor = mem
	}

	// Log store
	broadcaster := logstore.NewBroadcaster()
	var base logstore.Store
	if cfg.RedisURL != "" {
		rdb, err := logstore.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		base = logstore.NewRedisStore(rdb, "gopanel:demo:log", cfg.LogCapacity)
	} else {
		base = logstore.NewMemoryStore(cfg.LogCapacity)
	}

	panel, err := gopanel.New(gopanel.Options{
		Config:     cfg,
		Registry:   reg,
		Permission: decide,
		Accessor:   accessor,
		Store:      logstore.WithBroadcast(base, broadcaster),
		NavItems: []gopanel.NavFunc{
			func(c web.Context) gopanel.NavItem {
				return gopanel.NavItem{Label: "Site", URL: "/"}
			},
		},
		Log: log,
	})
	if err != nil {
		log.Fatal("failed to build panel", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(fiberweb.RequestID())
	app.Use(fiberweb.Logger(log))

	app.Get("/login", func(c *fiber.Ctx) error {
		html, err := panel.Renderer().Render("login", map[string]any{
			"Panel":        cfg.Name,
			"AssetsPrefix": cfg.AssetsPrefix,
			"Action":       "/login",
		})
		if err != nil {
			return err
		}
		c.Type("html", "utf-8")
		return c.SendString(html)
	})

	// Dev login: any username gets a session token.
	app.Post("/login", func(c *fiber.Ctx) error {
		username := c.FormValue("username")
		if username == "" {
			return fiber.NewError(fiber.StatusBadRequest, "username required")
		}
		token, err := auth.GenerateToken(cfg.JWTSecret, username, username, cfg.SessionTTL)
		if err != nil {
			return err
		}
		c.Cookie(&fiber.Cookie{
			Name:     "gopanel_token",
			Value:    token,
			Expires:  time.Now().Add(cfg.SessionTTL),
			HTTPOnly: true,
		})
		return c.JSON(fiber.Map{"token": token})
	})

	// Everything under the panel prefix needs a session, except static
	// assets and the websocket (which authenticates via query token).
	wsPath := cfg.URLPrefix + "/ws/logs"
	authMW := fiberweb.Auth(cfg.JWTSecret, log)
	app.Use(cfg.URLPrefix, func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), cfg.AssetsPrefix) || c.Path() == wsPath {
			return c.Next()
		}
		return authMW(c)
	})

	// Live log stream
	stream := fiberweb.NewLogStream(broadcaster, cfg.JWTSecret, log)
	app.Use(wsPath, fiberweb.UpgradeMiddleware())
	app.Get(wsPath, websocket.New(stream.Handle))

	panel.Bind(fiberweb.New(app))

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", getEnv("PORT", "8080"))
	log.Info("starting demo panel", zap.String("addr", addr), zap.String("prefix", cfg.URLPrefix))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

// decide is the demo permission policy: everyone reads, only admin
// deletes or views the activity log.
func decide(req permission.Request, c web.Context) (bool, error) {
	switch req.Action {
	case permission.ActionDelete, permission.ActionLogView:
		id, _ := c.Get(web.CtxUserID).(string)
		return id == "admin", nil
	default:
		return true, nil
	}
}

func seed(ctx context.Context, mem *memdata.Store, reg *registry.Registry, log *zap.Logger) {
	post, err := reg.Model("blog", "post")
	if err != nil {
		log.Fatal("seed lookup", zap.Error(err))
	}
	comment, err := reg.Model("blog", "comment")
	if err != nil {
		log.Fatal("seed lookup", zap.Error(err))
	}

	posts := []data.Record{
		{"Title": "Hello, world", "Content": "First post.", "Published": true, "CreatedAt": time.Now().Add(-48 * time.Hour)},
		{"Title": "Second thoughts", "Content": "Draft material.", "Published": false, "CreatedAt": time.Now().Add(-24 * time.Hour)},
		{"Title": "Release notes", "Content": "What changed and why.", "Published": true, "CreatedAt": time.Now()},
	}
	for _, rec := range posts {
		if _, err := mem.Create(ctx, post, rec); err != nil {
			log.Fatal("seed post", zap.Error(err))
		}
	}

	comments := []data.Record{
		{"PostID": 1, "Author": "ada", "Body": "Nice start."},
		{"PostID": 3, "Author": "linus", "Body": "Looking forward to it."},
	}
	for _, rec := range comments {
		if _, err := mem.Create(ctx, comment, rec); err != nil {
			log.Fatal("seed comment", zap.Error(err))
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
