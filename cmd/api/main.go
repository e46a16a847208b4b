//	@title			Roundtable API
//	@version		1.0
//	@description	Backend for Roundtable, a recipe-sharing community.
//
//	@host		localhost:8080
//	@BasePath	/api
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/roundtable/service/internal/auth"
	"github.com/roundtable/service/internal/category"
	"github.com/roundtable/service/internal/config"
	"github.com/roundtable/service/internal/db"
	"github.com/roundtable/service/internal/logging"
	appMiddleware "github.com/roundtable/service/internal/middleware"
	"github.com/roundtable/service/internal/notify"
	"github.com/roundtable/service/internal/recipe"
	"github.com/roundtable/service/internal/storage"
	"github.com/roundtable/service/internal/upload"
	"github.com/roundtable/service/internal/user"

	_ "github.com/roundtable/service/docs/swagger"
)

func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.IsProduction())

	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return err
	}

	// Notifications: Redis fan-out when configured, otherwise in-process.
	var broker notify.Broker
	if cfg.RedisURL != "" {
		rb, err := notify.NewRedisBroker(ctx, cfg.RedisURL, log)
		if err != nil {
			return err
		}
		defer rb.Close()
		broker = rb
	} else {
		broker = notify.NewLocalBroker(256)
	}

	hub := notify.NewHub(cfg.CORSAllowedOrigins, log.With("component", "hub"))
	go hub.Run(ctx)
	go func() {
		if err := broker.Subscribe(ctx, hub.Deliver); err != nil {
			log.Error(ctx, "notification subscription stopped", "error", err)
		}
	}()

	notifySvc := notify.NewService(notify.NewRepository(pool), broker, log)
	notifyHandler := notify.NewHandler(notifySvc, hub, log)

	recipeImages := upload.NewPipeline(store, upload.Options{
		Namespace:     "recipe-images",
		MaxBytes:      cfg.UploadMaxBytes,
		CacheControl:  cfg.UploadCacheControl,
		VerifyContent: cfg.UploadVerifyContent,
	}, log)
	profileImages := recipeImages.WithNamespace("profile-images")

	// Wire dependencies: repository → service → handler
	userSvc := user.NewService(user.NewRepository(pool), notifySvc)
	userHandler := user.NewHandler(userSvc, profileImages, log)

	var verifier auth.Verifier
	if cfg.GoogleClientID != "" {
		verifier = auth.NewGoogleVerifier(cfg.GoogleClientID)
	}
	authHandler := auth.NewHandler(auth.NewService(userSvc, verifier, cfg), log)

	categorySvc := category.NewService(category.NewRepository(pool))
	categoryHandler := category.NewHandler(categorySvc, log)

	recipeSvc := recipe.NewService(recipe.NewRepository(pool), categorySvc, notifySvc, log)
	recipeHandler := recipe.NewHandler(recipeSvc, recipeImages, log)

	requireAuth := appMiddleware.RequireAuth(cfg.JWTSecret)
	optionalAuth := appMiddleware.OptionalAuth(cfg.JWTSecret)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// The memory driver serves its own objects; point STORAGE_PUBLIC_BASE at /files.
	if mem, ok := store.(*storage.MemoryStorage); ok {
		r.Mount("/files", http.StripPrefix("/files", mem))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/google", authHandler.Google)
			r.With(requireAuth).Get("/me", authHandler.Me)
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", userHandler.Get)
			r.Get("/followers", userHandler.Followers)
			r.Get("/followings", userHandler.Followings)
			r.Get("/recipes", recipeHandler.UserRecipes)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Put("/", userHandler.Update)
				r.With(userHandler.RequireSelf, profileImages.Middleware("profileImage")).
					Post("/upload-image", userHandler.UploadImage)
				r.Post("/follow", userHandler.Follow)
				r.Get("/follow-status", userHandler.FollowStatus)
				r.Get("/bookmarks", recipeHandler.Bookmarks)
			})
		})

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", recipeHandler.List)
			r.With(optionalAuth).Get("/{id}", recipeHandler.Get)
			r.Get("/{id}/comments", recipeHandler.Comments)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", recipeHandler.Create)
				r.Put("/{id}", recipeHandler.Update)
				r.Delete("/{id}", recipeHandler.Delete)
				r.With(recipeHandler.RequireOwner, recipeImages.Middleware("recipeImage")).
					Post("/{id}/upload-image", recipeHandler.UploadImage)
				r.Post("/{id}/bookmark", recipeHandler.Bookmark)
				r.Post("/{id}/comments", recipeHandler.AddComment)
			})
		})

		r.With(requireAuth).Delete("/comments/{id}", recipeHandler.DeleteComment)

		r.Get("/categories", categoryHandler.List)
		r.Get("/categories/{id}/recipes", recipeHandler.CategoryRecipes)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/ws", notifyHandler.Socket)
			r.Get("/notifications", notifyHandler.List)
			r.Post("/notifications/{id}/read", notifyHandler.MarkRead)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server listening", "port", cfg.Port, "env", cfg.AppEnv, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info(context.Background(), "shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info(context.Background(), "server stopped")
	return nil
}
