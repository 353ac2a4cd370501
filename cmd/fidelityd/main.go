// Command fidelityd serves the verification pipeline over HTTP and,
// optionally, MCP stdio. Runs and custom profiles persist to SQLite.
package main

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/fidelity/kit"
	"github.com/hazyhaar/fidelity/roundtrip"
	"github.com/hazyhaar/fidelity/store"
)

func main() {
	port := env("PORT", "8090")
	configPath := env("CONFIG", "")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")
	adminUser := env("ADMIN_USER", "admin")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Config: defaults, optionally overridden by a YAML file.
	cfg := roundtrip.DefaultConfig()
	if configPath != "" {
		loaded, err := roundtrip.LoadConfig(configPath)
		if err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Store.
	db, err := store.Open(cfg.DBPath, store.WithMkdirAll())
	if err != nil {
		slog.Error("store", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	runs := store.New(db)

	svc, err := roundtrip.New(cfg, logger, roundtrip.WithStore(runs))
	if err != nil {
		slog.Error("roundtrip service", "error", err)
		os.Exit(1)
	}

	// Admin credentials: bcrypt hash derived at startup, compared per
	// request. Without ADMIN_PASSWORD the mutating routes stay open only
	// on loopback deployments; warn loudly.
	var adminHash []byte
	if adminPassword != "" {
		adminHash, err = bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("admin password hash", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("ADMIN_PASSWORD not set; profile management is unauthenticated")
	}

	// Optional MCP stdio.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "fidelity",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			slog.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	r := chi.NewRouter()
	r.Mount("/", guardMutations(svc.Routes(), adminUser, adminHash))

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// guardMutations requires basic auth on profile management when an admin
// hash is configured. Read-only routes stay open.
func guardMutations(next http.Handler, user string, hash []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hash == nil || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			bcrypt.CompareHashAndPassword(hash, []byte(p)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="fidelity"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(kit.WithRole(r.Context(), "admin")))
	})
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
