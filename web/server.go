package web

import (
	"context"
	"net/http"
	"path/filepath"
	"time"
)

// StartWebServer initializes and starts the web server in a new goroutine.
// It takes an AppController, which is an interface implemented by the main
// application, and the hub that the scheduler publishes into. The returned
// hub's Run loop is started here as well.
func StartWebServer(ctx context.Context, controller AppController, hub *Hub) {
	addr := controller.GetConfig().Web.ListenAddr
	if addr == "" {
		addr = ":8080"
	}

	staticDir := controller.GetConfig().Web.StaticDir
	if staticDir == "" {
		staticDir = "./web/static"
	}
	staticDir, err := filepath.Abs(staticDir)
	if err != nil {
		controller.Logger().LogFatal("Could not determine absolute path for static directory: %v", err)
	}

	mux := http.NewServeMux()

	fs := http.FileServer(http.Dir(staticDir))
	mux.Handle("/static/", http.StripPrefix("/static/", fs))

	// Pages
	mux.HandleFunc("/", dashboardHandler(controller))
	mux.HandleFunc("/simulation", simulationHandler(controller))
	mux.HandleFunc("/settings", settingsHandler(controller))

	// Push channel
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(hub, w, r)
	})

	// JSON API
	registerAPIRoutes(mux, controller)

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go hub.Run()

	go func() {
		controller.Logger().LogInfo("Starting web dashboard on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			controller.Logger().LogFatal("Web server failed: %v", err)
		}
	}()

	// Listen for context cancellation to gracefully shut down the server
	go func() {
		<-ctx.Done()
		controller.Logger().LogInfo("Shutting down web server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			controller.Logger().LogError("Web server graceful shutdown failed: %v", err)
		}
	}()
}
