package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/locosim/api"
	"github.com/wricardo/mcp-training/locosim/loco/config"
	"github.com/wricardo/mcp-training/locosim/loco/service"
	"github.com/wricardo/mcp-training/locosim/loco/session"
	"github.com/wricardo/mcp-training/locosim/loco/telemetry"
	"github.com/wricardo/mcp-training/locosim/settings"
	"github.com/wricardo/mcp-training/locosim/transport/mcp"
	"github.com/wricardo/mcp-training/locosim/transport/websocket"
)

const (
	cleanupInterval = time.Hour
	syncInterval    = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP server with REST API, WebSocket and MCP endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address, overrides host and port from settings"},
			&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain"},
			&cli.BoolFlag{Name: "no-telemetry", Usage: "do not record tick samples"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, log, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			addr := s.Addr()
			if cmd.IsSet("addr") {
				addr = cmd.String("addr")
			}
			if cmd.Bool("ngrok") {
				s.Ngrok.Enabled = true
			}
			if cmd.IsSet("ngrok-domain") {
				s.Ngrok.Domain = cmd.String("ngrok-domain")
			}
			if cmd.Bool("no-telemetry") {
				s.Telemetry.Enabled = false
			}

			log.Info().Str("version", Version).Str("config_dir", s.ConfigDir).Msgf("Starting %s", AppName)

			svc, err := initializeServices(s, log)
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			defer svc.Close()
			go svc.maintain(ctx, s.SessionTTL)

			return runHTTPServer(ctx, addr, s.Ngrok, svc, log)
		},
	}
}

// services bundles everything a server process owns
type services struct {
	drive       service.DriveService
	sessions    *session.Manager
	persistence session.SessionPersistence
	store       *telemetry.Store
	log         zerolog.Logger
}

// initializeServices wires configuration, persistence, telemetry and the
// drive service, and reloads persisted sessions.
func initializeServices(s *settings.Settings, log zerolog.Logger) (*services, error) {
	configManager, err := config.NewManager(s.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(s.SessionsDir, configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}
	persistence.SetLogger(log)

	sessionManager := session.NewManagerWithPersistence(persistence, session.WithLogger(log))
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.Warn().Err(err).Msg("Failed to load persisted sessions")
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithDefaultDt(s.DefaultDt),
	}

	svc := &services{sessions: sessionManager, persistence: persistence, log: log}
	if s.Telemetry.Enabled {
		store, err := telemetry.Open(s.Telemetry.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open telemetry store: %w", err)
		}
		svc.store = store
		opts = append(opts, service.WithTelemetry(store, s.Telemetry.Retain))

		metrics, err := telemetry.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		opts = append(opts, service.WithMetrics(metrics))
	}

	svc.drive = service.NewDriveService(sessionManager, configManager, opts...)
	return svc, nil
}

// Close releases the telemetry store
func (svc *services) Close() error {
	if svc.store == nil {
		return nil
	}
	return svc.store.Close()
}

// maintain prunes expired sessions and drops sessions whose files were
// removed, until ctx is done.
func (svc *services) maintain(ctx context.Context, ttl time.Duration) {
	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()
	fsSync := time.NewTicker(syncInterval)
	defer fsSync.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			svc.cleanupExpired(ttl)
		case <-fsSync.C:
			svc.syncWithFilesystem()
		}
	}
}

func (svc *services) cleanupExpired(ttl time.Duration) int {
	removed := svc.sessions.CleanupExpiredSessions(ttl)
	if removed > 0 {
		svc.log.Info().Int("removed", removed).Msg("Cleaned up expired sessions")
	}
	return removed
}

// syncWithFilesystem removes sessions from memory when their files are gone
func (svc *services) syncWithFilesystem() int {
	if svc.persistence == nil {
		return 0
	}
	pruned := 0
	for _, sess := range svc.sessions.List() {
		if svc.persistence.Exists(sess.ID) {
			continue
		}
		if err := svc.sessions.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			svc.log.Debug().Str("session", sess.ID).Msg("Pruned session from memory (file deleted)")
		}
	}
	if pruned > 0 {
		svc.log.Info().Int("pruned", pruned).Msg("Filesystem sync pruned orphaned sessions")
	}
	return pruned
}

// newRouter mounts the API at the root and the MCP endpoint at /mcp
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	router := http.NewServeMux()
	router.Handle("/", apiServer)
	router.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)
		data, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	return router
}

// runHTTPServer serves until ctx is done, then shuts down gracefully
func runHTTPServer(ctx context.Context, addr string, tunnel settings.Ngrok, svc *services, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub(websocket.WithLogger(log))
	go hub.Run(ctx)

	apiServer := api.NewServer(svc.drive, hub, api.WithLogger(log))
	router := newRouter(apiServer, mcp.NewClient("http://"+addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().
			Str("api", "http://"+addr+"/api").
			Str("websocket", "ws://"+addr+"/ws?session=<session_id>").
			Str("mcp", "http://"+addr+"/mcp").
			Msgf("HTTP server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if tunnel.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveNgrok(ctx, tunnel, router, log)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case runErr = <-errCh:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("Server stopped")
	return runErr
}

// serveNgrok exposes handler through an ngrok tunnel until ctx is done
func serveNgrok(ctx context.Context, tunnel settings.Ngrok, handler http.Handler, log zerolog.Logger) {
	if tunnel.AuthToken == "" {
		log.Warn().Msg("Ngrok enabled but no auth token provided (set NGROK_AUTHTOKEN or ngrok.authtoken)")
		return
	}

	endpoint := ngrokConfig.HTTPEndpoint()
	if tunnel.Domain != "" {
		endpoint = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(tunnel.Domain))
	}

	tun, err := ngrok.Listen(ctx, endpoint, ngrok.WithAuthtoken(tunnel.AuthToken))
	if err != nil {
		log.Error().Err(err).Msg("Failed to start ngrok tunnel")
		return
	}
	go func() {
		<-ctx.Done()
		tun.Close()
	}()

	url := tun.URL()
	log.Info().
		Str("api", url+"/api").
		Str("websocket", url+"/ws?session=<session_id>").
		Str("mcp", url+"/mcp").
		Msgf("Ngrok tunnel established: %s", url)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Error().Err(err).Msg("Ngrok server error")
	}
	log.Info().Msg("Ngrok tunnel closed")
}

// startInternalAPI serves the REST API on a random loopback port
func startInternalAPI(ctx context.Context, svc *services, log zerolog.Logger) (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to get available port: %w", err)
	}

	hub := websocket.NewHub(websocket.WithLogger(log))
	go hub.Run(ctx)

	httpServer := &http.Server{Handler: api.NewServer(svc.drive, hub, api.WithLogger(log))}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Internal HTTP server error")
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	return "http://" + listener.Addr().String(), nil
}
