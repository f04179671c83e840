package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/plcbus/adsclient"
	_ "github.com/plcbus/adsclient/docs" // generated swagger docs
)

// Server hosts the HTTP gateway.
type Server struct {
	config     *Config
	gateway    *Gateway
	handler    *Handler
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer builds the ADS client from configuration and wires the router.
// The client is connected in Start.
func NewServer(config *Config) (*Server, error) {
	opts := []adsclient.Option{
		adsclient.WithTarget(config.PLC.TargetNetID, config.PLC.TargetPort),
		adsclient.WithRouterAddress(config.PLC.RouterAddress),
		adsclient.WithTimeout(config.Timeout()),
		adsclient.WithCachedSymbols(config.PLC.CacheSymbols),
		adsclient.WithAllowHalfOpen(config.PLC.AllowHalfOpen),
	}
	if config.PLC.RouterPort != 0 {
		opts = append(opts, adsclient.WithRouterTCPPort(config.PLC.RouterPort))
	}
	if config.PLC.LocalNetID != "" {
		opts = append(opts, adsclient.WithLocalAddress(config.PLC.LocalNetID, config.PLC.LocalPort))
	}

	client, err := adsclient.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("middleware: create ADS client: %w", err)
	}

	gateway := NewGateway(client, config)
	s := &Server{
		config:  config,
		gateway: gateway,
		handler: NewHandler(gateway),
	}
	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         config.Address(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRouter configures the HTTP router.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	if s.config.Server.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.Server.CORS.AllowedOrigins,
			AllowedMethods:   s.config.Server.CORS.AllowedMethods,
			AllowedHeaders:   s.config.Server.CORS.AllowedHeaders,
			AllowCredentials: s.config.Server.CORS.AllowCredentials,
			MaxAge:           300,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/values", func(r chi.Router) {
			r.Post("/read", s.handler.HandleBatchRead)
			r.Post("/write", s.handler.HandleBatchWrite)
			r.Get("/{name}", s.handler.HandleReadValue)
			r.Post("/{name}", s.handler.HandleWriteValue)
		})

		r.Route("/symbols", func(r chi.Router) {
			r.Get("/", s.handler.HandleGetSymbolTable)
			r.Get("/{name}", s.handler.HandleGetSymbolInfo)
		})

		r.Get("/health", s.handler.HandleHealth)
		r.Get("/info", s.handler.HandleInfo)
		r.Get("/state", s.handler.HandleGetState)
		r.Post("/control", s.handler.HandleControl)
	})

	// WebSocket endpoint
	r.Get("/ws/subscribe", s.handler.HandleWebSocket)

	// Swagger UI
	r.Get("/swagger-ui/*", httpSwagger.WrapHandler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name":"ADS HTTP/WebSocket Gateway","version":"1.0","docs":"/swagger-ui/index.html","websocket":"/ws/subscribe"}`)
	})

	s.router = r
}

// Start connects the ADS client and serves HTTP until the listener fails.
func (s *Server) Start(ctx context.Context) error {
	log.Printf("Connecting to PLC %s:%d via router %s", s.config.PLC.TargetNetID, s.config.PLC.TargetPort, s.config.PLC.RouterAddress)
	if err := s.gateway.Client().Connect(ctx); err != nil {
		return fmt.Errorf("middleware: connect ADS client: %w", err)
	}

	log.Printf("Starting gateway on %s", s.config.Address())
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and disconnects the client.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down gateway...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("middleware: shutdown HTTP server: %w", err)
	}
	if err := s.gateway.Client().Disconnect(ctx); err != nil {
		log.Printf("ADS disconnect failed: %v", err)
	}

	log.Println("Gateway stopped")
	return nil
}

// Router returns the chi router (useful for testing).
func (s *Server) Router() *chi.Mux {
	return s.router
}
