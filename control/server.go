package control

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/opd-ai/rtpscreen/av/rtp"
	"github.com/opd-ai/rtpscreen/capture"
	"github.com/opd-ai/rtpscreen/interfaces"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPushInterval is how often /stats/ws sends a snapshot.
	DefaultPushInterval = time.Second

	shutdownTimeout = 5 * time.Second
	writeTimeout    = 5 * time.Second
)

// Status is the snapshot served by /stats.
type Status struct {
	StreamID    string                 `json:"stream_id"`
	State       string                 `json:"state"`
	Kind        interfaces.WriterKind  `json:"kind"`
	Destination string                 `json:"destination"`
	Uptime      string                 `json:"uptime"`
	Writer      interfaces.WriterStats `json:"writer"`
	Source      capture.SourceStats    `json:"source"`
	Reception   *rtp.ReceptionSummary  `json:"reception,omitempty"`
}

// Provider supplies the data served by the control endpoints.
type Provider interface {
	State() string
	Status() Status
	SessionDescription() ([]byte, error)
}

// Server is the gin HTTP control server.
type Server struct {
	provider     Provider
	engine       *gin.Engine
	upgrader     websocket.Upgrader
	pushInterval time.Duration
	addr         string
}

// NewServer creates a control server that will listen on addr.
func NewServer(addr string, provider Provider) *Server {
	s := &Server{
		provider:     provider,
		engine:       gin.New(),
		pushInterval: DefaultPushInterval,
		addr:         addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.engine.Use(gin.Recovery(), requestLogger())
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/stream.sdp", s.handleSDP)
	s.engine.GET("/stats", s.handleStats)
	s.engine.GET("/stats/ws", s.handleStatsWS)
	return s
}

// SetPushInterval changes how often /stats/ws pushes a snapshot.
func (s *Server) SetPushInterval(d time.Duration) {
	if d > 0 {
		s.pushInterval = d
	}
}

// Handler returns the router for use with httptest or a custom server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logrus.WithFields(logrus.Fields{
		"function": "Server.Serve",
		"addr":     ln.Addr().String(),
	}).Info("Starting control server")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": s.provider.State()})
}

func (s *Server) handleSDP(c *gin.Context) {
	desc, err := s.provider.SessionDescription()
	if err != nil {
		if errors.Is(err, rtp.ErrInvalidConfig) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/sdp", desc)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.provider.Status())
}

func (s *Server) handleStatsWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleStatsWS",
			"error":    err.Error(),
		}).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reads only detect the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(s.provider.Status()); err != nil {
			return
		}
		select {
		case <-gone:
			return
		case <-c.Request.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeTimeout))
			return
		case <-ticker.C:
		}
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"function": "control",
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"latency":  time.Since(start),
		}).Debug("Handled request")
	}
}
