// Package observer serves the live HUD over HTTP and websocket to local clients
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lixenwraith/outbreak/status"
)

const writeWait = 5 * time.Second

// Source provides HUD snapshots, safe to call from any goroutine
type Source interface {
	Snapshot() status.HUDSnapshot
}

// HUDMessage is one websocket frame
type HUDMessage struct {
	Type string             `json:"type"`
	Seq  uint64             `json:"seq"`
	HUD  status.HUDSnapshot `json:"hud"`
}

type Server struct {
	src    Source
	reg    *status.Registry
	push   time.Duration
	logger *zap.Logger

	upgrader websocket.Upgrader
	clients  atomic.Int64
}

func NewServer(src Source, push time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if push <= 0 {
		push = 250 * time.Millisecond
	}
	return &Server{
		src:    src,
		push:   push,
		logger: logger.Named("observer"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // remote clients are refused before upgrade
		},
	}
}

// WithRegistry exposes every registry cell at /v1/status
func (s *Server) WithRegistry(reg *status.Registry) *Server {
	s.reg = reg
	return s
}

// Clients returns the number of connected websocket clients
func (s *Server) Clients() int { return int(s.clients.Load()) }

// Handler routes /v1/hud and /v1/ws, plus /v1/status when a registry is attached
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/hud", s.HUDHandler())
	mux.HandleFunc("/v1/ws", s.WSHandler())
	if s.reg != nil {
		mux.HandleFunc("/v1/status", s.StatusHandler())
	}
	return mux
}

func (s *Server) HUDHandler() http.HandlerFunc {
	return s.getJSON(func() any { return s.src.Snapshot() })
}

// StatusHandler dumps the attached registry; 404 without one
func (s *Server) StatusHandler() http.HandlerFunc {
	return s.getJSON(func() any {
		if s.reg == nil {
			return nil
		}
		return s.reg.Dump()
	})
}

func (s *Server) getJSON(body func() any) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		v := body()
		if v == nil {
			http.NotFound(rw, r)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(v)
	}
}

// WSHandler pushes a HUD frame on connect and whenever the HUD changes, checked every push period
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := s.clients.Add(1)
		defer s.clients.Add(-1)
		s.logger.Debug("client connected", zap.String("remote", r.RemoteAddr), zap.Int64("clients", n))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Reader: the client sends nothing we act on, reads detect close
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(s.push)
		defer ticker.Stop()

		var (
			seq  uint64
			last status.HUDSnapshot
		)
		send := func(force bool) error {
			snap := s.src.Snapshot()
			if !force && snap == last {
				return nil
			}
			last = snap
			seq++
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			return conn.WriteJSON(HUDMessage{Type: "HUD", Seq: seq, HUD: snap})
		}

		if err := send(true); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
					time.Now().Add(time.Second))
				return
			case <-ticker.C:
				if err := send(false); err != nil {
					return
				}
			}
		}
	}
}

// Serve listens on addr until ctx is done
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("observer listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("observer server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
