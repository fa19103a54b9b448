package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/forgeos/graph-service/internal/config"
)

// RunningServer holds a bound HTTP server and its listener.
type RunningServer struct {
	Port   int
	server *http.Server
	lis    net.Listener
}

// Close gracefully shuts the server down.
func (r *RunningServer) Close(ctx context.Context) error {
	if r == nil || r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

// StartHTTP binds the main listener and serves the router on it.
func StartHTTP(ctx context.Context, cfg *config.Config, handler http.Handler) (*RunningServer, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("listen failed: %w", err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: seconds(cfg.ReadHeaderTimeout),
	}
	go func() {
		if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", "err", err)
		}
	}()

	return &RunningServer{
		Port:   lis.Addr().(*net.TCPAddr).Port,
		server: srv,
		lis:    lis,
	}, nil
}

// startManagementServer serves the management endpoints (health,
// metrics) on their own port. Returns the bound address and a shutdown
// function.
func startManagementServer(cfg *config.Config, handler http.Handler) (net.Addr, func(context.Context) error, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.ManagementPort))
	if err != nil {
		return nil, nil, fmt.Errorf("management listen failed: %w", err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: seconds(cfg.ReadHeaderTimeout),
	}
	go func() {
		if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Error("Management server failed", "err", err)
		}
	}()

	log.Info("Management server listening", "addr", lis.Addr())
	return lis.Addr(), srv.Shutdown, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
