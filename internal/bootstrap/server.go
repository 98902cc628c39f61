package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/uniconnect/internal/adapters/http"
)

const (
	shutdownTimeout = 10 * time.Second
	// processDocuments runs inside the request.
	writeTimeout = 15 * time.Minute
)

// ServeHTTP listens on API_PORT until ctx is done, then shuts down
// gracefully. Open connections are capped at API_MAX_CONNECTIONS.
func (a *App) ServeHTTP(ctx context.Context) error {
	handler, err := httpadapter.NewRouter(a.Config, a.Assistant, a.HTTPMetrics, a.Logger).Handler()
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	listener, err := net.Listen("tcp", ":"+a.Config.APIPort)
	if err != nil {
		return fmt.Errorf("listen on :%s: %w", a.Config.APIPort, err)
	}
	if a.Config.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, a.Config.APIMaxConnections)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("api_listening", "addr", listener.Addr().String(), "max_connections", a.Config.APIMaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}
