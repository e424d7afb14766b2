package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/logger"
)

func stripHTTPPrefix(url string) string {
	url = strings.TrimPrefix(url, "http://")
	return strings.TrimSuffix(url, "/")
}

// listenAndServe serves handler on listenURL until ctx is done.
func listenAndServe(ctx context.Context, name, listenURL string, handler http.Handler) error {
	addr := stripHTTPPrefix(listenURL)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Log.Printf("Starting %s HTTP server on %s", name, addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
