package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/app"
	"github.com/radhika-singh-10/state-bootstrap/logger"
)

// PortServer is an app.Application for applications running in a browser.
// The page fetches its prior state from GET /flags and posts every state
// change to POST /ports/storeToCache; posted values reach the outgoing stream
// in the order the server accepted them.
type PortServer struct {
	mu    sync.Mutex
	prior *string
	inst  *portInstance
}

func NewPortServer() *PortServer {
	return &PortServer{}
}

// Init may be called once.
func (ps *PortServer) Init(ctx context.Context, prior *string) (app.Instance, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.inst != nil {
		return nil, errors.New("port server already initialized")
	}
	if prior != nil {
		p := *prior
		ps.prior = &p
	}
	ps.inst = &portInstance{
		out:  make(chan app.Snapshot),
		done: make(chan struct{}),
	}
	logger.Log.WithField("prior", prior != nil).Infoln("Port server initialized")
	return ps.inst, nil
}

func (ps *PortServer) instance() (*portInstance, *string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.inst, ps.prior
}

func (ps *PortServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/flags", ps.handleFlags).Methods("GET")
	r.HandleFunc("/ports/storeToCache", ps.handleStoreToCache).Methods("POST")
	return r
}

func (ps *PortServer) ListenAndServe(ctx context.Context, listenURL string) error {
	return listenAndServe(ctx, "port", listenURL, ps.Router())
}

func (ps *PortServer) handleFlags(w http.ResponseWriter, r *http.Request) {
	inst, prior := ps.instance()
	if inst == nil {
		http.Error(w, "Application not initialized", http.StatusServiceUnavailable)
		return
	}
	if prior == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, *prior)
}

func (ps *PortServer) handleStoreToCache(w http.ResponseWriter, r *http.Request) {
	inst, _ := ps.instance()
	if inst == nil {
		http.Error(w, "Application not initialized", http.StatusServiceUnavailable)
		return
	}

	snapshot, ok := readSnapshot(w, r)
	if !ok {
		return
	}

	if err := inst.publish(r.Context(), snapshot); err != nil {
		if errors.Is(err, app.ErrClosed) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusRequestTimeout)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// readSnapshot reads a JSON request body. An empty body is the same as null.
func readSnapshot(w http.ResponseWriter, r *http.Request) (app.Snapshot, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	body = bytes.TrimSpace(body)
	if len(body) > 0 && !json.Valid(body) {
		http.Error(w, "Body must be JSON", http.StatusBadRequest)
		return nil, false
	}
	return json.RawMessage(body), true
}

type portInstance struct {
	out  chan app.Snapshot
	done chan struct{}
	once sync.Once
}

func (pi *portInstance) Outgoing() <-chan app.Snapshot {
	return pi.out
}

func (pi *portInstance) publish(ctx context.Context, snapshot app.Snapshot) error {
	select {
	case <-pi.done:
		return app.ErrClosed
	default:
	}
	select {
	case pi.out <- snapshot:
		return nil
	case <-pi.done:
		return app.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (pi *portInstance) Close() error {
	pi.once.Do(func() { close(pi.done) })
	return nil
}
