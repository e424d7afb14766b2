package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/radhika-singh-10/state-bootstrap/bootstrap"
	"github.com/radhika-singh-10/state-bootstrap/kvstore"
	"github.com/radhika-singh-10/state-bootstrap/logger"
)

const maxBodySize = 16 << 20

// Cluster changes raft membership.
type Cluster interface {
	AddNode(ctx context.Context, nodeID uint64, nodeURL string) error
	RemoveNode(ctx context.Context, nodeID uint64) error
}

// ApiServer exposes the store, and the durable entry within it, over HTTP.
// Cluster is optional.
type ApiServer struct {
	Store   kvstore.PersistentStore
	Entry   *kvstore.Entry
	Cluster Cluster
}

type createKeyValueRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewApiServer(store kvstore.PersistentStore, key string, cluster Cluster) (*ApiServer, error) {
	entry, err := kvstore.NewEntry(store, key)
	if err != nil {
		return nil, err
	}
	return &ApiServer{Store: store, Entry: entry, Cluster: cluster}, nil
}

func (as *ApiServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/kv/{key}", as.handleGet).Methods("GET")
	r.HandleFunc("/kv", as.handleSet).Methods("PUT")
	r.HandleFunc("/kv/{key}", as.handleDelete).Methods("DELETE")
	r.HandleFunc("/entry", as.handleGetEntry).Methods("GET")
	r.HandleFunc("/entry", as.handlePutEntry).Methods("PUT")
	r.HandleFunc("/entry", as.handleDeleteEntry).Methods("DELETE")
	if as.Cluster != nil {
		r.HandleFunc("/node", as.addNodeHandler).Methods("POST")
		r.HandleFunc("/node", as.removeNodeHandler).Methods("DELETE")
	}
	return r
}

func (as *ApiServer) ListenAndServe(ctx context.Context, clientListenURL string) error {
	return listenAndServe(ctx, "client", clientListenURL, as.Router())
}

func (as *ApiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		http.Error(w, "Key is required", http.StatusBadRequest)
		return
	}

	value, ok, err := as.Store.Get(key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{key: value})
}

func (as *ApiServer) handleSet(w http.ResponseWriter, r *http.Request) {
	var keyValue createKeyValueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&keyValue); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if keyValue.Key == "" {
		http.Error(w, "Key is required", http.StatusBadRequest)
		return
	}

	if err := as.Store.Set(keyValue.Key, keyValue.Value); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (as *ApiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := as.Store.Delete(key); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (as *ApiServer) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	value, err := as.Entry.Read()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if value == nil {
		http.Error(w, "Entry not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, *value)
}

// handlePutEntry stores a JSON body the same way an application snapshot is
// stored; a null body clears the entry.
func (as *ApiServer) handlePutEntry(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := readSnapshot(w, r)
	if !ok {
		return
	}
	if err := bootstrap.NewSink(as.Entry).Apply(snapshot); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (as *ApiServer) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := as.Entry.Remove(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (as *ApiServer) addNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeIDStr := r.URL.Query().Get("node_id")
	nodeID, err := strconv.ParseUint(nodeIDStr, 10, 64)
	if err != nil || nodeID == 0 {
		http.Error(w, "Invalid node ID", http.StatusBadRequest)
		return
	}
	nodeURL := r.URL.Query().Get("node_url")
	if nodeURL == "" {
		http.Error(w, "Missing node URL", http.StatusBadRequest)
		return
	}

	if err := as.Cluster.AddNode(r.Context(), nodeID, nodeURL); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	logger.Log.Infof("Successfully added node with NodeId %d", nodeID)
	w.WriteHeader(http.StatusNoContent)
}

func (as *ApiServer) removeNodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeIDStr := r.URL.Query().Get("node_id")
	nodeID, err := strconv.ParseUint(nodeIDStr, 10, 64)
	if err != nil || nodeID == 0 {
		http.Error(w, "Invalid node ID", http.StatusBadRequest)
		return
	}

	if err := as.Cluster.RemoveNode(r.Context(), nodeID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	logger.Log.Infof("Successfully removed node with NodeId %d", nodeID)
	w.WriteHeader(http.StatusNoContent)
}
