package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

type PeerServer struct {
	Receive http.HandlerFunc
}

func (ps *PeerServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/raft", ps.Receive).Methods("POST")
	return r
}

func (ps *PeerServer) ListenAndServe(ctx context.Context, peerListenURL string) error {
	return listenAndServe(ctx, "peer", peerListenURL, ps.Router())
}
