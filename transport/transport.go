package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/logger"
	"go.etcd.io/raft/v3/raftpb"
)

// HttpTransport moves raft messages between nodes as HTTP POSTs to <peer>/raft.
type HttpTransport struct {
	id      uint64
	client  *http.Client
	peerMap map[uint64]string
	RecvC   chan raftpb.Message
	mu      sync.RWMutex
}

// ParsePeers reads a peer list of the form "1=http://host:port".
func ParsePeers(peers []string) (map[uint64]string, error) {
	peerMap := make(map[uint64]string, len(peers))
	for _, peer := range peers {
		peer = strings.TrimSpace(peer)
		if peer == "" {
			continue
		}
		idHost := strings.SplitN(peer, "=", 2)
		if len(idHost) != 2 || idHost[1] == "" {
			return nil, errors.Errorf("invalid peer %q, want id=url", peer)
		}
		id, err := strconv.ParseUint(idHost[0], 10, 64)
		if err != nil || id == 0 {
			return nil, errors.Errorf("invalid peer id in %q", peer)
		}
		peerMap[id] = idHost[1]
	}
	return peerMap, nil
}

func NewHTTPTransport(id uint64, peers []string) (*HttpTransport, error) {
	peerMap, err := ParsePeers(peers)
	if err != nil {
		return nil, err
	}
	return &HttpTransport{
		id:      id,
		client:  &http.Client{Timeout: 5 * time.Second},
		peerMap: peerMap,
		RecvC:   make(chan raftpb.Message, 1024),
	}, nil
}

func (t *HttpTransport) GetPeerURL(id uint64) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.peerMap[id]
}

// PeerIDs returns the known peer ids in ascending order.
func (t *HttpTransport) PeerIDs() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]uint64, 0, len(t.peerMap))
	for id := range t.peerMap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *HttpTransport) AddPeer(newNodeID uint64, newPeerURL string) {
	if newPeerURL == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peerMap[newNodeID] = newPeerURL
	logger.Log.Infof("Added new peer: Node ID %d, URL: %s", newNodeID, newPeerURL)
}

func (t *HttpTransport) RemovePeer(nodeId uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peerMap, nodeId)
	logger.Log.Infof("Removed peer: Node ID %d", nodeId)
}

func (t *HttpTransport) Send(messages []raftpb.Message) {
	for _, msg := range messages {
		if msg.To == t.id {
			t.RecvC <- msg
		} else {
			t.SendMessage(msg)
		}
	}
}

func (t *HttpTransport) SendMessage(msg raftpb.Message) {
	data, err := msg.Marshal()
	if err != nil {
		logger.Log.Warnf("failed to marshal message: %v", err)
		return
	}
	peerURL := t.GetPeerURL(msg.To)
	if peerURL == "" {
		logger.Log.Warnf("failed to find peer URL for node %d", msg.To)
		return
	}
	logger.Log.Debugf("sending message from %d to %d of type %s", msg.From, msg.To, msg.Type)
	url := fmt.Sprintf("%s/raft", strings.TrimSuffix(peerURL, "/"))
	resp, err := t.client.Post(url, "application/octet-stream", bytes.NewReader(data))
	if err != nil {
		logger.Log.Warnf("failed to send message to %s: %v", url, err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		logger.Log.Warnf("failed to send message to %s, status: %v", url, resp.Status)
	}
}

func (t *HttpTransport) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var msg raftpb.Message
	if err := msg.Unmarshal(body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t.RecvC <- msg
	w.WriteHeader(http.StatusOK)
}
