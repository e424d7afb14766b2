package transport

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.etcd.io/raft/v3/raftpb"
)

func TestParsePeers(t *testing.T) {
	peers, err := ParsePeers([]string{"1=http://a:2380", " 2=http://b:2380 ", ""})
	require.NoError(t, err)
	require.Equal(t, map[uint64]string{1: "http://a:2380", 2: "http://b:2380"}, peers)

	for _, bad := range []string{"http://a:2380", "x=http://a", "0=http://a", "3="} {
		_, err := ParsePeers([]string{bad})
		require.Error(t, err, bad)
	}
}

func TestPeerMembership(t *testing.T) {
	tp, err := NewHTTPTransport(1, []string{"1=http://a"})
	require.NoError(t, err)

	tp.AddPeer(2, "http://b")
	tp.AddPeer(3, "")
	require.Equal(t, "http://b", tp.GetPeerURL(2))
	require.Equal(t, "", tp.GetPeerURL(3))
	require.Equal(t, []uint64{1, 2}, tp.PeerIDs())

	tp.RemovePeer(2)
	require.Equal(t, "", tp.GetPeerURL(2))
}

func TestSendDeliversToPeer(t *testing.T) {
	receiver, err := NewHTTPTransport(2, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(receiver.Receive))
	defer srv.Close()

	sender, err := NewHTTPTransport(1, []string{"2=" + srv.URL})
	require.NoError(t, err)

	sender.Send([]raftpb.Message{
		{From: 1, To: 2, Type: raftpb.MsgHeartbeat, Term: 4},
		{From: 1, To: 1, Type: raftpb.MsgHup},
	})

	select {
	case msg := <-receiver.RecvC:
		require.Equal(t, raftpb.MsgHeartbeat, msg.Type)
		require.Equal(t, uint64(4), msg.Term)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}

	select {
	case msg := <-sender.RecvC:
		require.Equal(t, raftpb.MsgHup, msg.Type)
	default:
		t.Fatal("local message not looped back")
	}
}

func TestReceiveRejectsGarbage(t *testing.T) {
	tp, err := NewHTTPTransport(1, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	tp.Receive(rec, httptest.NewRequest(http.MethodPost, "/raft", bytes.NewReader([]byte{0x00})))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
