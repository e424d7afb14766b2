package process

import (
	"context"
	"encoding/json"
	"os/exec"
	"testing"
	"time"

	"github.com/radhika-singh-10/state-bootstrap/app"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func collect(t *testing.T, inst app.Instance) []string {
	var lines []string
	timeout := time.After(10 * time.Second)
	for {
		select {
		case s, ok := <-inst.Outgoing():
			if !ok {
				return lines
			}
			lines = append(lines, string(s.(json.RawMessage)))
		case <-timeout:
			t.Fatal("timed out waiting for application output")
		}
	}
}

const echoFlags = `if [ -z "${STATE_FLAGS+x}" ]; then echo '"absent"'; else echo "$STATE_FLAGS"; fi
echo ""
echo '{"count":2}'
echo null
echo 'diagnostic' >&2`

func TestProcessPassesPriorAndEmitsLines(t *testing.T) {
	requireShell(t)
	t.Setenv(FlagsEnv, "inherited")

	prior := `{"count":1}`
	inst, err := New("sh", "-c", echoFlags).Init(context.Background(), &prior)
	require.NoError(t, err)

	lines := collect(t, inst)
	require.Equal(t, []string{`{"count":1}`, `{"count":2}`, "null"}, lines)
	require.NoError(t, inst.(app.Waiter).Wait())
	require.NoError(t, inst.Close())
}

func TestProcessAbsentPriorIsUnset(t *testing.T) {
	requireShell(t)
	t.Setenv(FlagsEnv, "inherited")

	inst, err := New("sh", "-c", echoFlags).Init(context.Background(), nil)
	require.NoError(t, err)

	lines := collect(t, inst)
	require.Equal(t, `"absent"`, lines[0])
}

func TestProcessExitStatus(t *testing.T) {
	requireShell(t)

	inst, err := New("sh", "-c", "echo 1; exit 3").Init(context.Background(), nil)
	require.NoError(t, err)

	require.Equal(t, []string{"1"}, collect(t, inst))
	require.Error(t, inst.(app.Waiter).Wait())
}

func TestProcessClose(t *testing.T) {
	requireShell(t)

	inst, err := New("sh", "-c", "while true; do echo 1; sleep 0.05; done").Init(context.Background(), nil)
	require.NoError(t, err)

	<-inst.Outgoing()
	require.NoError(t, inst.Close())
	require.Error(t, inst.(app.Waiter).Wait())
}

func TestProcessRequiresCommand(t *testing.T) {
	_, err := (&Application{}).Init(context.Background(), nil)
	require.Error(t, err)
}

const lingeringChild = "echo 1; (sleep 20); echo 2"

func TestProcessCloseKillsDescendants(t *testing.T) {
	requireShell(t)

	inst, err := New("sh", "-c", lingeringChild).Init(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "1", string((<-inst.Outgoing()).(json.RawMessage)))

	closed := make(chan error, 1)
	go func() { closed <- inst.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on a descendant holding the output open")
	}
}

func TestProcessContextCancelKillsDescendants(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	inst, err := New("sh", "-c", lingeringChild).Init(ctx, nil)
	require.NoError(t, err)
	<-inst.Outgoing()
	cancel()

	waited := make(chan error, 1)
	go func() { waited <- inst.(app.Waiter).Wait() }()
	select {
	case err := <-waited:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait blocked after the context was cancelled")
	}
}

func TestProcessCloseBoundsEscapedOutput(t *testing.T) {
	requireShell(t)
	if _, err := exec.LookPath("setsid"); err != nil {
		t.Skip("setsid not available")
	}
	defer func(d time.Duration) { outputGrace = d }(outputGrace)
	outputGrace = 100 * time.Millisecond

	inst, err := New("sh", "-c", "echo 1; setsid sleep 20; echo 2").Init(context.Background(), nil)
	require.NoError(t, err)
	<-inst.Outgoing()

	closed := make(chan error, 1)
	go func() { closed <- inst.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on output held outside the process group")
	}
}
