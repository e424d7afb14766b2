// Package process hosts an application running as a child process.
//
// The prior state is handed to the child in the STATE_FLAGS environment
// variable, which is left unset when nothing was stored. The child reports
// state by writing one JSON value per line to stdout; a line containing
// null asks the host to forget the stored state. Stderr is forwarded to the
// host log.
package process

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/app"
	"github.com/radhika-singh-10/state-bootstrap/logger"
	"github.com/sirupsen/logrus"
)

const FlagsEnv = "STATE_FLAGS"

const maxLineSize = 16 * 1024 * 1024

// outputGrace is how long a killed child's descendants may keep its output
// open before the host closes its ends of the pipes.
var outputGrace = 2 * time.Second

type Application struct {
	Path string
	Args []string
	// Env is appended to the host environment.
	Env []string
	Dir string
}

func New(path string, args ...string) *Application {
	return &Application{Path: path, Args: args}
}

func (a *Application) Init(ctx context.Context, prior *string) (app.Instance, error) {
	if a.Path == "" {
		return nil, errors.New("process application has no command")
	}

	cmd := exec.Command(a.Path, a.Args...)
	cmd.Dir = a.Dir
	setProcessGroup(cmd)
	cmd.Env = childEnv(append(os.Environ(), a.Env...), prior)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stderr pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %s", a.Path)
	}

	log := logger.Log.WithFields(logrus.Fields{"app": a.Path, "pid": cmd.Process.Pid})
	log.WithField("prior", prior != nil).Infoln("Application started")

	inst := &Instance{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		out:    make(chan app.Snapshot),
		done:   make(chan struct{}),
		killed: make(chan struct{}),
		exited: make(chan struct{}),
		log:    log,
	}
	inst.pipes.Add(2)
	go inst.readSnapshots(stdout)
	go inst.forwardStderr(stderr)
	go inst.killOnCancel(ctx)
	return inst, nil
}

// childEnv drops any inherited flags variable so an absent prior stays absent.
func childEnv(env []string, prior *string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, FlagsEnv+"=") {
			continue
		}
		out = append(out, kv)
	}
	if prior != nil {
		out = append(out, FlagsEnv+"="+*prior)
	}
	return out
}

type Instance struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
	out    chan app.Snapshot
	done   chan struct{}
	killed chan struct{}
	exited chan struct{}
	log    *logrus.Entry
	pipes  sync.WaitGroup

	closeOnce sync.Once
	killOnce  sync.Once
	waitOnce  sync.Once
	waitErr   error
	scanErr   error
}

func (i *Instance) Outgoing() <-chan app.Snapshot {
	return i.out
}

func (i *Instance) readSnapshots(r io.Reader) {
	defer i.pipes.Done()
	defer close(i.out)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case i.out <- json.RawMessage(line):
		case <-i.done:
			io.Copy(io.Discard, r)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		i.scanErr = errors.Wrap(err, "read application output")
		io.Copy(io.Discard, r)
	}
}

func (i *Instance) forwardStderr(r io.Reader) {
	defer i.pipes.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		i.log.Warnln(scanner.Text())
	}
	io.Copy(io.Discard, r)
}

func (i *Instance) killOnCancel(ctx context.Context) {
	select {
	case <-ctx.Done():
		i.kill()
	case <-i.exited:
	}
}

// kill sends SIGKILL to the child's whole process group.
func (i *Instance) kill() {
	i.killOnce.Do(func() {
		close(i.killed)
		if err := killProcessTree(i.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			i.log.WithError(err).Warnln("Unable to kill application")
		}
	})
}

// drainOutput waits for both output streams to reach EOF. After a kill, a
// descendant still holding them gets outputGrace before they are closed.
func (i *Instance) drainOutput() {
	drained := make(chan struct{})
	go func() {
		i.pipes.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return
	case <-i.killed:
	}
	select {
	case <-drained:
	case <-time.After(outputGrace):
		i.log.Warnln("Application output still open after kill, closing it")
		i.stdout.Close()
		i.stderr.Close()
		<-drained
	}
}

// Wait blocks until the child exits and its output has been consumed.
func (i *Instance) Wait() error {
	i.waitOnce.Do(func() {
		i.drainOutput()
		err := i.cmd.Wait()
		if err == nil {
			err = i.scanErr
		}
		i.waitErr = errors.Wrap(err, "application exited")
		i.log.WithError(err).Infoln("Application stopped")
		close(i.exited)
	})
	return i.waitErr
}

// Close kills the child and everything it started if still running.
func (i *Instance) Close() error {
	i.closeOnce.Do(func() {
		close(i.done)
		i.kill()
	})
	i.Wait()
	return nil
}
