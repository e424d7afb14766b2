// Package apptest provides a scripted Application for exercising hosts.
package apptest

import (
	"context"
	"sync"

	"github.com/radhika-singh-10/state-bootstrap/app"
)

// Scripted emits Snapshots, in order, from every instance it starts and then
// closes the stream. It records the prior state of each Init call.
type Scripted struct {
	Snapshots []app.Snapshot
	InitErr   error
	ExitErr   error

	mu     sync.Mutex
	priors []*string
}

func New(snapshots ...app.Snapshot) *Scripted {
	return &Scripted{Snapshots: snapshots}
}

func (s *Scripted) Init(ctx context.Context, prior *string) (app.Instance, error) {
	s.mu.Lock()
	if prior != nil {
		p := *prior
		prior = &p
	}
	s.priors = append(s.priors, prior)
	s.mu.Unlock()

	if s.InitErr != nil {
		return nil, s.InitErr
	}

	inst := &Instance{
		out:     make(chan app.Snapshot),
		done:    make(chan struct{}),
		exitErr: s.ExitErr,
	}
	go inst.emit(ctx, s.Snapshots)
	return inst, nil
}

// Priors returns the prior state passed to each Init call.
func (s *Scripted) Priors() []*string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*string(nil), s.priors...)
}

type Instance struct {
	out     chan app.Snapshot
	done    chan struct{}
	once    sync.Once
	exitErr error
}

func (i *Instance) emit(ctx context.Context, snapshots []app.Snapshot) {
	defer close(i.out)
	for _, s := range snapshots {
		select {
		case i.out <- s:
		case <-i.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (i *Instance) Outgoing() <-chan app.Snapshot {
	return i.out
}

func (i *Instance) Close() error {
	i.once.Do(func() { close(i.done) })
	return nil
}

func (i *Instance) Wait() error {
	return i.exitErr
}
