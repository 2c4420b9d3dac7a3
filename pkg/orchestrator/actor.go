package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ganesha/pkg/logx"
	"ganesha/pkg/minime"
)

// PlanStore persists sessions and results. It is only called from the plan
// actor goroutine.
type PlanStore interface {
	SaveSession(ctx context.Context, s Session) error
	SaveResult(ctx context.Context, sessionID uuid.UUID, r minime.Result) error
}

const storeTimeout = 5 * time.Second

// planActor owns the Session. Every read and write runs on its goroutine, in
// the order submitted.
type planActor struct {
	session *Session
	store   PlanStore
	logger  *logx.Logger

	cmds chan func(*Session) bool
	done chan struct{}
}

func newPlanActor(store PlanStore, logger *logx.Logger) *planActor {
	a := &planActor{
		session: newSession(),
		store:   store,
		logger:  logger,
		cmds:    make(chan func(*Session) bool),
		done:    make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *planActor) loop() {
	for {
		select {
		case cmd := <-a.cmds:
			if cmd(a.session) {
				a.persist()
			}
		case <-a.done:
			return
		}
	}
}

func (a *planActor) persist() {
	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := a.store.SaveSession(ctx, a.session.clone()); err != nil {
		a.logger.Warn("💾 failed to persist session %s: %v", a.session.ID, err)
	}
}

// mutate runs fn on the actor and waits for it. The session is persisted
// afterwards when fn reports a change.
func (a *planActor) mutate(fn func(*Session) (changed bool, err error)) error {
	select {
	case <-a.done:
		return ErrClosed
	default:
	}

	errCh := make(chan error, 1)
	cmd := func(s *Session) bool {
		changed, err := fn(s)
		errCh <- err
		return changed
	}
	select {
	case a.cmds <- cmd:
		return <-errCh
	case <-a.done:
		return ErrClosed
	}
}

// read runs fn on the actor without persisting.
func (a *planActor) read(fn func(*Session)) {
	_ = a.mutate(func(s *Session) (bool, error) {
		fn(s)
		return false, nil
	})
}

func (a *planActor) saveResult(r minime.Result) {
	if a.store == nil {
		return
	}
	err := a.mutate(func(s *Session) (bool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := a.store.SaveResult(ctx, s.ID, r); err != nil {
			a.logger.Warn("💾 failed to persist result %s: %v", r.TaskID, err)
		}
		return false, nil
	})
	if err != nil {
		a.logger.Debug("💾 result %s not persisted: %v", r.TaskID, err)
	}
}

func (a *planActor) stop() {
	close(a.done)
}
