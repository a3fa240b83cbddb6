package workflow

import (
	"context"
	"log"
	"sync"

	"shift-scheduler/internal/app/resolution"
	"shift-scheduler/internal/domain"
)

// Outcome is what an executor reports for a successful submission.
type Outcome struct {
	Deferred bool
	StaffIDs []string
}

// Executor performs the side effects a session asks for.
type Executor interface {
	Submit(ctx context.Context, c domain.Conflict, opt domain.ResolutionOption, p resolution.Params) (Outcome, error)
	Redetect(ctx context.Context, staffIDs []string) ([]domain.Conflict, error)
}

// Runner owns a session and executes its effects off the caller's
// goroutine through Go.
type Runner struct {
	mu      sync.Mutex
	session Session

	ctx    context.Context
	exec   Executor
	logger *log.Logger

	// Go schedules effect execution. Defaults to a new goroutine.
	Go func(func())
	// OnChange is called with every session produced by a transition.
	OnChange func(Session)
}

func NewRunner(ctx context.Context, s Session, exec Executor, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		session: s,
		ctx:     ctx,
		exec:    exec,
		logger:  logger,
		Go:      func(fn func()) { go fn() },
	}
}

func (r *Runner) Session() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Dispatch applies ev and schedules the resulting effects.
func (r *Runner) Dispatch(ev Event) (Session, error) {
	r.mu.Lock()
	prev := r.session
	next, effects, err := Transition(prev, ev)
	if err != nil {
		r.mu.Unlock()
		return prev, err
	}
	r.session = next
	r.mu.Unlock()

	if next.State != prev.State {
		r.logger.Printf("[workflow] %s -> %s (gen=%d)", prev.State, next.State, next.Gen)
	}
	if r.OnChange != nil && (next.State != prev.State || next.Gen != prev.Gen || len(next.Conflicts) != len(prev.Conflicts)) {
		r.OnChange(next)
	}
	for _, eff := range effects {
		eff := eff
		r.Go(func() { r.run(eff) })
	}
	return next, nil
}

func (r *Runner) run(eff Effect) {
	switch eff := eff.(type) {
	case Submit:
		if gen := r.Session().Gen; gen != eff.Gen {
			r.logger.Printf("[workflow] submit %s/%s abandoned (gen %d, now %d)", eff.Conflict.ID, eff.Option, eff.Gen, gen)
			return
		}
		out, err := r.exec.Submit(r.ctx, eff.Conflict, eff.Option, eff.Params)
		if err != nil {
			r.logger.Printf("[workflow] submit %s/%s failed: %v", eff.Conflict.ID, eff.Option, err)
			r.dispatch(ResolutionFailed{Gen: eff.Gen, Err: err})
			return
		}
		r.dispatch(ResolutionSucceeded{Gen: eff.Gen, ConflictID: eff.Conflict.ID, Deferred: out.Deferred, StaffIDs: out.StaffIDs})
	case Redetect:
		conflicts, err := r.exec.Redetect(r.ctx, eff.StaffIDs)
		if err != nil {
			r.logger.Printf("[workflow] redetect %v failed: %v", eff.StaffIDs, err)
			return
		}
		r.dispatch(ConflictsRefreshed{StaffIDs: eff.StaffIDs, Conflicts: conflicts})
	}
}

func (r *Runner) dispatch(ev Event) {
	if _, err := r.Dispatch(ev); err != nil {
		r.logger.Printf("[workflow] %T dropped: %v", ev, err)
	}
}
