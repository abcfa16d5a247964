package procctx

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TaskContext is the fresh allocation context passed to a ScheduleAsyncTask
// setup callback (spec §4.10: "setup receives a fresh allocation context").
// Go's GC makes an explicit allocator unnecessary (spec §9 Design Notes);
// TaskContext holds only a Ctx field, and Runner.Schedule passes it with
// Ctx unset; the deferred closure receives its context from Drain.
type TaskContext struct {
	Ctx context.Context
}

// Runner accumulates deferred work registered by hooks via
// ScheduleAsyncTask during one transaction and runs it once the owning
// transaction commits (spec §4.10), using golang.org/x/sync/errgroup so a
// failing task doesn't silently vanish.
type Runner struct {
	mu    sync.Mutex
	tasks []func(ctx context.Context) error
}

// NewRunner returns an empty task runner; worker.NewTransaction creates
// one per Transaction.
func NewRunner() *Runner { return &Runner{} }

// Schedule registers setup, which returns the deferred closure to run
// post-commit (spec §4.10: "setup... must return a closure taking a
// Transaction to be executed on a worker task"). The closure here takes a
// context.Context rather than a concrete *worker.Transaction to avoid an
// import cycle; worker.ScheduleAsyncTask adapts by opening a fresh
// transaction from the same adapter before invoking each task.
func (r *Runner) Schedule(setup func(tc *TaskContext) func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, setup(&TaskContext{}))
}

// Drain runs every scheduled task concurrently on an errgroup (no limit)
// and returns the first error, if any. Called once the owning outermost
// transaction's Commit() has returned successfully.
func (r *Runner) Drain(ctx context.Context) error {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()

	if len(tasks) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		t := t
		g.Go(func() error { return t(gctx) })
	}
	return g.Wait()
}

// Pending reports how many tasks are currently queued, for diagnostics.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
