package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prohmpiriya/multicore-crm/pkg/logger"
)

// HookTimeout bounds each after-commit hook. Hooks keep the values of the
// request context but not its cancellation.
var HookTimeout = 10 * time.Second

// Transactor runs a function inside a unit of work
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AfterCommitHooks collects callbacks to run after a successful commit
type AfterCommitHooks struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

type hooksKey struct{}

// WithAfterCommit attaches a fresh hook list to ctx. Transactors call it when
// opening the outermost transaction.
func WithAfterCommit(ctx context.Context) (context.Context, *AfterCommitHooks) {
	h := &AfterCommitHooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

// InTx reports whether ctx belongs to an open unit of work
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(hooksKey{}).(*AfterCommitHooks)
	return ok
}

// AfterCommit schedules fn to run once the transaction carried by ctx commits.
// Without a transaction fn runs immediately. Hooks of a rolled back
// transaction never run.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if h, ok := ctx.Value(hooksKey{}).(*AfterCommitHooks); ok {
		h.mu.Lock()
		h.fns = append(h.fns, fn)
		h.mu.Unlock()
		return
	}
	runHook(ctx, fn)
}

// Run executes the hooks in registration order. ctx must not carry the
// finished transaction. A panicking hook is logged and does not stop the rest.
func (h *AfterCommitHooks) Run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()

	for _, fn := range fns {
		runHook(ctx, fn)
	}
}

// Len returns the number of pending hooks
func (h *AfterCommitHooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.fns)
}

func runHook(ctx context.Context, fn func(context.Context)) {
	hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), HookTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			logger.WarnCtx(hookCtx, "after-commit hook panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn(hookCtx)
}
