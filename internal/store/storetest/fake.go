package storetest

import (
	"context"
	"sync"
)

// Snapshotter is implemented by in-memory fakes that can roll their state
// back.
type Snapshotter interface {
	Snapshot() (restore func())
}

// Transactor is an in-memory stand-in for store.Store. When fn fails every
// registered fake is restored to its state from before the call, which gives
// service tests the same all-or-nothing behavior as a database transaction.
type Transactor struct {
	mu    sync.Mutex
	fakes []Snapshotter
	depth int

	Commits   int
	Rollbacks int
}

func NewTransactor(fakes ...Snapshotter) *Transactor {
	return &Transactor{fakes: fakes}
}

func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.depth++
	outer := t.depth == 1
	var restores []func()
	if outer {
		for _, f := range t.fakes {
			restores = append(restores, f.Snapshot())
		}
	}
	t.mu.Unlock()

	err := fn(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.depth--
	if !outer {
		return err
	}
	if err != nil {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		t.Rollbacks++
		return err
	}
	t.Commits++
	return nil
}
