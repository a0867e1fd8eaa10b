package audioctl

import "sync"

// runtimeGuard reference-counts process-wide initialization of the object
// activation runtime. The first acquire initializes, the last release tears
// down; releasing more times than acquired is a no-op. Initialization
// failure propagates to the caller that needed it and leaves the count
// untouched so a later acquire can retry.
type runtimeGuard struct {
	mu   sync.Mutex
	refs int

	initialize func() error
	teardown   func()
}

func (g *runtimeGuard) acquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.refs == 0 {
		if g.initialize != nil {
			if err := g.initialize(); err != nil {
				return err
			}
		}
	}

	g.refs++

	return nil
}

func (g *runtimeGuard) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.refs == 0 {
		return
	}

	g.refs--
	if g.refs == 0 && g.teardown != nil {
		g.teardown()
	}
}

func (g *runtimeGuard) refCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.refs
}
