package audioctl

import (
	"errors"
	"testing"
)

func TestGuardInitializesOnceAcrossAcquires(t *testing.T) {
	inits, teardowns := 0, 0

	guard := &runtimeGuard{
		initialize: func() error { inits++; return nil },
		teardown:   func() { teardowns++ },
	}

	for i := 0; i < 3; i++ {
		if err := guard.acquire(); err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
	}

	if inits != 1 {
		t.Fatalf("initialize ran %d times, want 1", inits)
	}

	guard.release()
	guard.release()

	if teardowns != 0 {
		t.Fatal("teardown ran while references were still held")
	}

	guard.release()

	if teardowns != 1 {
		t.Fatalf("teardown ran %d times, want 1", teardowns)
	}

	// the runtime can come back up after a full teardown
	if err := guard.acquire(); err != nil {
		t.Fatalf("re-acquire failed: %v", err)
	}

	if inits != 2 {
		t.Fatalf("initialize ran %d times after re-acquire, want 2", inits)
	}
}

func TestGuardOverReleaseIsNoop(t *testing.T) {
	teardowns := 0

	guard := &runtimeGuard{teardown: func() { teardowns++ }}

	guard.release()
	guard.release()

	if teardowns != 0 {
		t.Fatal("teardown ran without a matching acquire")
	}

	if guard.refCount() != 0 {
		t.Fatalf("refCount() = %d, want 0", guard.refCount())
	}
}

func TestGuardInitFailureLeavesCountUntouched(t *testing.T) {
	initErr := errors.New("runtime unavailable")

	guard := &runtimeGuard{initialize: func() error { return initErr }}

	if err := guard.acquire(); !errors.Is(err, initErr) {
		t.Fatalf("acquire error = %v, want %v", err, initErr)
	}

	if guard.refCount() != 0 {
		t.Fatalf("refCount() = %d after failed acquire, want 0", guard.refCount())
	}

	// a later acquire retries initialization
	guard.initialize = func() error { return nil }

	if err := guard.acquire(); err != nil {
		t.Fatalf("acquire after recovery failed: %v", err)
	}

	if guard.refCount() != 1 {
		t.Fatalf("refCount() = %d, want 1", guard.refCount())
	}
}
