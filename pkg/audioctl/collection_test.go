package audioctl

import (
	"runtime"
	"testing"
	"time"
)

func testEndpointSet() []*fakeEndpoint {
	return []*fakeEndpoint{
		{id: "spk", name: "Speakers", flow: FlowRender, state: StateActive},
		{id: "hdmi", name: "Monitor", flow: FlowRender, state: StateUnplugged},
		{id: "mic", name: "Microphone", flow: FlowCapture, state: StateActive},
		{id: "old", name: "Retired headset", flow: FlowRender, state: StateNotPresent},
	}
}

func TestCollectionFilters(t *testing.T) {
	resolver, _ := newTestResolver(testEndpointSet()...)
	defer func() { _ = resolver.Close() }()

	cases := []struct {
		flow DataFlow
		mask DeviceState
		want uint32
	}{
		{FlowRender, StateActive, 1},
		{FlowCapture, StateActive, 1},
		{FlowAll, StateActive, 2},
		{FlowRender, StateActive | StateUnplugged, 2},
		{FlowAll, StateAll, 4},
	}

	for _, tc := range cases {
		collection, err := resolver.Collection(tc.flow, tc.mask)
		if err != nil {
			t.Fatalf("Collection(%s, %#x) failed: %v", tc.flow, uint32(tc.mask), err)
		}

		if got := collection.Count(); got != tc.want {
			t.Fatalf("Collection(%s, %#x).Count() = %d, want %d", tc.flow, uint32(tc.mask), got, tc.want)
		}

		collection.Close()
	}
}

func TestCollectionSnapshotIsFrozen(t *testing.T) {
	resolver, fs := newTestResolver(testEndpointSet()...)
	defer func() { _ = resolver.Close() }()

	collection, err := resolver.Collection(FlowAll, StateActive)
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	defer collection.Close()

	before := collection.Count()

	// a device change after enumeration doesn't reshape the snapshot
	fs.mu.Lock()
	fs.endpoints = append(fs.endpoints, &fakeEndpoint{id: "new", name: "New device", flow: FlowRender, state: StateActive})
	fs.mu.Unlock()

	if collection.Count() != before {
		t.Fatalf("Count changed from %d to %d after a device appeared", before, collection.Count())
	}

	// but a fresh enumeration sees it
	fresh, err := resolver.Collection(FlowAll, StateActive)
	if err != nil {
		t.Fatalf("second Collection failed: %v", err)
	}
	defer fresh.Close()

	if fresh.Count() != before+1 {
		t.Fatalf("fresh Count() = %d, want %d", fresh.Count(), before+1)
	}
}

func TestCollectionGet(t *testing.T) {
	resolver, _ := newTestResolver(testEndpointSet()...)
	defer func() { _ = resolver.Close() }()

	collection, err := resolver.Collection(FlowRender, StateActive)
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	defer collection.Close()

	first, err := collection.Get(0)
	if err != nil {
		t.Fatalf("Get(0) failed: %v", err)
	}
	defer func() { _ = first.Close() }()

	second, err := collection.Get(0)
	if err != nil {
		t.Fatalf("second Get(0) failed: %v", err)
	}
	defer func() { _ = second.Close() }()

	// same index resolves the same endpoint, as a fresh handle each time
	if first == second {
		t.Fatal("Get should return a fresh handle per call")
	}

	if first.ID() != second.ID() {
		t.Fatalf("Get(0) ids differ: %q vs %q", first.ID(), second.ID())
	}
}

func TestCollectionGetOutOfRange(t *testing.T) {
	resolver, _ := newTestResolver(testEndpointSet()...)
	defer func() { _ = resolver.Close() }()

	collection, err := resolver.Collection(FlowRender, StateActive)
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}
	defer collection.Close()

	_, err = collection.Get(collection.Count())
	if KindOf(err) != KindIndexOutOfRange {
		t.Fatalf("Get past end error kind = %v, want %v", KindOf(err), KindIndexOutOfRange)
	}
}

func TestCollectionGetAfterClose(t *testing.T) {
	resolver, _ := newTestResolver(testEndpointSet()...)
	defer func() { _ = resolver.Close() }()

	collection, err := resolver.Collection(FlowAll, StateAll)
	if err != nil {
		t.Fatalf("Collection failed: %v", err)
	}

	collection.Close()
	collection.Close() // idempotent

	_, err = collection.Get(0)
	if KindOf(err) != KindResolutionFailed {
		t.Fatalf("Get after close error kind = %v, want %v", KindOf(err), KindResolutionFailed)
	}
}

func TestCollectionCloseReleasesBackendOnce(t *testing.T) {
	fs := newFakeSystem(testEndpointSet()...)

	sysCol, err := fs.enumerate(FlowAll, StateActive)
	if err != nil {
		t.Fatalf("enumerate failed: %v", err)
	}

	fc := sysCol.(*fakeCollection)

	collection, err := newCollection(testLogger(), sysCol, FlowAll, StateActive)
	if err != nil {
		t.Fatalf("newCollection failed: %v", err)
	}

	collection.Close()
	collection.Close()

	if got := fc.releaseCount(); got != 1 {
		t.Fatalf("backend released %d times, want 1", got)
	}
}

func TestCollectionImplicitCleanup(t *testing.T) {
	fs := newFakeSystem(testEndpointSet()...)

	sysCol, err := fs.enumerate(FlowAll, StateActive)
	if err != nil {
		t.Fatalf("enumerate failed: %v", err)
	}

	fc := sysCol.(*fakeCollection)

	func() {
		collection, err := newCollection(testLogger(), sysCol, FlowAll, StateActive)
		if err != nil {
			t.Fatalf("newCollection failed: %v", err)
		}

		if collection.Count() == 0 {
			t.Fatal("snapshot unexpectedly empty")
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !fc.releasedNow() {
		if time.Now().After(deadline) {
			t.Fatal("snapshot not released after the handle became unreachable")
		}

		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
}
