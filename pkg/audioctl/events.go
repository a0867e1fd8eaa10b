package audioctl

import (
	"sync"

	"go.uber.org/zap"
)

// EndpointID is the opaque, stable identifier of one audio endpoint
type EndpointID string

// EndpointDescriptor is an immutable snapshot taken at resolution time -
// a later rename is not reflected without re-resolving
type EndpointDescriptor struct {
	ID           EndpointID
	FriendlyName string
}

// DeviceEventKind tags a collection-level notification
type DeviceEventKind int

const (
	DeviceStateChanged DeviceEventKind = iota
	DeviceAdded
	DeviceRemoved
	DefaultDeviceChanged
)

func (k DeviceEventKind) String() string {
	switch k {
	case DeviceStateChanged:
		return "state changed"
	case DeviceAdded:
		return "added"
	case DeviceRemoved:
		return "removed"
	case DefaultDeviceChanged:
		return "default changed"
	default:
		return "unknown"
	}
}

// DeviceEvent is one collection-level notification. When the raw payload
// couldn't be converted, Err carries a KindConversionFailed error and the
// remaining fields are zero.
type DeviceEvent struct {
	Kind  DeviceEventKind
	ID    EndpointID
	State DeviceState
	Flow  DataFlow
	Role  Role

	Err error
}

// VolumeEvent is one per-device volume notification
type VolumeEvent struct {
	Muted          bool
	MasterVolume   float32
	ChannelVolumes []float32

	Err error
}

const defaultEventBuffer = 1

// bridge carries events from subsystem callback threads to a single draining
// consumer. Submits are serialized by the mutex so per-sink arrival order is
// preserved, and they never block: when the consumer isn't keeping up the
// event is dropped (delivery is best-effort under backpressure).
type bridge[T any] struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	events  chan T
	closed  bool
	dropped uint64
}

func newBridge[T any](logger *zap.SugaredLogger, capacity int) *bridge[T] {
	if capacity <= 0 {
		capacity = defaultEventBuffer
	}

	return &bridge[T]{
		logger: logger,
		events: make(chan T, capacity),
	}
}

// receiver returns the consumer side; it is closed exactly once by close
func (b *bridge[T]) receiver() <-chan T {
	return b.events
}

// submit enqueues ev without blocking. It reports whether the event was
// actually delivered; a false return means the bridge was closed or full.
func (b *bridge[T]) submit(ev T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	select {
	case b.events <- ev:
		return true
	default:
		b.dropped++
		b.logger.Debugw("Dropping event, consumer not keeping up", "totalDropped", b.dropped)

		return false
	}
}

// close ends the stream cleanly; safe to call more than once and safe
// against racing submits
func (b *bridge[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.events)
}

// droppedCount returns how many events were discarded under backpressure
func (b *bridge[T]) droppedCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dropped
}
