package audioctl

import (
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Resolver owns the cross-thread-safe handle to the system's
// device-enumeration object. All lookups resolve that handle on demand, so
// they fail with a typed error (rather than touching a dead reference) once
// the resolver has been closed.
type Resolver struct {
	core    *resolverCore
	cleanup runtime.Cleanup
}

type resolverCore struct {
	logger *zap.SugaredLogger

	mu        sync.Mutex
	sys       sysEnumerator
	devReg    registration
	devBridge *bridge[DeviceEvent]
	closed    bool
}

// newResolver wires a Resolver over a backend; NewResolver (platform file)
// supplies the real one
func newResolver(logger *zap.SugaredLogger, sys sysEnumerator) *Resolver {
	core := &resolverCore{
		logger: logger.Named("resolver"),
		sys:    sys,
	}

	r := &Resolver{core: core}
	r.cleanup = runtime.AddCleanup(r, func(c *resolverCore) { _ = c.close() }, core)

	return r
}

// Endpoint resolves an endpoint id to a fresh Device handle
func (r *Resolver) Endpoint(id EndpointID) (*Device, error) {
	if id == "" || strings.ContainsRune(string(id), 0) {
		return nil, errorf(KindInvalidArgument, "resolve endpoint", "malformed endpoint id %q", string(id))
	}

	c := r.core

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errorf(KindResolutionFailed, "resolve endpoint", "resolver is closed")
	}

	sysDev, err := c.sys.endpoint(id)
	if err != nil {
		return nil, wrapKind(KindResolutionFailed, "resolve endpoint", err)
	}

	return newDevice(c.logger, sysDev)
}

// Collection enumerates the endpoints matching flow and the given state
// bitmask into a frozen snapshot
func (r *Resolver) Collection(flow DataFlow, mask DeviceState) (*Collection, error) {
	if _, err := dataFlowFromRaw(uint32(flow)); err != nil {
		return nil, newError(KindInvalidArgument, "enumerate endpoints", err)
	}

	if !validStateMask(mask) {
		return nil, errorf(KindInvalidArgument, "enumerate endpoints", "invalid state mask %#x", uint32(mask))
	}

	c := r.core

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errorf(KindResolutionFailed, "enumerate endpoints", "resolver is closed")
	}

	sysCol, err := c.sys.enumerate(flow, mask)
	if err != nil {
		c.logger.Warnw("Failed to enumerate endpoints", "flow", flow, "mask", mask, "error", err)
		return nil, wrapKind(KindEnumerationFailed, "enumerate endpoints", err)
	}

	return newCollection(c.logger, sysCol, flow, mask)
}

// Default resolves the default endpoint for flow. A missing default is a
// KindNoDefaultDevice error, distinct from generic failure, so callers can
// present "not plugged in" instead of "API broken".
func (r *Resolver) Default(flow DataFlow) (*Device, error) {
	if flow != FlowRender && flow != FlowCapture {
		return nil, errorf(KindInvalidArgument, "resolve default endpoint", "data flow %s has no default device", flow)
	}

	c := r.core

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errorf(KindResolutionFailed, "resolve default endpoint", "resolver is closed")
	}

	sysDev, err := c.sys.defaultEndpoint(flow)
	if err != nil {
		return nil, wrapKind(KindResolutionFailed, "resolve default endpoint", err)
	}

	return newDevice(c.logger, sysDev)
}

// StartDeviceEvents registers a collection-level notification sink and
// returns the paired receiver. Calling it again replaces the previous
// registration, closing its receiver first.
func (r *Resolver) StartDeviceEvents(capacity int) (<-chan DeviceEvent, error) {
	c := r.core

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errorf(KindResolutionFailed, "start device events", "resolver is closed")
	}

	c.dropDeviceRegistrationLocked()

	br := newBridge[DeviceEvent](c.logger, capacity)
	sink := newDeviceSink(c.logger, br)

	reg, err := c.sys.registerDeviceSink(sink)
	if err != nil {
		c.logger.Warnw("Failed to register device notifications", "error", err)
		return nil, wrapKind(KindPermissionOrState, "register device notifications", err)
	}

	c.devReg = reg
	c.devBridge = br

	c.logger.Debug("Registered device notifications")

	return br.receiver(), nil
}

// StopDeviceEvents unregisters the active sink and closes its receiver;
// no-op when nothing is registered
func (r *Resolver) StopDeviceEvents() {
	c := r.core

	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropDeviceRegistrationLocked()
}

// Close stops event delivery and releases the enumerator; idempotent
func (r *Resolver) Close() error {
	err := r.core.close()
	r.cleanup.Stop()

	return err
}

func (c *resolverCore) dropDeviceRegistrationLocked() {
	if c.devReg == nil {
		return
	}

	if err := c.devReg.unregister(); err != nil {
		c.logger.Warnw("Failed to unregister device notifications", "error", err)
	}

	c.devBridge.close()
	c.devReg = nil
	c.devBridge = nil

	c.logger.Debug("Unregistered device notifications")
}

func (c *resolverCore) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.dropDeviceRegistrationLocked()

	c.closed = true

	return c.sys.release()
}
