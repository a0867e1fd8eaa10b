package audioctl

import (
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Device wraps one resolved endpoint. It owns at most one active
// volume-notification registration at a time; replacing it unregisters the
// previous one first. A Device is meant to be driven by one caller context;
// the internal mutex only covers teardown races with the cleanup hook.
type Device struct {
	core    *deviceCore
	cleanup runtime.Cleanup
}

// deviceCore holds everything the cleanup hook needs without keeping the
// Device itself reachable
type deviceCore struct {
	logger *zap.SugaredLogger
	desc   EndpointDescriptor

	mu        sync.Mutex
	sys       sysDevice
	volReg    registration
	volBridge *bridge[VolumeEvent]
	closed    bool
}

func newDevice(logger *zap.SugaredLogger, sys sysDevice) (*Device, error) {
	desc, err := sys.descriptor()
	if err != nil {
		sys.release()
		return nil, wrapKind(KindResolutionFailed, "resolve endpoint descriptor", err)
	}

	core := &deviceCore{
		logger: logger.Named("device"),
		desc:   desc,
		sys:    sys,
	}

	d := &Device{core: core}

	// best-effort backstop for callers that drop the handle without closing;
	// the explicit path is Close
	d.cleanup = runtime.AddCleanup(d, func(c *deviceCore) { c.close() }, core)

	return d, nil
}

// ID returns the endpoint's stable identifier
func (d *Device) ID() EndpointID {
	return d.core.desc.ID
}

// FriendlyName returns the display name snapshotted at resolution time
func (d *Device) FriendlyName() string {
	return d.core.desc.FriendlyName
}

// Descriptor returns the resolution-time snapshot of the endpoint
func (d *Device) Descriptor() EndpointDescriptor {
	return d.core.desc
}

// ToggleMute reads the current mute flag and writes its negation, returning
// the new state. Not atomic against concurrent external mutation; volume
// state is externally owned, so last writer wins.
func (d *Device) ToggleMute() (bool, error) {
	return d.core.toggleMute()
}

// StartVolumeEvents registers a volume-notification sink for this endpoint
// and returns the paired receiver. If a previous registration is active it
// is unregistered first and its receiver closes without further events.
func (d *Device) StartVolumeEvents(capacity int) (<-chan VolumeEvent, error) {
	return d.core.startVolumeEvents(capacity)
}

// StopVolumeEvents unregisters the active volume sink, closing its receiver.
// No-op when nothing is registered.
func (d *Device) StopVolumeEvents() {
	d.core.stopVolumeEvents()
}

// SetDefault asks the subsystem to designate this endpoint as the default
// device for role
func (d *Device) SetDefault(role Role) error {
	return d.core.setDefault(role)
}

// Close unregisters any active volume sink before releasing the endpoint
// reference; idempotent
func (d *Device) Close() error {
	d.core.close()
	d.cleanup.Stop()

	return nil
}

func (c *deviceCore) toggleMute() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, errorf(KindResolutionFailed, "toggle mute", "device handle is closed")
	}

	muted, err := c.sys.mute()
	if err != nil {
		return false, wrapKind(KindPermissionOrState, "get mute state", err)
	}

	if err := c.sys.setMute(!muted); err != nil {
		return false, wrapKind(KindPermissionOrState, "set mute state", err)
	}

	c.logger.Debugw("Toggled endpoint mute", "id", c.desc.ID, "muted", !muted)

	return !muted, nil
}

func (c *deviceCore) startVolumeEvents(capacity int) (<-chan VolumeEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errorf(KindResolutionFailed, "start volume events", "device handle is closed")
	}

	// only one registration per handle: drop the previous one first
	c.dropVolumeRegistrationLocked()

	br := newBridge[VolumeEvent](c.logger, capacity)
	sink := newVolumeSink(c.logger, br)

	reg, err := c.sys.registerVolumeSink(sink)
	if err != nil {
		c.logger.Warnw("Failed to register volume notifications", "id", c.desc.ID, "error", err)
		return nil, wrapKind(KindPermissionOrState, "register volume notifications", err)
	}

	c.volReg = reg
	c.volBridge = br

	c.logger.Debugw("Registered volume notifications", "id", c.desc.ID)

	return br.receiver(), nil
}

func (c *deviceCore) stopVolumeEvents() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropVolumeRegistrationLocked()
}

// dropVolumeRegistrationLocked unregisters before closing the bridge, so the
// subsystem can't fire into a torn-down sink. Callers hold c.mu.
func (c *deviceCore) dropVolumeRegistrationLocked() {
	if c.volReg == nil {
		return
	}

	if err := c.volReg.unregister(); err != nil {
		c.logger.Warnw("Failed to unregister volume notifications", "id", c.desc.ID, "error", err)
	}

	c.volBridge.close()
	c.volReg = nil
	c.volBridge = nil

	c.logger.Debugw("Unregistered volume notifications", "id", c.desc.ID)
}

func (c *deviceCore) setDefault(role Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errorf(KindResolutionFailed, "set default endpoint", "device handle is closed")
	}

	if err := c.sys.setDefault(role); err != nil {
		return wrapKind(KindPermissionOrState, "set default endpoint", err)
	}

	c.logger.Debugw("Set endpoint as default", "id", c.desc.ID, "role", role)

	return nil
}

func (c *deviceCore) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	// unregister before releasing the device's resources - a callback must
	// never fire into a destroyed sink
	c.dropVolumeRegistrationLocked()

	c.closed = true
	c.sys.release()
}
