package audioctl

// The sys* interfaces are the seam between the portable handle layer and the
// platform backend (wca on Windows, a fake in tests). Every method may fail
// with a resolution error once the owning object has been released - callers
// never hold a raw subsystem reference across that boundary.

// sysEnumerator is the marshaled handle to the device-enumeration object
type sysEnumerator interface {
	// enumerate takes a filtered snapshot of the current endpoints
	enumerate(flow DataFlow, mask DeviceState) (sysCollection, error)

	// defaultEndpoint resolves the default device for flow, or a
	// KindNoDefaultDevice error when none is configured
	defaultEndpoint(flow DataFlow) (sysDevice, error)

	// endpoint resolves a device by id, or a KindNotFound error
	endpoint(id EndpointID) (sysDevice, error)

	// registerDeviceSink attaches sink to the live enumerator's
	// notification callback
	registerDeviceSink(sink *deviceSink) (registration, error)

	// release frees the enumerator; subsequent calls are no-ops and
	// subsequent operations fail with KindResolutionFailed
	release() error
}

// sysCollection is one enumerated, frozen snapshot
type sysCollection interface {
	count() (uint32, error)

	// item resolves a fresh device reference for the given index
	item(idx uint32) (sysDevice, error)

	release()
}

// sysDevice is one resolved endpoint
type sysDevice interface {
	descriptor() (EndpointDescriptor, error)

	mute() (bool, error)
	setMute(muted bool) error

	// registerVolumeSink attaches sink to the endpoint's volume-control
	// change notifications
	registerVolumeSink(sink *volumeSink) (registration, error)

	// setDefault asks the subsystem to make this endpoint the default for role
	setDefault(role Role) error

	release()
}

// registration pairs a sink with the subsystem it registered against.
// unregister is idempotent: the second and later calls (and calls racing
// with owner teardown) are silent no-ops.
type registration interface {
	unregister() error
}
