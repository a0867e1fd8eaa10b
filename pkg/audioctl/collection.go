package audioctl

import (
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Collection wraps one enumerated, filtered snapshot of endpoints. Membership
// and count are frozen at enumeration time; to observe later device changes,
// drop the handle and enumerate again.
type Collection struct {
	core    *collectionCore
	cleanup runtime.Cleanup
}

// collectionCore holds everything the cleanup hook needs without keeping the
// Collection itself reachable
type collectionCore struct {
	logger *zap.SugaredLogger

	mu     sync.Mutex
	sys    sysCollection
	closed bool

	flow DataFlow
	mask DeviceState
	size uint32
}

func newCollection(logger *zap.SugaredLogger, sys sysCollection, flow DataFlow, mask DeviceState) (*Collection, error) {
	size, err := sys.count()
	if err != nil {
		sys.release()
		return nil, wrapKind(KindEnumerationFailed, "count endpoints", err)
	}

	core := &collectionCore{
		logger: logger.Named("collection"),
		sys:    sys,
		flow:   flow,
		mask:   mask,
		size:   size,
	}

	c := &Collection{core: core}

	// best-effort backstop for callers that drop the handle without closing;
	// the explicit path is Close
	c.cleanup = runtime.AddCleanup(c, func(cc *collectionCore) { cc.close() }, core)

	return c, nil
}

// Count returns the number of endpoints matching the filter at enumeration
// time; stable for the lifetime of the handle
func (c *Collection) Count() uint32 {
	return c.core.size
}

// Get resolves a fresh Device for the endpoint at idx. Two calls with the
// same index may observe different live instances, but the same EndpointID.
func (c *Collection) Get(idx uint32) (*Device, error) {
	return c.core.get(idx)
}

// Close releases the underlying snapshot; idempotent
func (c *Collection) Close() {
	c.core.close()
	c.cleanup.Stop()
}

func (cc *collectionCore) get(idx uint32) (*Device, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.closed {
		return nil, errorf(KindResolutionFailed, "get endpoint", "collection handle is closed")
	}

	if idx >= cc.size {
		return nil, errorf(KindIndexOutOfRange, "get endpoint", "index %d out of range for collection of %d", idx, cc.size)
	}

	sysDev, err := cc.sys.item(idx)
	if err != nil {
		cc.logger.Warnw("Failed to get device from collection", "index", idx, "error", err)
		return nil, wrapKind(KindEnumerationFailed, "get endpoint", err)
	}

	return newDevice(cc.logger, sysDev)
}

func (cc *collectionCore) close() {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.closed {
		return
	}

	cc.closed = true
	cc.sys.release()
}
