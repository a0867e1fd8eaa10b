package audioctl

import (
	"sync"

	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// fakeEndpoint is the in-memory model behind the test backend
type fakeEndpoint struct {
	id    EndpointID
	name  string
	flow  DataFlow
	state DeviceState
	muted bool
}

// fakeSystem implements sysEnumerator over a fixed endpoint set, with
// helpers for firing notifications the way the real subsystem would - from
// arbitrary goroutines, one callback at a time
type fakeSystem struct {
	mu sync.Mutex

	endpoints []*fakeEndpoint
	defaults  map[DataFlow]EndpointID

	deviceSinks []*deviceSink
	volumeSinks map[EndpointID][]*volumeSink

	released     bool
	enumerateErr error
}

func newFakeSystem(endpoints ...*fakeEndpoint) *fakeSystem {
	return &fakeSystem{
		endpoints:   endpoints,
		defaults:    map[DataFlow]EndpointID{},
		volumeSinks: map[EndpointID][]*volumeSink{},
	}
}

func (fs *fakeSystem) find(id EndpointID) *fakeEndpoint {
	for _, ep := range fs.endpoints {
		if ep.id == id {
			return ep
		}
	}

	return nil
}

func (fs *fakeSystem) enumerate(flow DataFlow, mask DeviceState) (sysCollection, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.enumerateErr != nil {
		return nil, fs.enumerateErr
	}

	var ids []EndpointID

	for _, ep := range fs.endpoints {
		if flow != FlowAll && ep.flow != flow {
			continue
		}

		if mask&ep.state == 0 {
			continue
		}

		ids = append(ids, ep.id)
	}

	return &fakeCollection{sys: fs, ids: ids}, nil
}

func (fs *fakeSystem) defaultEndpoint(flow DataFlow) (sysDevice, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id, ok := fs.defaults[flow]
	if !ok {
		return nil, errorf(KindNoDefaultDevice, "resolve default endpoint", "no default for flow %s", flow)
	}

	return &fakeDevice{sys: fs, id: id}, nil
}

func (fs *fakeSystem) endpoint(id EndpointID) (sysDevice, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.find(id) == nil {
		return nil, errorf(KindNotFound, "resolve endpoint", "no endpoint with id %q", string(id))
	}

	return &fakeDevice{sys: fs, id: id}, nil
}

func (fs *fakeSystem) registerDeviceSink(sink *deviceSink) (registration, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.deviceSinks = append(fs.deviceSinks, sink)

	return &fakeRegistration{remove: func() {
		fs.mu.Lock()
		defer fs.mu.Unlock()

		for i, s := range fs.deviceSinks {
			if s == sink {
				fs.deviceSinks = append(fs.deviceSinks[:i], fs.deviceSinks[i+1:]...)
				break
			}
		}
	}}, nil
}

func (fs *fakeSystem) release() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.released = true

	return nil
}

func (fs *fakeSystem) releasedNow() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.released
}

func (fs *fakeSystem) deviceRegCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return len(fs.deviceSinks)
}

func (fs *fakeSystem) volumeRegCount(id EndpointID) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return len(fs.volumeSinks[id])
}

func (fs *fakeSystem) fireDeviceAdded(id string) {
	for _, sink := range fs.snapshotDeviceSinks() {
		sink.onDeviceAdded(id)
	}
}

func (fs *fakeSystem) fireDeviceRemoved(id string) {
	for _, sink := range fs.snapshotDeviceSinks() {
		sink.onDeviceRemoved(id)
	}
}

func (fs *fakeSystem) fireDeviceStateChanged(id string, rawState uint32) {
	for _, sink := range fs.snapshotDeviceSinks() {
		sink.onDeviceStateChanged(id, rawState)
	}
}

func (fs *fakeSystem) fireDefaultChanged(rawFlow, rawRole uint32, id string) {
	for _, sink := range fs.snapshotDeviceSinks() {
		sink.onDefaultDeviceChanged(rawFlow, rawRole, id)
	}
}

func (fs *fakeSystem) fireVolume(id EndpointID, muted bool, master float32, channelCount uint32, channels []float32) {
	fs.mu.Lock()
	sinks := append([]*volumeSink(nil), fs.volumeSinks[id]...)
	fs.mu.Unlock()

	for _, sink := range sinks {
		sink.onNotify(muted, master, channelCount, func(n uint32) []float32 {
			out := make([]float32, n)
			copy(out, channels)

			return out
		})
	}
}

func (fs *fakeSystem) snapshotDeviceSinks() []*deviceSink {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return append([]*deviceSink(nil), fs.deviceSinks...)
}

type fakeCollection struct {
	sys *fakeSystem
	ids []EndpointID

	mu       sync.Mutex
	released bool
	releases int
}

func (fc *fakeCollection) count() (uint32, error) {
	return uint32(len(fc.ids)), nil
}

func (fc *fakeCollection) item(idx uint32) (sysDevice, error) {
	if idx >= uint32(len(fc.ids)) {
		return nil, errorf(KindEnumerationFailed, "get endpoint", "index %d beyond snapshot", idx)
	}

	return &fakeDevice{sys: fc.sys, id: fc.ids[idx]}, nil
}

func (fc *fakeCollection) release() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.released = true
	fc.releases++
}

func (fc *fakeCollection) releasedNow() bool {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return fc.released
}

func (fc *fakeCollection) releaseCount() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return fc.releases
}

type fakeDevice struct {
	sys      *fakeSystem
	id       EndpointID
	released bool
}

func (fd *fakeDevice) descriptor() (EndpointDescriptor, error) {
	fd.sys.mu.Lock()
	defer fd.sys.mu.Unlock()

	ep := fd.sys.find(fd.id)
	if ep == nil {
		return EndpointDescriptor{}, errorf(KindNotFound, "resolve endpoint descriptor", "endpoint %q gone", string(fd.id))
	}

	return EndpointDescriptor{ID: ep.id, FriendlyName: ep.name}, nil
}

func (fd *fakeDevice) mute() (bool, error) {
	fd.sys.mu.Lock()
	defer fd.sys.mu.Unlock()

	ep := fd.sys.find(fd.id)
	if ep == nil {
		return false, errorf(KindNotFound, "get mute state", "endpoint %q gone", string(fd.id))
	}

	return ep.muted, nil
}

func (fd *fakeDevice) setMute(muted bool) error {
	fd.sys.mu.Lock()
	defer fd.sys.mu.Unlock()

	ep := fd.sys.find(fd.id)
	if ep == nil {
		return errorf(KindNotFound, "set mute state", "endpoint %q gone", string(fd.id))
	}

	ep.muted = muted

	return nil
}

func (fd *fakeDevice) registerVolumeSink(sink *volumeSink) (registration, error) {
	fd.sys.mu.Lock()
	defer fd.sys.mu.Unlock()

	fd.sys.volumeSinks[fd.id] = append(fd.sys.volumeSinks[fd.id], sink)

	return &fakeRegistration{remove: func() {
		fd.sys.mu.Lock()
		defer fd.sys.mu.Unlock()

		sinks := fd.sys.volumeSinks[fd.id]
		for i, s := range sinks {
			if s == sink {
				fd.sys.volumeSinks[fd.id] = append(sinks[:i], sinks[i+1:]...)
				break
			}
		}
	}}, nil
}

func (fd *fakeDevice) setDefault(role Role) error {
	fd.sys.mu.Lock()
	defer fd.sys.mu.Unlock()

	ep := fd.sys.find(fd.id)
	if ep == nil {
		return errorf(KindNotFound, "set default endpoint", "endpoint %q gone", string(fd.id))
	}

	fd.sys.defaults[ep.flow] = ep.id

	return nil
}

func (fd *fakeDevice) release() {
	fd.released = true
}

// fakeRegistration mirrors the real ones: unregister is a no-op after the
// first call
type fakeRegistration struct {
	mu     sync.Mutex
	remove func()
	done   bool
}

func (fr *fakeRegistration) unregister() error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if fr.done {
		return nil
	}

	fr.done = true
	fr.remove()

	return nil
}
