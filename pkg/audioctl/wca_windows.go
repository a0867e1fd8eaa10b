package audioctl

import (
	"errors"
	"fmt"
	"sync"

	"github.com/diegosz/go-wca/pkg/wca"
	"github.com/go-ole/go-ole"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// HRESULT of ERROR_NOT_FOUND, returned by GetDevice/GetDefaultAudioEndpoint
	// when nothing matches
	hrNotFound = 0x80070490
)

// comGuard reference-counts process-wide COM initialization. Callbacks
// arrive on subsystem worker threads and goroutines migrate OS threads, so
// the multithreaded apartment is the only workable model here.
var comGuard = &runtimeGuard{
	initialize: coInitialize,
	teardown:   ole.CoUninitialize,
}

func coInitialize() error {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		// S_FALSE means the call was redundant - the runtime is already up
		const sFalse = 1

		oleErr := &ole.OleError{}
		if errors.As(err, &oleErr) && oleErr.Code() == sFalse {
			return nil
		}

		return fmt.Errorf("call CoInitializeEx: %w", err)
	}

	return nil
}

func hresultOf(err error) uintptr {
	oleErr := &ole.OleError{}
	if errors.As(err, &oleErr) {
		return oleErr.Code()
	}

	return 0
}

// NewResolver creates the MMDevice enumerator and wraps it in a Resolver
func NewResolver(logger *zap.SugaredLogger) (*Resolver, error) {
	if err := comGuard.acquire(); err != nil {
		logger.Warnw("Failed to initialize COM runtime", "error", err)
		return nil, newError(KindResolutionFailed, "initialize runtime", err)
	}

	var mmde *wca.IMMDeviceEnumerator

	if err := wca.CoCreateInstance(
		wca.CLSID_MMDeviceEnumerator,
		0,
		wca.CLSCTX_ALL,
		wca.IID_IMMDeviceEnumerator,
		&mmde,
	); err != nil {
		comGuard.release()

		logger.Warnw("Failed to call CoCreateInstance", "error", err)
		return nil, newError(KindResolutionFailed, "create device enumerator", err)
	}

	sys := &wcaEnumerator{
		logger: logger.Named("wca"),
		mmde:   mmde,

		// identifies volume changes we originate so other audio consumers
		// can tell them apart from their own
		eventCtx: ole.NewGUID("{" + uuid.NewString() + "}"),
	}

	return newResolver(logger, sys), nil
}

// wcaEnumerator adapts IMMDeviceEnumerator to the backend seam. The mutex
// plus released flag realize the resolve-then-use contract: once released,
// every resolution fails typed instead of touching a dead pointer.
type wcaEnumerator struct {
	logger   *zap.SugaredLogger
	eventCtx *ole.GUID

	mu       sync.Mutex
	mmde     *wca.IMMDeviceEnumerator
	released bool
}

func (e *wcaEnumerator) with(op string, fn func(mmde *wca.IMMDeviceEnumerator) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return errorf(KindResolutionFailed, op, "device enumerator already released")
	}

	return fn(e.mmde)
}

func (e *wcaEnumerator) enumerate(flow DataFlow, mask DeviceState) (sysCollection, error) {
	var mdc *wca.IMMDeviceCollection

	err := e.with("enumerate endpoints", func(mmde *wca.IMMDeviceEnumerator) error {
		if err := mmde.EnumAudioEndpoints(uint32(flow), uint32(mask), &mdc); err != nil {
			return newError(KindEnumerationFailed, "enumerate endpoints", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return newWCACollection(e.logger, mdc, e.eventCtx)
}

func (e *wcaEnumerator) defaultEndpoint(flow DataFlow) (sysDevice, error) {
	var mmd *wca.IMMDevice

	err := e.with("resolve default endpoint", func(mmde *wca.IMMDeviceEnumerator) error {
		if err := mmde.GetDefaultAudioEndpoint(uint32(flow), uint32(RoleConsole), &mmd); err != nil {
			if hresultOf(err) == hrNotFound {
				return newError(KindNoDefaultDevice, "resolve default endpoint", err)
			}

			return newError(KindResolutionFailed, "resolve default endpoint", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return newWCADevice(e.logger, mmd, e.eventCtx)
}

func (e *wcaEnumerator) endpoint(id EndpointID) (sysDevice, error) {
	var mmd *wca.IMMDevice

	err := e.with("resolve endpoint", func(mmde *wca.IMMDeviceEnumerator) error {
		if err := mmde.GetDevice(string(id), &mmd); err != nil {
			if hresultOf(err) == hrNotFound {
				return errorf(KindNotFound, "resolve endpoint", "no endpoint with id %q", string(id))
			}

			return newError(KindResolutionFailed, "resolve endpoint", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return newWCADevice(e.logger, mmd, e.eventCtx)
}

func (e *wcaEnumerator) registerDeviceSink(sink *deviceSink) (registration, error) {
	callback := wca.IMMNotificationClientCallback{
		OnDeviceAdded: func(pwstrDeviceId string) error {
			sink.onDeviceAdded(pwstrDeviceId)
			return nil
		},
		OnDeviceRemoved: func(pwstrDeviceId string) error {
			sink.onDeviceRemoved(pwstrDeviceId)
			return nil
		},
		OnDeviceStateChanged: func(pwstrDeviceId string, dwNewState uint32) error {
			sink.onDeviceStateChanged(pwstrDeviceId, dwNewState)
			return nil
		},
		OnDefaultDeviceChanged: func(dataFlow wca.EDataFlow, role wca.ERole, pwstrDeviceId string) error {
			sink.onDefaultDeviceChanged(uint32(dataFlow), uint32(role), pwstrDeviceId)
			return nil
		},
	}

	client := wca.NewIMMNotificationClient(callback)

	err := e.with("register device notifications", func(mmde *wca.IMMDeviceEnumerator) error {
		return mmde.RegisterEndpointNotificationCallback(client)
	})
	if err != nil {
		return nil, err
	}

	// the registration keeps client referenced so it can't be collected
	// while the subsystem still calls into it
	return &wcaDeviceRegistration{enum: e, client: client}, nil
}

func (e *wcaEnumerator) release() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return nil
	}

	e.released = true
	e.mmde.Release()
	e.mmde = nil

	comGuard.release()

	e.logger.Debug("Released device enumerator")

	return nil
}

type wcaDeviceRegistration struct {
	mu     sync.Mutex
	enum   *wcaEnumerator
	client *wca.IMMNotificationClient
	done   bool
}

func (r *wcaDeviceRegistration) unregister() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return nil
	}

	r.done = true

	err := r.enum.with("unregister device notifications", func(mmde *wca.IMMDeviceEnumerator) error {
		return mmde.UnregisterEndpointNotificationCallback(r.client)
	})
	if err != nil && KindOf(err) == KindResolutionFailed {
		// enumerator torn down first; nothing left to unregister from
		return nil
	}

	return err
}

// wcaCollection adapts one IMMDeviceCollection snapshot. Like wcaDevice it
// holds a guard reference of its own, so the runtime can't be torn down
// under a collection that outlives its resolver.
type wcaCollection struct {
	logger   *zap.SugaredLogger
	eventCtx *ole.GUID

	mu       sync.Mutex
	mdc      *wca.IMMDeviceCollection
	released bool
}

func newWCACollection(logger *zap.SugaredLogger, mdc *wca.IMMDeviceCollection, eventCtx *ole.GUID) (*wcaCollection, error) {
	if err := comGuard.acquire(); err != nil {
		mdc.Release()
		return nil, newError(KindEnumerationFailed, "initialize runtime", err)
	}

	return &wcaCollection{
		logger:   logger,
		eventCtx: eventCtx,
		mdc:      mdc,
	}, nil
}

func (c *wcaCollection) count() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return 0, errorf(KindResolutionFailed, "count endpoints", "collection already released")
	}

	var n uint32
	if err := c.mdc.GetCount(&n); err != nil {
		return 0, newError(KindEnumerationFailed, "count endpoints", err)
	}

	return n, nil
}

func (c *wcaCollection) item(idx uint32) (sysDevice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil, errorf(KindResolutionFailed, "get endpoint", "collection already released")
	}

	var mmd *wca.IMMDevice
	if err := c.mdc.Item(idx, &mmd); err != nil {
		return nil, newError(KindEnumerationFailed, "get endpoint", err)
	}

	return newWCADevice(c.logger, mmd, c.eventCtx)
}

func (c *wcaCollection) release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}

	c.released = true
	c.mdc.Release()
	c.mdc = nil

	comGuard.release()
}

// wcaDevice adapts one IMMDevice. It holds a guard reference of its own so
// the runtime can't be torn down under a device that outlives its resolver.
type wcaDevice struct {
	logger   *zap.SugaredLogger
	eventCtx *ole.GUID

	mu       sync.Mutex
	mmd      *wca.IMMDevice
	released bool
}

func newWCADevice(logger *zap.SugaredLogger, mmd *wca.IMMDevice, eventCtx *ole.GUID) (*wcaDevice, error) {
	if err := comGuard.acquire(); err != nil {
		mmd.Release()
		return nil, newError(KindResolutionFailed, "initialize runtime", err)
	}

	return &wcaDevice{
		logger:   logger,
		eventCtx: eventCtx,
		mmd:      mmd,
	}, nil
}

func (d *wcaDevice) withDevice(op string, fn func(mmd *wca.IMMDevice) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return errorf(KindResolutionFailed, op, "device already released")
	}

	return fn(d.mmd)
}

func (d *wcaDevice) descriptor() (EndpointDescriptor, error) {
	var desc EndpointDescriptor

	err := d.withDevice("resolve endpoint descriptor", func(mmd *wca.IMMDevice) error {
		var id string
		if err := mmd.GetId(&id); err != nil {
			return fmt.Errorf("get endpoint id: %w", err)
		}

		var propertyStore *wca.IPropertyStore
		if err := mmd.OpenPropertyStore(wca.STGM_READ, &propertyStore); err != nil {
			return fmt.Errorf("open endpoint property store: %w", err)
		}
		defer propertyStore.Release()

		value := &wca.PROPVARIANT{}
		if err := propertyStore.GetValue(&wca.PKEY_Device_FriendlyName, value); err != nil {
			return fmt.Errorf("get endpoint friendly name: %w", err)
		}

		desc = EndpointDescriptor{
			ID:           EndpointID(id),
			FriendlyName: value.String(),
		}

		return nil
	})

	return desc, err
}

// activateVolume activates the endpoint's volume-control surface; the caller
// owns the returned reference
func (d *wcaDevice) activateVolume(mmd *wca.IMMDevice) (*wca.IAudioEndpointVolume, error) {
	var aev *wca.IAudioEndpointVolume

	if err := mmd.Activate(wca.IID_IAudioEndpointVolume, wca.CLSCTX_ALL, nil, &aev); err != nil {
		return nil, fmt.Errorf("activate endpoint volume: %w", err)
	}

	return aev, nil
}

func (d *wcaDevice) mute() (bool, error) {
	var muted bool

	err := d.withDevice("get mute state", func(mmd *wca.IMMDevice) error {
		aev, err := d.activateVolume(mmd)
		if err != nil {
			return err
		}
		defer aev.Release()

		return aev.GetMute(&muted)
	})

	return muted, err
}

func (d *wcaDevice) setMute(muted bool) error {
	return d.withDevice("set mute state", func(mmd *wca.IMMDevice) error {
		aev, err := d.activateVolume(mmd)
		if err != nil {
			return err
		}
		defer aev.Release()

		return aev.SetMute(muted, d.eventCtx)
	})
}

func (d *wcaDevice) registerVolumeSink(sink *volumeSink) (registration, error) {
	var reg *wcaVolumeRegistration

	err := d.withDevice("register volume notifications", func(mmd *wca.IMMDevice) error {
		aev, err := d.activateVolume(mmd)
		if err != nil {
			return err
		}

		cb := newEndpointVolumeCallback(sink)

		if err := aev.RegisterControlChangeNotify(cb.com()); err != nil {
			aev.Release()
			return fmt.Errorf("register control change notify: %w", err)
		}

		// reg keeps both the activated volume surface and the callback
		// object alive for as long as the registration stands
		reg = &wcaVolumeRegistration{aev: aev, cb: cb}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return reg, nil
}

func (d *wcaDevice) setDefault(role Role) error {
	return d.withDevice("set default endpoint", func(mmd *wca.IMMDevice) error {
		var id string
		if err := mmd.GetId(&id); err != nil {
			return fmt.Errorf("get endpoint id: %w", err)
		}

		return setDefaultEndpoint(id, role)
	})
}

func (d *wcaDevice) release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return
	}

	d.released = true
	d.mmd.Release()
	d.mmd = nil

	comGuard.release()
}

type wcaVolumeRegistration struct {
	mu   sync.Mutex
	aev  *wca.IAudioEndpointVolume
	cb   *endpointVolumeCallback
	done bool
}

func (r *wcaVolumeRegistration) unregister() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return nil
	}

	r.done = true

	err := r.aev.UnregisterControlChangeNotify(r.cb.com())
	r.aev.Release()
	r.aev = nil

	if err != nil {
		return fmt.Errorf("unregister control change notify: %w", err)
	}

	return nil
}
