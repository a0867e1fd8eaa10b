package audioctl

import (
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/diegosz/go-wca/pkg/wca"
	"github.com/go-ole/go-ole"
)

// go-wca ships constructors for IMMNotificationClient but not for
// IAudioEndpointVolumeCallback, so this file rolls the COM object by hand:
// a vtable of syscall callbacks in front of a Go struct. The registration
// holding the object keeps it reachable for as long as the subsystem may
// call into it.

var iidIAudioEndpointVolumeCallback = ole.NewGUID("{657804FA-D6AD-4496-8A60-352752AF4F89}")

const (
	hrSOK          = 0x00000000
	hrENoInterface = 0x80004002
	hrEPointer     = 0x80004003
)

// audioVolumeNotificationData mirrors AUDIO_VOLUME_NOTIFICATION_DATA.
// afChannelVolumes is declared with a single element but actually holds
// nChannels entries.
type audioVolumeNotificationData struct {
	guidEventContext ole.GUID
	bMuted           int32
	fMasterVolume    float32
	nChannels        uint32
	afChannelVolumes [1]float32
}

type endpointVolumeCallbackVtbl struct {
	queryInterface uintptr
	addRef         uintptr
	release        uintptr
	onNotify       uintptr
}

type endpointVolumeCallback struct {
	vtbl *endpointVolumeCallbackVtbl
	refs int32
	sink *volumeSink
}

// one shared vtable; the per-object state hangs off the this pointer
var endpointVolumeVtbl = &endpointVolumeCallbackVtbl{
	queryInterface: syscall.NewCallback(evcQueryInterface),
	addRef:         syscall.NewCallback(evcAddRef),
	release:        syscall.NewCallback(evcRelease),
	onNotify:       syscall.NewCallback(evcOnNotify),
}

func newEndpointVolumeCallback(sink *volumeSink) *endpointVolumeCallback {
	return &endpointVolumeCallback{
		vtbl: endpointVolumeVtbl,
		refs: 1,
		sink: sink,
	}
}

// com exposes the object under the interface type the wca registration
// calls expect
func (cb *endpointVolumeCallback) com() *wca.IAudioEndpointVolumeCallback {
	return (*wca.IAudioEndpointVolumeCallback)(unsafe.Pointer(cb))
}

func evcQueryInterface(this uintptr, riid uintptr, ppv uintptr) uintptr {
	if riid == 0 || ppv == 0 {
		return hrEPointer
	}

	iid := (*ole.GUID)(unsafe.Pointer(riid))
	if ole.IsEqualGUID(iid, ole.IID_IUnknown) || ole.IsEqualGUID(iid, iidIAudioEndpointVolumeCallback) {
		*(*uintptr)(unsafe.Pointer(ppv)) = this
		evcAddRef(this)

		return hrSOK
	}

	*(*uintptr)(unsafe.Pointer(ppv)) = 0

	return hrENoInterface
}

func evcAddRef(this uintptr) uintptr {
	cb := (*endpointVolumeCallback)(unsafe.Pointer(this))

	return uintptr(atomic.AddInt32(&cb.refs, 1))
}

// evcRelease only tracks the count; the Go GC owns the object's memory
func evcRelease(this uintptr) uintptr {
	cb := (*endpointVolumeCallback)(unsafe.Pointer(this))

	refs := atomic.AddInt32(&cb.refs, -1)
	if refs < 0 {
		refs = 0
	}

	return uintptr(refs)
}

// evcOnNotify runs on a subsystem worker thread. It always returns S_OK:
// a failing notification callback may get silently unregistered, so all
// fallibility is carried inside the forwarded event instead.
func evcOnNotify(this uintptr, pNotify uintptr) uintptr {
	cb := (*endpointVolumeCallback)(unsafe.Pointer(this))

	if pNotify == 0 {
		// a zero channel count is reported as a conversion failure
		cb.sink.onNotify(false, 0, 0, nil)
		return hrSOK
	}

	data := (*audioVolumeNotificationData)(unsafe.Pointer(pNotify))

	read := func(n uint32) []float32 {
		out := make([]float32, n)
		copy(out, unsafe.Slice((*float32)(unsafe.Pointer(&data.afChannelVolumes[0])), n))

		return out
	}

	cb.sink.onNotify(data.bMuted != 0, data.fMasterVolume, data.nChannels, read)

	return hrSOK
}
