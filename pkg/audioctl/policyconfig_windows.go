package audioctl

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
)

// IPolicyConfig is the undocumented interface the shell itself uses to flip
// the default endpoint. Only SetDefaultEndpoint matters here; the earlier
// vtable slots exist so it lands at the right index.

var (
	clsidPolicyConfig = ole.NewGUID("{870AF99C-171D-4F9E-AF0D-E63DF40C2BC9}")
	iidIPolicyConfig  = ole.NewGUID("{F8679F50-850A-41CF-9C72-430F290290C8}")
)

type iPolicyConfig struct {
	ole.IUnknown
}

type iPolicyConfigVtbl struct {
	ole.IUnknownVtbl
	GetMixFormat          uintptr
	GetDeviceFormat       uintptr
	ResetDeviceFormat     uintptr
	SetDeviceFormat       uintptr
	GetProcessingPeriod   uintptr
	SetProcessingPeriod   uintptr
	GetShareMode          uintptr
	SetShareMode          uintptr
	GetPropertyValue      uintptr
	SetPropertyValue      uintptr
	SetDefaultEndpoint    uintptr
	SetEndpointVisibility uintptr
}

func (v *iPolicyConfig) vtable() *iPolicyConfigVtbl {
	return (*iPolicyConfigVtbl)(unsafe.Pointer(v.RawVTable))
}

func setDefaultEndpoint(deviceID string, role Role) error {
	wstr, err := syscall.UTF16PtrFromString(deviceID)
	if err != nil {
		return fmt.Errorf("encode device id: %w", err)
	}

	unknown, err := ole.CreateInstance(clsidPolicyConfig, iidIPolicyConfig)
	if err != nil {
		return fmt.Errorf("create PolicyConfig instance: %w", err)
	}

	pc := (*iPolicyConfig)(unsafe.Pointer(unknown))
	defer pc.Release()

	hr, _, _ := syscall.SyscallN(
		pc.vtable().SetDefaultEndpoint,
		uintptr(unsafe.Pointer(pc)),
		uintptr(unsafe.Pointer(wstr)),
		uintptr(role),
	)
	if hr != hrSOK {
		return fmt.Errorf("SetDefaultEndpoint: %w", ole.NewError(hr))
	}

	return nil
}
