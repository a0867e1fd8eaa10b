package audioctl

import "fmt"

// DataFlow classifies an endpoint's direction. Values mirror the EDataFlow
// enumeration so they can cross the COM boundary unchanged.
type DataFlow uint32

const (
	FlowRender  DataFlow = 0
	FlowCapture DataFlow = 1
	FlowAll     DataFlow = 2
)

func (f DataFlow) String() string {
	switch f {
	case FlowRender:
		return "render"
	case FlowCapture:
		return "capture"
	case FlowAll:
		return "all"
	default:
		return fmt.Sprintf("dataflow(%d)", uint32(f))
	}
}

func dataFlowFromRaw(raw uint32) (DataFlow, error) {
	switch f := DataFlow(raw); f {
	case FlowRender, FlowCapture, FlowAll:
		return f, nil
	default:
		return 0, fmt.Errorf("unknown data flow value %d", raw)
	}
}

// ParseDataFlow converts a config/CLI string to a DataFlow
func ParseDataFlow(s string) (DataFlow, error) {
	switch s {
	case "render", "output":
		return FlowRender, nil
	case "capture", "input":
		return FlowCapture, nil
	case "all":
		return FlowAll, nil
	default:
		return 0, fmt.Errorf("unknown data flow %q", s)
	}
}

// Role is the intended usage class of a default device. Values mirror ERole.
type Role uint32

const (
	RoleConsole        Role = 0
	RoleMultimedia     Role = 1
	RoleCommunications Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleConsole:
		return "console"
	case RoleMultimedia:
		return "multimedia"
	case RoleCommunications:
		return "communications"
	default:
		return fmt.Sprintf("role(%d)", uint32(r))
	}
}

func roleFromRaw(raw uint32) (Role, error) {
	switch r := Role(raw); r {
	case RoleConsole, RoleMultimedia, RoleCommunications:
		return r, nil
	default:
		return 0, fmt.Errorf("unknown role value %d", raw)
	}
}

// ParseRole converts a config/CLI string to a Role
func ParseRole(s string) (Role, error) {
	switch s {
	case "console":
		return RoleConsole, nil
	case "multimedia":
		return RoleMultimedia, nil
	case "communications", "comms":
		return RoleCommunications, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// DeviceState is the DEVICE_STATE_XXX bitmask. Enumeration filters may OR
// several states together; a state-changed notification carries exactly one.
type DeviceState uint32

const (
	StateActive     DeviceState = 0x1
	StateDisabled   DeviceState = 0x2
	StateNotPresent DeviceState = 0x4
	StateUnplugged  DeviceState = 0x8

	StateAll = StateActive | StateDisabled | StateNotPresent | StateUnplugged
)

func (s DeviceState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDisabled:
		return "disabled"
	case StateNotPresent:
		return "not present"
	case StateUnplugged:
		return "unplugged"
	case StateAll:
		return "all"
	default:
		return fmt.Sprintf("state(%#x)", uint32(s))
	}
}

// deviceStateFromRaw validates a single state value from a notification
func deviceStateFromRaw(raw uint32) (DeviceState, error) {
	switch s := DeviceState(raw); s {
	case StateActive, StateDisabled, StateNotPresent, StateUnplugged:
		return s, nil
	default:
		return 0, fmt.Errorf("unknown device state value %#x", raw)
	}
}

// validStateMask reports whether mask is a non-empty subset of StateAll
func validStateMask(mask DeviceState) bool {
	return mask != 0 && mask&^StateAll == 0
}
