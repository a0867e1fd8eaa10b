package audioctl

import "testing"

func TestDataFlowFromRaw(t *testing.T) {
	for raw, want := range map[uint32]DataFlow{0: FlowRender, 1: FlowCapture, 2: FlowAll} {
		got, err := dataFlowFromRaw(raw)
		if err != nil || got != want {
			t.Fatalf("dataFlowFromRaw(%d) = (%v, %v), want %v", raw, got, err, want)
		}
	}

	if _, err := dataFlowFromRaw(3); err == nil {
		t.Fatal("dataFlowFromRaw(3) should fail")
	}
}

func TestRoleFromRaw(t *testing.T) {
	for raw, want := range map[uint32]Role{0: RoleConsole, 1: RoleMultimedia, 2: RoleCommunications} {
		got, err := roleFromRaw(raw)
		if err != nil || got != want {
			t.Fatalf("roleFromRaw(%d) = (%v, %v), want %v", raw, got, err, want)
		}
	}

	if _, err := roleFromRaw(7); err == nil {
		t.Fatal("roleFromRaw(7) should fail")
	}
}

func TestDeviceStateFromRaw(t *testing.T) {
	for raw, want := range map[uint32]DeviceState{
		0x1: StateActive,
		0x2: StateDisabled,
		0x4: StateNotPresent,
		0x8: StateUnplugged,
	} {
		got, err := deviceStateFromRaw(raw)
		if err != nil || got != want {
			t.Fatalf("deviceStateFromRaw(%#x) = (%v, %v), want %v", raw, got, err, want)
		}
	}

	// a notification carries exactly one state, never a combination
	for _, raw := range []uint32{0, 0x3, 0x10} {
		if _, err := deviceStateFromRaw(raw); err == nil {
			t.Fatalf("deviceStateFromRaw(%#x) should fail", raw)
		}
	}
}

func TestValidStateMask(t *testing.T) {
	for _, mask := range []DeviceState{StateActive, StateActive | StateUnplugged, StateAll} {
		if !validStateMask(mask) {
			t.Fatalf("validStateMask(%#x) = false, want true", uint32(mask))
		}
	}

	for _, mask := range []DeviceState{0, 0x10, StateAll | 0x10} {
		if validStateMask(mask) {
			t.Fatalf("validStateMask(%#x) = true, want false", uint32(mask))
		}
	}
}

func TestParseDataFlow(t *testing.T) {
	for s, want := range map[string]DataFlow{
		"render": FlowRender, "output": FlowRender,
		"capture": FlowCapture, "input": FlowCapture,
		"all": FlowAll,
	} {
		got, err := ParseDataFlow(s)
		if err != nil || got != want {
			t.Fatalf("ParseDataFlow(%q) = (%v, %v), want %v", s, got, err, want)
		}
	}

	if _, err := ParseDataFlow("sideways"); err == nil {
		t.Fatal("ParseDataFlow should fail for unknown strings")
	}
}

func TestParseRole(t *testing.T) {
	for s, want := range map[string]Role{
		"console": RoleConsole, "multimedia": RoleMultimedia,
		"communications": RoleCommunications, "comms": RoleCommunications,
	} {
		got, err := ParseRole(s)
		if err != nil || got != want {
			t.Fatalf("ParseRole(%q) = (%v, %v), want %v", s, got, err, want)
		}
	}

	if _, err := ParseRole("gaming"); err == nil {
		t.Fatal("ParseRole should fail for unknown strings")
	}
}
