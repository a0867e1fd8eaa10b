package audioctl

import (
	"go.uber.org/zap"
)

// deviceSink receives raw collection-level notifications and forwards typed
// events into its bridge. The on* methods are invoked on subsystem worker
// threads; they must never block and never report failure upwards - a failed
// conversion becomes an Err-carrying event instead, so the consumer sees
// either a success or a typed failure for every notification fired.
type deviceSink struct {
	logger *zap.SugaredLogger
	br     *bridge[DeviceEvent]
}

func newDeviceSink(logger *zap.SugaredLogger, br *bridge[DeviceEvent]) *deviceSink {
	return &deviceSink{
		logger: logger.Named("device_sink"),
		br:     br,
	}
}

func (s *deviceSink) onDeviceStateChanged(deviceID string, rawState uint32) {
	state, err := deviceStateFromRaw(rawState)
	if err != nil {
		s.br.submit(DeviceEvent{Err: newError(KindConversionFailed, "convert state changed notification", err)})
		return
	}

	s.br.submit(DeviceEvent{
		Kind:  DeviceStateChanged,
		ID:    EndpointID(deviceID),
		State: state,
	})
}

func (s *deviceSink) onDeviceAdded(deviceID string) {
	s.br.submit(DeviceEvent{
		Kind: DeviceAdded,
		ID:   EndpointID(deviceID),
	})
}

func (s *deviceSink) onDeviceRemoved(deviceID string) {
	s.br.submit(DeviceEvent{
		Kind: DeviceRemoved,
		ID:   EndpointID(deviceID),
	})
}

func (s *deviceSink) onDefaultDeviceChanged(rawFlow uint32, rawRole uint32, deviceID string) {
	flow, err := dataFlowFromRaw(rawFlow)
	if err != nil {
		s.br.submit(DeviceEvent{Err: newError(KindConversionFailed, "convert default device notification", err)})
		return
	}

	role, err := roleFromRaw(rawRole)
	if err != nil {
		s.br.submit(DeviceEvent{Err: newError(KindConversionFailed, "convert default device notification", err)})
		return
	}

	s.br.submit(DeviceEvent{
		Kind: DefaultDeviceChanged,
		ID:   EndpointID(deviceID),
		Flow: flow,
		Role: role,
	})
}

// maxVolumeChannels bounds the per-channel array read. The notification
// struct declares a 1-element inline array that actually holds nChannels
// entries, so the count has to be validated before anything dereferences
// past the declared capacity.
const maxVolumeChannels = 64

// volumeReader copies exactly n per-channel volumes out of the raw
// notification payload. It is only invoked after the count passed validation.
type volumeReader func(n uint32) []float32

// volumeSink receives raw per-device volume notifications; same forwarding
// rules as deviceSink
type volumeSink struct {
	logger *zap.SugaredLogger
	br     *bridge[VolumeEvent]
}

func newVolumeSink(logger *zap.SugaredLogger, br *bridge[VolumeEvent]) *volumeSink {
	return &volumeSink{
		logger: logger.Named("volume_sink"),
		br:     br,
	}
}

func (s *volumeSink) onNotify(muted bool, masterVolume float32, channelCount uint32, read volumeReader) {
	if channelCount == 0 || channelCount > maxVolumeChannels {
		s.br.submit(VolumeEvent{
			Err: errorf(KindConversionFailed, "convert volume notification",
				"implausible channel count %d", channelCount),
		})

		return
	}

	s.br.submit(VolumeEvent{
		Muted:          muted,
		MasterVolume:   masterVolume,
		ChannelVolumes: read(channelCount),
	})
}
