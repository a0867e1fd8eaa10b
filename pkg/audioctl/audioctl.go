// Package audioctl exposes Windows audio-endpoint state (device list,
// default device, per-device volume/mute) and streams live change
// notifications over channels.
package audioctl

import (
	"fmt"
	"os"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/MixyLabs/audioctl/pkg/audioctl/util"
)

// AudioControl is the main entity managing all subcomponents
type AudioControl struct {
	logger    *zap.SugaredLogger
	notifier  Notifier
	configMan *ConfigManager
	resolver  *Resolver

	// held while its volume stream is being watched
	defaultOut *Device

	runningWithTray bool
	stopChannel     chan bool
	version         string
	verbose         bool
}

func NewAudioControl(logger *zap.SugaredLogger, verbose bool) (*AudioControl, error) {
	logger = logger.Named("audioctl")

	notifier, err := NewToastNotifier(logger)
	if err != nil {
		logger.Errorw("Failed to create ToastNotifier", "error", err)
		return nil, fmt.Errorf("create new ToastNotifier: %w", err)
	}

	config, err := NewConfig(logger, notifier)
	if err != nil {
		logger.Errorw("Failed to create Config", "error", err)
		return nil, fmt.Errorf("create new Config: %w", err)
	}

	ac := &AudioControl{
		logger:      logger,
		notifier:    notifier,
		configMan:   config,
		stopChannel: make(chan bool),
		verbose:     verbose,
	}

	resolver, err := NewResolver(logger)
	if err != nil {
		logger.Errorw("Failed to create Resolver", "error", err)
		return nil, fmt.Errorf("create new Resolver: %w", err)
	}

	ac.resolver = resolver

	logger.Debug("Created audioctl instance")

	return ac, nil
}

func (ac *AudioControl) currConf() *Config {
	return &ac.configMan.current
}

// Initialize sets up components and starts to run in the background
func (ac *AudioControl) Initialize() error {
	ac.logger.Debug("Initializing")

	// load the config for the first time
	if err := ac.configMan.Load(); err != nil {
		ac.logger.Errorw("Failed to load config during initialization", "error", err)
		return fmt.Errorf("load config during init: %w", err)
	}

	if err := ac.logDeviceSnapshot(); err != nil {
		ac.logger.Warnw("Failed to snapshot devices during initialization", "error", err)
	}

	if err := ac.startWatching(); err != nil {
		ac.logger.Errorw("Failed to start watching for device events", "error", err)
		return fmt.Errorf("start watching during init: %w", err)
	}

	ac.setupInterruptHandler()

	if ac.currConf().DisableTray {
		ac.logger.Debugw("Running without tray icon", "reason", "disabled in config")

		// run in main thread while waiting on ctrl+C
		ac.run()
	} else {
		ac.runningWithTray = true
		ac.initializeTray(ac.run)
	}

	return nil
}

// SetVersion causes audioctl to add a version string to its tray menu if called before Initialize
func (ac *AudioControl) SetVersion(version string) {
	ac.version = version
}

// Verbose returns a boolean indicating whether audioctl is running in verbose mode
func (ac *AudioControl) Verbose() bool {
	return ac.verbose
}

// logDeviceSnapshot enumerates the currently active endpoints and logs them
func (ac *AudioControl) logDeviceSnapshot() error {
	collection, err := ac.resolver.Collection(FlowAll, StateActive)
	if err != nil {
		return fmt.Errorf("enumerate active endpoints: %w", err)
	}
	defer collection.Close()

	ac.logger.Infow("Enumerated active endpoints", "count", collection.Count())

	for idx := uint32(0); idx < collection.Count(); idx++ {
		device, err := collection.Get(idx)
		if err != nil {
			ac.logger.Warnw("Failed to get endpoint from collection", "index", idx, "error", err)
			continue
		}

		ac.logger.Infow("Endpoint",
			"index", idx,
			"id", device.ID(),
			"friendlyName", device.FriendlyName())

		_ = device.Close()
	}

	return nil
}

func (ac *AudioControl) startWatching() error {
	cfg := ac.currConf()

	events, err := ac.resolver.StartDeviceEvents(cfg.EventBuffer)
	if err != nil {
		return fmt.Errorf("start device events: %w", err)
	}

	go ac.consumeDeviceEvents(events)

	if cfg.WatchDefaultVolume {
		if err := ac.watchDefaultVolume(cfg.EventBuffer); err != nil {
			return err
		}
	}

	return nil
}

func (ac *AudioControl) watchDefaultVolume(capacity int) error {
	device, err := ac.resolver.Default(FlowRender)
	if err != nil {
		// not plugged in is a state, not a failure
		if KindOf(err) == KindNoDefaultDevice {
			ac.logger.Warn("No default output device, volume watch disabled")
			return nil
		}

		return fmt.Errorf("resolve default output device: %w", err)
	}

	volumeEvents, err := device.StartVolumeEvents(capacity)
	if err != nil {
		_ = device.Close()
		return fmt.Errorf("start volume events: %w", err)
	}

	ac.defaultOut = device

	go ac.consumeVolumeEvents(device.FriendlyName(), volumeEvents)

	return nil
}

func (ac *AudioControl) consumeDeviceEvents(events <-chan DeviceEvent) {
	for event := range events {
		if event.Err != nil {
			ac.logger.Warnw("Received malformed device notification", "error", event.Err)
			continue
		}

		switch event.Kind {
		case DefaultDeviceChanged:
			ac.logger.Infow("Default device changed",
				"id", event.ID,
				"flow", event.Flow,
				"role", event.Role)
		case DeviceStateChanged:
			ac.logger.Infow("Device state changed", "id", event.ID, "state", event.State)
		default:
			ac.logger.Infow("Device event", "kind", event.Kind, "id", event.ID)
		}

		ac.maybeNotify(event)
	}

	ac.logger.Debug("Device event stream ended")
}

func (ac *AudioControl) consumeVolumeEvents(name string, events <-chan VolumeEvent) {
	for event := range events {
		if event.Err != nil {
			ac.logger.Warnw("Received malformed volume notification", "device", name, "error", event.Err)
			continue
		}

		ac.logger.Debugw("Volume changed",
			"device", name,
			"muted", event.Muted,
			"masterVolume", event.MasterVolume,
			"channels", len(event.ChannelVolumes))
	}

	ac.logger.Debugw("Volume event stream ended", "device", name)
}

func (ac *AudioControl) maybeNotify(event DeviceEvent) {
	cfg := ac.currConf()
	if !cfg.NotifyDeviceChanges {
		return
	}

	name := ac.endpointName(event.ID)
	if !ac.watched(name, event.ID) {
		return
	}

	switch event.Kind {
	case DeviceAdded:
		ac.notifier.Notify("Audio device connected", name)
	case DeviceRemoved:
		ac.notifier.Notify("Audio device removed", name)
	case DefaultDeviceChanged:
		ac.notifier.Notify("Default audio device changed",
			fmt.Sprintf("%s (%s/%s)", name, event.Flow, event.Role))
	}
}

// watched reports whether the device is on the configured watch list;
// an empty list watches everything
func (ac *AudioControl) watched(name string, id EndpointID) bool {
	watchList := ac.currConf().WatchDevices
	if len(watchList) == 0 {
		return true
	}

	return funk.ContainsString(watchList, name) || funk.ContainsString(watchList, string(id))
}

// endpointName resolves a display name for notifications, falling back to
// the raw id when the device is already gone
func (ac *AudioControl) endpointName(id EndpointID) string {
	device, err := ac.resolver.Endpoint(id)
	if err != nil {
		return string(id)
	}
	defer func() { _ = device.Close() }()

	return device.FriendlyName()
}

func (ac *AudioControl) setupInterruptHandler() {
	interruptChannel := util.SetupCloseHandler()

	go func() {
		signal := <-interruptChannel
		ac.logger.Debugw("Interrupted", "signal", signal)
		ac.signalStop()
	}()
}

func (ac *AudioControl) run() {
	defer ac.recoverFromPanic()

	ac.logger.Info("Run loop starting")

	go ac.configMan.WatchConfigFileChanges()

	// wait until gracefully stopped
	<-ac.stopChannel
	ac.logger.Debug("Stop channel signaled, terminating")

	if err := ac.stop(); err != nil {
		ac.logger.Warnw("Failed to stop audioctl", "error", err)
		os.Exit(1)
	} else {
		os.Exit(0)
	}
}

func (ac *AudioControl) signalStop() {
	ac.logger.Debug("Signalling stop channel")
	ac.stopChannel <- true
}

// trySignalStop is the non-blocking variant for paths that may execute on the
// run goroutine itself, where a plain send would deadlock
func (ac *AudioControl) trySignalStop() {
	select {
	case ac.stopChannel <- true:
	default:
		ac.logger.Debug("Stop channel has no receiver, skipping signal")
	}
}

func (ac *AudioControl) stop() error {
	ac.logger.Info("Stopping")

	ac.configMan.StopWatchingConfigFile()

	if ac.defaultOut != nil {
		_ = ac.defaultOut.Close()
		ac.defaultOut = nil
	}

	// closing the resolver stops the device event stream and releases the
	// enumerator; registrations always come down before their sinks
	if err := ac.resolver.Close(); err != nil {
		ac.logger.Errorw("Failed to close resolver", "error", err)
		return fmt.Errorf("close resolver: %w", err)
	}

	if ac.runningWithTray {
		ac.stopTray()
	}

	// attempt to sync on exit - this won't necessarily work but can't harm
	_ = ac.logger.Sync()

	return nil
}
