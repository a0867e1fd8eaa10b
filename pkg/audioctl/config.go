package audioctl

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MixyLabs/audioctl/pkg/audioctl/util"
)

type ConfigManager struct {
	logger             *zap.SugaredLogger
	notifier           Notifier
	stopWatcherChannel chan bool

	reloadConsumers []chan bool

	userConfig *viper.Viper

	current Config
}

type Config struct {
	// EventBuffer is the capacity of notification channels; kept small on
	// purpose, delivery is best-effort and slow consumers shouldn't buffer
	EventBuffer int `mapstructure:"event_buffer"`

	// NotifyDeviceChanges controls desktop toasts for device events
	NotifyDeviceChanges bool `mapstructure:"notify_device_changes"`

	// WatchDevices limits notifications to the named devices; empty means all
	WatchDevices []string `mapstructure:"watch_devices"`

	// WatchDefaultVolume also streams the default output device's volume
	WatchDefaultVolume bool `mapstructure:"watch_default_volume"`

	DisableTray bool `mapstructure:"disable_tray"`
}

const (
	userConfigFilepath = "config.yaml"

	userConfigName = "config"
	configType     = "yaml"

	configKeyEventBuffer         = "event_buffer"
	configKeyNotifyDeviceChanges = "notify_device_changes"
	configKeyWatchDevices        = "watch_devices"
	configKeyWatchDefaultVolume  = "watch_default_volume"
	configKeyDisableTray         = "disable_tray"
)

func NewConfig(logger *zap.SugaredLogger, notifier Notifier) (*ConfigManager, error) {
	logger = logger.Named("config")

	cc := &ConfigManager{
		logger:             logger,
		notifier:           notifier,
		reloadConsumers:    []chan bool{},
		stopWatcherChannel: make(chan bool),
	}

	userConfig := viper.New()
	userConfig.SetConfigName(userConfigName)
	userConfig.SetConfigType(configType)

	// look next to the binary first, then in the user's config directory
	userConfig.AddConfigPath(".")
	userConfig.AddConfigPath(filepath.Join(xdg.ConfigHome, "audioctl"))

	userConfig.SetDefault(configKeyEventBuffer, defaultEventBuffer)
	userConfig.SetDefault(configKeyNotifyDeviceChanges, true)
	userConfig.SetDefault(configKeyWatchDevices, []string{})
	userConfig.SetDefault(configKeyWatchDefaultVolume, false)
	userConfig.SetDefault(configKeyDisableTray, false)

	cc.userConfig = userConfig

	logger.Debug("Created config instance")

	return cc, nil
}

func (cc *ConfigManager) Load() error {
	cc.logger.Debugw("Loading config", "path", userConfigFilepath)

	// a missing config file is fine here, the defaults describe a usable setup
	if !util.FileExists(userConfigFilepath) {
		cc.logger.Debugw("Config file not found, using defaults", "path", userConfigFilepath)
	} else if err := cc.userConfig.ReadInConfig(); err != nil {
		cc.logger.Warnw("Viper failed to read user config", "error", err)

		// if the error is yaml-format-related, show a sensible error. otherwise, show 'em to the logs
		if strings.Contains(err.Error(), "yaml:") {
			cc.notifier.Notify("Invalid configuration!",
				fmt.Sprintf("Please make sure %s is in a valid YAML format.", userConfigFilepath))
		} else {
			cc.notifier.Notify("Error loading configuration!", "Please check audioctl's logs for more details.")
		}

		return fmt.Errorf("read user config: %w", err)
	}

	if err := cc.populateFromViper(); err != nil {
		cc.logger.Warnw("Failed to populate config fields", "error", err)
		return fmt.Errorf("populate config fields: %w", err)
	}

	cc.logger.Info("Loaded config successfully")
	cc.logger.Infow("Config values",
		"eventBuffer", cc.current.EventBuffer,
		"notifyDeviceChanges", cc.current.NotifyDeviceChanges,
		"watchDevices", cc.current.WatchDevices,
		"watchDefaultVolume", cc.current.WatchDefaultVolume)

	return nil
}

// SubscribeToChanges allows external components to receive updates when the config is reloaded
func (cc *ConfigManager) SubscribeToChanges() chan bool {
	c := make(chan bool)
	cc.reloadConsumers = append(cc.reloadConsumers, c)

	return c
}

// WatchConfigFileChanges starts watching for configuration file changes
// and attempts reloading the config when they happen
func (cc *ConfigManager) WatchConfigFileChanges() {
	cc.logger.Debugw("Starting to watch user config file for changes", "path", userConfigFilepath)

	const (
		minTimeBetweenReloadAttempts = time.Millisecond * 500
		delayBetweenEventAndReload   = time.Millisecond * 50
	)

	lastAttemptedReload := time.Now()

	// establish watch using viper as opposed to doing it ourselves, though our internal cooldown is still required
	cc.userConfig.WatchConfig()
	cc.userConfig.OnConfigChange(func(event fsnotify.Event) {
		if event.Op&fsnotify.Write == fsnotify.Write {
			now := time.Now()

			// ... check if it's not a duplicate (many editors will write to a file twice)
			if lastAttemptedReload.Add(minTimeBetweenReloadAttempts).Before(now) {
				cc.logger.Debugw("Config file modified, attempting reload", "event", event)

				// wait a bit to let the editor actually flush the new file contents to disk
				<-time.After(delayBetweenEventAndReload)

				if err := cc.Load(); err != nil {
					cc.logger.Warnw("Failed to reload config file", "error", err)
				} else {
					cc.logger.Info("Reloaded config successfully")
					cc.notifier.Notify("Configuration reloaded!", "Your changes have been applied.")

					cc.onConfigReloaded()
				}

				lastAttemptedReload = now
			}
		}
	})

	// wait till they stop us
	<-cc.stopWatcherChannel
	cc.logger.Debug("Stopping user config file watcher")
	cc.userConfig.OnConfigChange(nil)
}

// StopWatchingConfigFile signals our filesystem watcher to stop
func (cc *ConfigManager) StopWatchingConfigFile() {
	cc.stopWatcherChannel <- true
}

func (cc *ConfigManager) populateFromViper() error {
	err := cc.userConfig.Unmarshal(&cc.current, func(dConf *mapstructure.DecoderConfig) {
		dConf.WeaklyTypedInput = false
	})
	if err != nil {
		return err
	}

	if cc.current.EventBuffer <= 0 {
		cc.current.EventBuffer = defaultEventBuffer
	}

	cc.logger.Debug("Populated config fields from viper")

	return nil
}

func (cc *ConfigManager) onConfigReloaded() {
	cc.logger.Debug("Notifying consumers about configuration reload")

	for _, consumer := range cc.reloadConsumers {
		consumer <- true
	}
}
