package audioctl

import (
	"fyne.io/systray"

	"github.com/MixyLabs/audioctl/pkg/audioctl/util"
)

func (ac *AudioControl) initializeTray(onDone func()) {
	logger := ac.logger.Named("tray")

	onReady := func() {
		logger.Debug("Tray instance ready")

		systray.SetTitle("audioctl")
		systray.SetTooltip("audioctl")

		editConfig := systray.AddMenuItem("Edit configuration", "Open config file with notepad")

		rescanDevices := systray.AddMenuItem("Re-scan audio devices", "Log a fresh snapshot of the active endpoints")

		if ac.version != "" {
			systray.AddSeparator()
			versionInfo := systray.AddMenuItem(ac.version, "")
			versionInfo.Disable()
		}

		systray.AddSeparator()
		quit := systray.AddMenuItem("Quit", "Stop audioctl and quit")

		go func() {
			for {
				select {
				case <-quit.ClickedCh:
					logger.Info("Quit menu item clicked, stopping")

					ac.signalStop()

				case <-editConfig.ClickedCh:
					logger.Info("Edit config menu item clicked, opening config for editing")

					editor := "notepad.exe"
					if util.Linux() {
						editor = "gedit"
					}

					if err := util.OpenExternal(logger, editor, userConfigFilepath); err != nil {
						logger.Warnw("Failed to open config file for editing", "error", err)
					}

				case <-rescanDevices.ClickedCh:
					logger.Info("Re-scan menu item clicked, snapshotting devices")

					if err := ac.logDeviceSnapshot(); err != nil {
						logger.Warnw("Failed to snapshot devices", "error", err)
					}
				}
			}
		}()

		onDone()
	}

	onExit := func() {
		logger.Debug("Tray exited")
	}

	logger.Debug("Running in tray")
	systray.Run(onReady, onExit)
}

func (ac *AudioControl) stopTray() {
	ac.logger.Debug("Quitting tray")
	systray.Quit()
}
