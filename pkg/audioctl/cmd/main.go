package main

import (
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/MixyLabs/audioctl/pkg/audioctl"
)

var (
	gitCommit  string
	versionTag string
	buildType  string

	verbose      bool
	listDevices  bool
	toggleMuteID string
	setDefaultID string
	defaultRole  string
	deviceFlow   string
)

func init() {
	flag.BoolVar(&verbose, "verbose", false, "show verbose logs")
	flag.BoolVar(&verbose, "v", false, "shorthand for --verbose")
	flag.BoolVar(&listDevices, "list", false, "list audio endpoints and exit")
	flag.StringVar(&toggleMuteID, "toggle-mute", "", "toggle mute for the endpoint with the given id and exit")
	flag.StringVar(&setDefaultID, "set-default", "", "make the endpoint with the given id the default device and exit")
	flag.StringVar(&defaultRole, "role", "console", "role for -set-default (console, multimedia, communications)")
	flag.StringVar(&deviceFlow, "flow", "all", "data flow filter for -list (render, capture, all)")
	flag.Parse()
}

func main() {
	logger, err := audioctl.NewLogger(buildType)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}

	named := logger.Named("main")
	named.Debug("Created logger")

	named.Infow("Version info",
		"gitCommit", gitCommit,
		"versionTag", versionTag,
		"buildType", buildType)

	if verbose {
		named.Debug("Verbose flag provided, all log messages will be shown")
	}

	if listDevices || toggleMuteID != "" || setDefaultID != "" {
		if err := runOneShot(logger); err != nil {
			named.Fatalw("Command failed", "error", err)
		}

		return
	}

	ac, err := audioctl.NewAudioControl(logger, verbose)
	if err != nil {
		named.Fatalw("Failed to create audioctl object", "error", err)
	}

	if buildType != "" && (versionTag != "" || gitCommit != "") {
		identifier := gitCommit
		if versionTag != "" {
			identifier = versionTag
		}

		versionString := fmt.Sprintf("Version %s-%s", buildType, identifier)
		ac.SetVersion(versionString)
	}

	if err = ac.Initialize(); err != nil {
		named.Fatalw("Failed to initialize audioctl", "error", err)
	}
}

// runOneShot serves the non-interactive flags against a short-lived resolver
func runOneShot(logger *zap.SugaredLogger) error {
	resolver, err := audioctl.NewResolver(logger)
	if err != nil {
		return fmt.Errorf("create resolver: %w", err)
	}
	defer func() { _ = resolver.Close() }()

	switch {
	case listDevices:
		return printDevices(resolver)

	case toggleMuteID != "":
		device, err := resolver.Endpoint(audioctl.EndpointID(toggleMuteID))
		if err != nil {
			return fmt.Errorf("resolve endpoint: %w", err)
		}
		defer func() { _ = device.Close() }()

		muted, err := device.ToggleMute()
		if err != nil {
			return fmt.Errorf("toggle mute: %w", err)
		}

		fmt.Printf("%s: muted=%t\n", device.FriendlyName(), muted)

		return nil

	case setDefaultID != "":
		role, err := audioctl.ParseRole(defaultRole)
		if err != nil {
			return err
		}

		device, err := resolver.Endpoint(audioctl.EndpointID(setDefaultID))
		if err != nil {
			return fmt.Errorf("resolve endpoint: %w", err)
		}
		defer func() { _ = device.Close() }()

		if err := device.SetDefault(role); err != nil {
			return fmt.Errorf("set default: %w", err)
		}

		fmt.Printf("%s is now the default %s device\n", device.FriendlyName(), role)

		return nil
	}

	return nil
}

func printDevices(resolver *audioctl.Resolver) error {
	flow, err := audioctl.ParseDataFlow(deviceFlow)
	if err != nil {
		return err
	}

	collection, err := resolver.Collection(flow, audioctl.StateActive)
	if err != nil {
		return fmt.Errorf("enumerate endpoints: %w", err)
	}
	defer collection.Close()

	for idx := uint32(0); idx < collection.Count(); idx++ {
		device, err := collection.Get(idx)
		if err != nil {
			return fmt.Errorf("get endpoint %d: %w", idx, err)
		}

		fmt.Printf("%2d  %-50s %s\n", idx, device.FriendlyName(), device.ID())
		_ = device.Close()
	}

	return nil
}
