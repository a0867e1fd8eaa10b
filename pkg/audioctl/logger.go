package audioctl

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MixyLabs/audioctl/pkg/audioctl/util"
)

const (
	logDirectory = "logs"
	logFilename  = "audioctl.log"

	buildTypeDev = "dev"
)

// NewLogger creates the root logger. Dev builds log everything to the
// console; other builds write to a file under the logs directory so the
// console stays usable for the tray-less run mode.
func NewLogger(buildType string) (*zap.SugaredLogger, error) {
	var loggerConfig zap.Config

	if buildType == buildTypeDev || buildType == "" {
		loggerConfig = zap.NewDevelopmentConfig()
		loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		if err := util.EnsureDirExists(logDirectory); err != nil {
			return nil, fmt.Errorf("ensure log dir exists: %w", err)
		}

		loggerConfig = zap.NewProductionConfig()
		loggerConfig.Encoding = "console"
		loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		loggerConfig.OutputPaths = []string{filepath.Join(logDirectory, logFilename)}
	}

	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	loggerConfig.EncoderConfig.EncodeCaller = nil

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return logger.Sugar(), nil
}
