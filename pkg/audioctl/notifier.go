package audioctl

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// Notifier represents an entity that can send visual notifications to the user
type Notifier interface {
	Notify(title string, message string)
}

type toastNotifier struct {
	logger *zap.SugaredLogger
}

// NewToastNotifier creates a desktop toast notifier
func NewToastNotifier(logger *zap.SugaredLogger) (Notifier, error) {
	logger = logger.Named("notifier")
	logger.Debug("Created toast notifier instance")

	return &toastNotifier{logger: logger}, nil
}

func (tn *toastNotifier) Notify(title string, message string) {
	tn.logger.Infow("Sending toast notification", "title", title, "message", message)

	if err := beeep.Notify(title, message, ""); err != nil {
		tn.logger.Warnw("Failed to send toast notification", "error", err)
	}
}
