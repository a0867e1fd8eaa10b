//go:build !windows

package audioctl

import "go.uber.org/zap"

// NewResolver has no backend off Windows; the portable handle layer is still
// fully exercisable through the test backend
func NewResolver(logger *zap.SugaredLogger) (*Resolver, error) {
	return nil, errorf(KindUnsupported, "create resolver", "audio endpoint control requires windows")
}
