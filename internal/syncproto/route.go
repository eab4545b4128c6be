package syncproto

import (
	"context"

	"github.com/adbsmartd/adbsmartd/internal/device"
	"github.com/adbsmartd/adbsmartd/internal/logger"
	"github.com/adbsmartd/adbsmartd/internal/telemetry"
	"github.com/adbsmartd/adbsmartd/pkg/metrics"
	"github.com/adbsmartd/adbsmartd/pkg/router"
	"github.com/adbsmartd/adbsmartd/pkg/wire"
)

// Service registers the sync: device route and owns the file system it
// serves requests against. Metrics may be nil to disable byte-transfer
// accounting.
type Service struct {
	FS      FileSystem
	Metrics metrics.ServerMetrics
}

// Register attaches sync:'s route to app.
func (s *Service) Register(app interface {
	DeviceRoute(pattern string, prefixOnly bool, handler router.Handler)
}) {
	app.DeviceRoute("sync:", false, s.sync)
}

// sync writes the initial OKAY itself, then serves the binary record loop
// in-line, taking over the raw connection for the sub-protocol's
// lifetime. It returns Noop/Close: by the time it returns, every byte has
// already been written and the connection is done.
func (s *Service) sync(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	io := router.ConnIOFromContext(ctx)
	if io == nil {
		return wire.Fail("sync unavailable on this connection"), nil
	}

	if err := wire.WriteResponse(io.Writer(), wire.OK()); err != nil {
		return wire.Noop(), err
	}

	ctx, span := telemetry.StartSpan(ctx, "sync")
	defer span.End()

	if err := Serve(ctx, io.Reader(), io.Writer(), s.FS, s.Metrics); err != nil {
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "sync session ended with error", logger.KeyError, err.Error())
	}

	return wire.Noop(), nil
}
