package shellproto

import (
	"context"

	"github.com/adbsmartd/adbsmartd/internal/device"
	"github.com/adbsmartd/adbsmartd/internal/logger"
	"github.com/adbsmartd/adbsmartd/internal/telemetry"
	"github.com/adbsmartd/adbsmartd/pkg/metrics"
	"github.com/adbsmartd/adbsmartd/pkg/router"
	"github.com/adbsmartd/adbsmartd/pkg/wire"
)

// Service registers shell:/shell,v2:/exec: device routes against Executor.
// Metrics may be nil to disable exit-code accounting.
type Service struct {
	Executor Executor
	Metrics  metrics.ServerMetrics
}

// Register attaches shellproto's routes to app.
func (s *Service) Register(app interface {
	DeviceRoute(pattern string, prefixOnly bool, handler router.Handler)
}) {
	app.DeviceRoute("shell:", false, s.interactive)
	app.DeviceRoute("shell:<cmd>", false, s.runRaw)
	app.DeviceRoute("shell,v2:", false, s.interactiveV2)
	app.DeviceRoute("shell,v2:<cmd>", false, s.runV2)
	app.DeviceRoute("exec:<cmd>", false, s.exec)
}

func (s *Service) interactive(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	return wire.Fail("interactive shell is not supported"), nil
}

func (s *Service) interactiveV2(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	return wire.Fail("interactive shellv2 is not supported"), nil
}

func (s *Service) exec(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	return wire.Fail("exec command is not supported"), nil
}

func (s *Service) runRaw(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	io := router.ConnIOFromContext(ctx)
	if io == nil {
		return wire.Fail("shell unavailable on this connection"), nil
	}
	if err := wire.WriteResponse(io.Writer(), wire.OK()); err != nil {
		return wire.Noop(), err
	}
	ctx, span := telemetry.StartSpan(ctx, "shell.raw")
	defer span.End()
	if err := RunRaw(ctx, s.Executor, params["cmd"], io.Writer()); err != nil {
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "shell command failed", logger.KeyError, err.Error())
	}
	return wire.Noop(), nil
}

func (s *Service) runV2(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	io := router.ConnIOFromContext(ctx)
	if io == nil {
		return wire.Fail("shell unavailable on this connection"), nil
	}
	if err := wire.WriteResponse(io.Writer(), wire.OK()); err != nil {
		return wire.Noop(), err
	}
	ctx, span := telemetry.StartSpan(ctx, "shell.v2")
	defer span.End()
	if err := RunV2(ctx, s.Executor, params["cmd"], io.Writer(), s.Metrics); err != nil {
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "shell v2 command failed", logger.KeyError, err.Error())
	}
	return wire.Noop(), nil
}
