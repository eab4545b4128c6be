// Package dispatch implements the request dispatcher that binds the
// router, the device registry, and a session together: it strips
// host-serial: prefixes, resolves device-scoped routes, invokes the
// matched handler, and translates its Response into wire bytes and a
// lifecycle action. Grounded on routing.py's App.dispatch.
package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/adbsmartd/adbsmartd/internal/device"
	"github.com/adbsmartd/adbsmartd/internal/logger"
	"github.com/adbsmartd/adbsmartd/internal/session"
	"github.com/adbsmartd/adbsmartd/internal/telemetry"
	"github.com/adbsmartd/adbsmartd/pkg/metrics"
	"github.com/adbsmartd/adbsmartd/pkg/router"
	"github.com/adbsmartd/adbsmartd/pkg/wire"
)

var hostSerialPattern = regexp.MustCompile(`^host-serial:([^:]+):(.+)$`)

// App owns the route table and the device registry, and dispatches framed
// requests against them on behalf of one or more sessions.
type App struct {
	router   *router.Router
	devices  device.Registry
	warnOnce sync.Once

	// Metrics is optional; nil disables collection with zero overhead.
	Metrics metrics.ServerMetrics
}

// New returns an App with an empty route table, ready for Route/DeviceRoute
// registration before serving any connection.
func New(devices device.Registry) *App {
	return &App{
		router:  router.New(),
		devices: devices,
	}
}

// Route registers a plain (non device-scoped) handler.
func (a *App) Route(pattern string, handler router.Handler) {
	a.router.AddRoute(pattern, handler, false, false)
}

// DeviceRoute registers a handler that requires a resolved device. When
// prefixOnly is true the route fails instead of falling back to the first
// registered device (see §4.4 resolution order).
func (a *App) DeviceRoute(pattern string, prefixOnly bool, handler router.Handler) {
	a.router.AddRoute(pattern, handler, true, prefixOnly)
}

// Dispatch implements session.Dispatcher: route one payload, run
// the handler, write the wire response, and report the resulting Action.
func (a *App) Dispatch(ctx context.Context, payload string, sess *session.Session) (wire.Action, error) {
	var boundDevice *device.Device

	if m := hostSerialPattern.FindStringSubmatch(payload); m != nil {
		serial, inner := m[1], m[2]
		d := a.devices.Get(serial)
		if d == nil {
			return a.fail(ctx, sess, fmt.Sprintf("device '%s' not found", serial))
		}
		boundDevice = d
		payload = inner
	}

	route, params := a.router.Match(payload)
	if route == nil && strings.HasPrefix(payload, "host:") {
		a.warnOnce.Do(func() {
			logger.WarnCtx(ctx, "route missing host: prefix, falling back to suffix match; this will only log once")
		})
		route, params = a.router.Match(strings.TrimPrefix(payload, "host:"))
	}
	if route == nil {
		return a.fail(ctx, sess, "unsupported operation for payload: "+payload)
	}

	lc := logger.FromContext(ctx).WithRoute(route.Pattern)
	ctx = logger.WithContext(ctx, lc)
	ctx = router.WithConnIO(ctx, sess)
	ctx, span := telemetry.StartSpan(ctx, "dispatch."+route.Pattern)
	defer span.End()

	if a.Metrics != nil {
		a.Metrics.RecordRequestStart(route.Pattern)
		defer a.Metrics.RecordRequestEnd(route.Pattern)
	}

	if route.DeviceRoute {
		resolved, resp, done := a.resolveDevice(sess, route, boundDevice)
		if done {
			return a.recordAndWrite(ctx, sess, route.Pattern, resp)
		}
		boundDevice = resolved
		ctx = logger.WithContext(ctx, lc.WithDevice(boundDevice.Serial))
	}

	resp, err := a.invoke(ctx, route, boundDevice, params)
	if err != nil {
		logger.ErrorCtx(ctx, "handler error", "route", route.Pattern, logger.KeyError, err.Error())
		telemetry.RecordError(ctx, err)
		return a.recordAndWrite(ctx, sess, route.Pattern, wire.Fail("internal error"))
	}

	return a.recordAndWrite(ctx, sess, route.Pattern, resp)
}

// recordAndWrite records the completed request against Metrics (if set)
// before delegating to writeAndDecide.
func (a *App) recordAndWrite(ctx context.Context, sess *session.Session, route string, resp wire.Response) (wire.Action, error) {
	if a.Metrics != nil {
		a.Metrics.RecordRequest(route, resp.Kind == wire.KindFail)
	}
	return a.writeAndDecide(ctx, sess, resp)
}

// resolveDevice implements the §4.4 device-scoped resolution order. The
// returned bool is true when resolution already produced a terminal
// response (device missing) that the caller should write and return.
func (a *App) resolveDevice(sess *session.Session, route *router.Route, bound *device.Device) (*device.Device, wire.Response, bool) {
	if bound != nil {
		return bound, wire.Response{}, false
	}

	if d := a.devices.Selected(sess.ID); d != nil {
		return d, wire.Response{}, false
	}

	if route.PrefixOnly {
		return nil, wire.Fail("no device specified for device-only command"), true
	}

	devices := a.devices.List()
	if len(devices) == 0 {
		return nil, wire.Fail("no device available"), true
	}
	return devices[0], wire.Response{}, false
}

// invoke recovers a panicking handler into an error, mirroring the
// source's blanket except-Exception around handler dispatch.
func (a *App) invoke(ctx context.Context, route *router.Route, dev *device.Device, params map[string]string) (resp wire.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	return route.Handler(ctx, dev, params)
}

func (a *App) fail(ctx context.Context, sess *session.Session, reason string) (wire.Action, error) {
	return a.writeAndDecide(ctx, sess, wire.Fail(reason))
}

// writeAndDecide emits resp's wire bytes per its Kind and returns the
// lifecycle action the session loop should take next.
func (a *App) writeAndDecide(ctx context.Context, sess *session.Session, resp wire.Response) (wire.Action, error) {
	if resp.Kind == wire.KindNoop {
		return resp.Action, nil
	}
	if err := wire.WriteResponse(sess.Writer(), resp); err != nil {
		return wire.Close, err
	}
	return resp.Action, nil
}
