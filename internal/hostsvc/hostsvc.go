// Package hostsvc implements the built-in host: services: the handlers
// that drive device selection and server lifecycle, per the source's
// DefaultAPI registered against an AdbServer.
package hostsvc

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/adbsmartd/adbsmartd/internal/device"
	"github.com/adbsmartd/adbsmartd/internal/logger"
	"github.com/adbsmartd/adbsmartd/pkg/router"
	"github.com/adbsmartd/adbsmartd/pkg/wire"
)

// Service holds the state host: routes need: the configured protocol
// version, the server-wide feature list, the device registry, and the
// shutdown hook host:kill fires.
type Service struct {
	Version        int
	ServerFeatures []string
	Devices        device.Registry
	RequestShutdown func()
}

// Register attaches every host service route (and the bare device-scoped
// "features" route) to app.
func (s *Service) Register(app interface {
	Route(pattern string, handler router.Handler)
	DeviceRoute(pattern string, prefixOnly bool, handler router.Handler)
}) {
	app.Route("host:version", s.version)
	app.Route("host:kill", s.kill)
	app.Route("host:devices", s.devices)
	app.Route("host:devices-l", s.devicesLong)
	app.Route("host:features", s.features)
	app.Route("host:tport:serial:<serial>", s.tportSerial)
	app.Route("host:tport:any", s.tportAny)
	app.Route("host:transport:<serial>", s.transportSerial)
	app.Route("host:transport-any", s.transportAny)
	app.Route("host:transport-usb", s.transportAny)
	app.Route("host:transport-local", s.transportAny)
	app.DeviceRoute("features", false, s.deviceFeatures)
}

func (s *Service) version(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	return wire.OKData([]byte(fmt.Sprintf("%04x", s.Version))), nil
}

func (s *Service) kill(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	if s.RequestShutdown != nil {
		s.RequestShutdown()
	}
	return wire.OK(), nil
}

func (s *Service) devices(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	var b strings.Builder
	for _, d := range s.Devices.List() {
		fmt.Fprintf(&b, "%s\t%s\n", d.Serial, d.State)
	}
	return wire.OKData([]byte(b.String())), nil
}

func (s *Service) devicesLong(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	var b strings.Builder
	for _, d := range s.Devices.List() {
		props := make([]string, 0, len(d.Properties))
		for _, p := range d.Properties {
			props = append(props, fmt.Sprintf("%s:%s", p.Key, p.Value))
		}
		fmt.Fprintf(&b, "%-22s %-10s %s\n", d.Serial, d.State, strings.Join(props, " "))
	}
	return wire.OKData([]byte(b.String())), nil
}

func (s *Service) features(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	features := s.ServerFeatures
	if len(features) == 0 {
		features = []string{"shell"}
	}
	return wire.OKData([]byte(strings.Join(features, ","))), nil
}

func (s *Service) deviceFeatures(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	sorted := append([]string(nil), dev.Features...)
	sort.Strings(sorted)
	return wire.OKData([]byte(strings.Join(sorted, ","))), nil
}

func (s *Service) tportSerial(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	return s.selectAndReplyTport(ctx, params["serial"])
}

func (s *Service) tportAny(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	return s.selectAndReplyTport(ctx, "")
}

func (s *Service) selectAndReplyTport(ctx context.Context, serial string) (wire.Response, error) {
	sessionID := sessionIDFromContext(ctx)
	d, err := s.Devices.Select(sessionID, serial)
	if err != nil {
		return wire.Fail(err.Error()), nil
	}
	return wire.OKData(transportID(d.Serial)).Raw().KeepAlive(), nil
}

func (s *Service) transportSerial(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	return s.selectAndReplyTransport(ctx, params["serial"])
}

func (s *Service) transportAny(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	return s.selectAndReplyTransport(ctx, "")
}

func (s *Service) selectAndReplyTransport(ctx context.Context, serial string) (wire.Response, error) {
	sessionID := sessionIDFromContext(ctx)
	_, err := s.Devices.Select(sessionID, serial)
	if err != nil {
		return wire.Fail(err.Error()), nil
	}
	return wire.OK().KeepAlive(), nil
}

func sessionIDFromContext(ctx context.Context) string {
	if lc := logger.FromContext(ctx); lc != nil {
		return lc.SessionID
	}
	return ""
}

// transportID derives the 8-byte little-endian opaque handle for serial.
// Callers never need to decode it back; the session's own device binding
// is the real source of truth (see the Transport id glossary entry).
func transportID(serial string) []byte {
	h := fnv.New64a()
	_, _ = h.Write([]byte(serial))
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, h.Sum64())
	return buf
}
