// Package forward implements the device-scoped forward/killforward/
// list-forward routes, including the documented OKAYOKAY double-OKAY
// quirk forward/forward:norebind reproduce on purpose (see the spec's
// design notes: this matches the real ADB client and must not be "fixed").
package forward

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/adbsmartd/adbsmartd/internal/device"
	"github.com/adbsmartd/adbsmartd/pkg/router"
	"github.com/adbsmartd/adbsmartd/pkg/wire"
)

// Service tracks local->remote forward bindings per device serial.
type Service struct {
	mu       sync.Mutex
	forwards map[string]map[string]string // serial -> local -> remote
}

// New returns an empty Service.
func New() *Service {
	return &Service{forwards: make(map[string]map[string]string)}
}

// Register attaches forward's routes to app.
func (s *Service) Register(app interface {
	DeviceRoute(pattern string, prefixOnly bool, handler router.Handler)
}) {
	app.DeviceRoute("forward:norebind:<local>;<remote>", false, s.forwardNorebind)
	app.DeviceRoute("forward:<local>;<remote>", false, s.forward)
	app.DeviceRoute("killforward:<local>", false, s.killforward)
	app.DeviceRoute("killforward-all", false, s.killforwardAll)
	app.DeviceRoute("list-forward", false, s.listForward)
}

func (s *Service) forwardNorebind(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	local, remote := params["local"], params["remote"]

	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.forwardsFor(dev.Serial)
	if _, exists := m[local]; exists {
		return wire.Fail("cannot rebind existing socket"), nil
	}
	m[local] = remote
	return okayOkay(), nil
}

func (s *Service) forward(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	local, remote := params["local"], params["remote"]

	s.mu.Lock()
	defer s.mu.Unlock()
	s.forwardsFor(dev.Serial)[local] = remote
	return okayOkay(), nil
}

func (s *Service) killforward(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	local := params["local"]

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forwardsFor(dev.Serial), local)
	return okayOkay(), nil
}

func (s *Service) killforwardAll(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forwardsFor(dev.Serial) // ensure map exists
	s.forwards[dev.Serial] = make(map[string]string)
	return okayOkay(), nil
}

func (s *Service) listForward(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.forwardsFor(dev.Serial)
	locals := make([]string, 0, len(m))
	for local := range m {
		locals = append(locals, local)
	}
	sort.Strings(locals)

	var b strings.Builder
	for _, local := range locals {
		fmt.Fprintf(&b, "%s %s %s\n", dev.Serial, local, m[local])
	}
	return wire.OKData([]byte(b.String())), nil
}

func (s *Service) forwardsFor(serial string) map[string]string {
	m, ok := s.forwards[serial]
	if !ok {
		m = make(map[string]string)
		s.forwards[serial] = m
	}
	return m
}

// okayOkay builds the forward response's surprising wire shape: an outer
// dispatcher OKAY plus this handler's own raw inner "OKAY" body.
func okayOkay() wire.Response {
	return wire.OKData([]byte("OKAY")).Raw()
}
