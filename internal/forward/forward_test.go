package forward_test

import (
	"context"
	"testing"

	"github.com/adbsmartd/adbsmartd/internal/device"
	"github.com/adbsmartd/adbsmartd/internal/forward"
	"github.com/adbsmartd/adbsmartd/pkg/router"
	"github.com/adbsmartd/adbsmartd/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct{ router *router.Router }

func newTestApp() *testApp { return &testApp{router: router.New()} }

func (a *testApp) DeviceRoute(pattern string, prefixOnly bool, handler router.Handler) {
	a.router.AddRoute(pattern, handler, true, prefixOnly)
}

func dispatch(t *testing.T, app *testApp, dev *device.Device, payload string) wire.Response {
	t.Helper()
	route, params := app.router.Match(payload)
	require.NotNil(t, route, "no route matched %q", payload)
	resp, err := route.Handler(context.Background(), dev, params)
	require.NoError(t, err)
	return resp
}

func TestForward_ProducesOkayOkay(t *testing.T) {
	svc := forward.New()
	app := newTestApp()
	svc.Register(app)
	dev := &device.Device{Serial: "fake-5554"}

	resp := dispatch(t, app, dev, "forward:tcp:6000;tcp:7000")
	assert.Equal(t, wire.KindOK, resp.Kind)
	assert.True(t, resp.RawBody)
	assert.Equal(t, "OKAY", string(resp.Data))
}

func TestForward_ListForwardAfterForward(t *testing.T) {
	svc := forward.New()
	app := newTestApp()
	svc.Register(app)
	dev := &device.Device{Serial: "fake-5554"}

	dispatch(t, app, dev, "forward:tcp:6000;tcp:7000")
	resp := dispatch(t, app, dev, "list-forward")
	assert.Equal(t, "fake-5554 tcp:6000 tcp:7000\n", string(resp.Data))
}

func TestForward_NorebindFailsOnExisting(t *testing.T) {
	svc := forward.New()
	app := newTestApp()
	svc.Register(app)
	dev := &device.Device{Serial: "fake-5554"}

	dispatch(t, app, dev, "forward:norebind:tcp:6000;tcp:7000")
	resp := dispatch(t, app, dev, "forward:norebind:tcp:6000;tcp:9000")
	assert.Equal(t, wire.KindFail, resp.Kind)
	assert.Equal(t, "cannot rebind existing socket", string(resp.Data))
}

func TestForward_Killforward(t *testing.T) {
	svc := forward.New()
	app := newTestApp()
	svc.Register(app)
	dev := &device.Device{Serial: "fake-5554"}

	dispatch(t, app, dev, "forward:tcp:6000;tcp:7000")
	dispatch(t, app, dev, "killforward:tcp:6000")
	resp := dispatch(t, app, dev, "list-forward")
	assert.Equal(t, "", string(resp.Data))
}

func TestForward_KillforwardAll(t *testing.T) {
	svc := forward.New()
	app := newTestApp()
	svc.Register(app)
	dev := &device.Device{Serial: "fake-5554"}

	dispatch(t, app, dev, "forward:tcp:6000;tcp:7000")
	dispatch(t, app, dev, "forward:tcp:6001;tcp:7001")
	dispatch(t, app, dev, "killforward-all")
	resp := dispatch(t, app, dev, "list-forward")
	assert.Equal(t, "", string(resp.Data))
}
