package router_test

import (
	"context"
	"testing"

	"github.com/adbsmartd/adbsmartd/internal/device"
	"github.com/adbsmartd/adbsmartd/pkg/router"
	"github.com/adbsmartd/adbsmartd/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(tag string) router.Handler {
	return func(ctx context.Context, dev *device.Device, params map[string]string) (wire.Response, error) {
		return wire.OKData([]byte(tag)), nil
	}
}

func TestRouter_LiteralMatch(t *testing.T) {
	r := router.New()
	r.AddRoute("host:version", okHandler("version"), false, false)

	route, params := r.Match("host:version")
	require.NotNil(t, route)
	assert.Empty(t, params)
}

func TestRouter_PlaceholderCapturesToEndOfInput(t *testing.T) {
	r := router.New()
	r.AddRoute("host:transport:<serial>", okHandler("transport"), false, false)

	route, params := r.Match("host:transport:fake-5554")
	require.NotNil(t, route)
	assert.Equal(t, "fake-5554", params["serial"])
}

func TestRouter_PlaceholderCapturesUpToNextLiteral(t *testing.T) {
	r := router.New()
	r.AddRoute("host-serial:<serial>:host:devices", okHandler("hs"), false, false)

	route, params := r.Match("host-serial:fake-5554:host:devices")
	require.NotNil(t, route)
	assert.Equal(t, "fake-5554", params["serial"])
}

func TestRouter_LongestPatternWinsOverPlaceholder(t *testing.T) {
	r := router.New()
	r.AddRoute("host:transport-<x>", okHandler("x"), false, false)
	r.AddRoute("host:transport-any", okHandler("any"), false, false)

	route, _ := r.Match("host:transport-any")
	require.NotNil(t, route)
	assert.Equal(t, "host:transport-any", route.Pattern)
}

func TestRouter_NoMatchReturnsNil(t *testing.T) {
	r := router.New()
	r.AddRoute("host:version", okHandler("v"), false, false)

	route, _ := r.Match("host:unknown")
	assert.Nil(t, route)
}

func TestRouter_EmptyPlaceholderCaptureFails(t *testing.T) {
	r := router.New()
	r.AddRoute("host:transport:<serial>", okHandler("t"), false, false)

	route, _ := r.Match("host:transport:")
	assert.Nil(t, route)
}
