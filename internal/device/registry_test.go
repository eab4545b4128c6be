package device_test

import (
	"testing"

	"github.com/adbsmartd/adbsmartd/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureDevices() []*device.Device {
	return []*device.Device{
		{ID: "1", Serial: "fake-5554", State: device.StateDevice, Features: []string{"shell", "cmd"}},
		{ID: "2", Serial: "fake-5555", State: device.StateOffline},
	}
}

func TestStaticRegistry_ListIsStableAndOrdered(t *testing.T) {
	reg := device.NewStaticRegistry(fixtureDevices())
	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "fake-5554", list[0].Serial)
	assert.Equal(t, "fake-5555", list[1].Serial)
}

func TestStaticRegistry_GetUnknownReturnsNil(t *testing.T) {
	reg := device.NewStaticRegistry(fixtureDevices())
	assert.Nil(t, reg.Get("nope"))
}

func TestStaticRegistry_SelectBySerial(t *testing.T) {
	reg := device.NewStaticRegistry(fixtureDevices())
	d, err := reg.Select("sess-1", "fake-5555")
	require.NoError(t, err)
	assert.Equal(t, "fake-5555", d.Serial)
	assert.Equal(t, d, reg.Selected("sess-1"))
}

func TestStaticRegistry_SelectUnknownSerialFails(t *testing.T) {
	reg := device.NewStaticRegistry(fixtureDevices())
	_, err := reg.Select("sess-1", "ghost")
	require.Error(t, err)
	assert.Equal(t, "device 'ghost' not found", err.Error())
}

func TestStaticRegistry_SelectEmptyWithExactlyOneDevice(t *testing.T) {
	reg := device.NewStaticRegistry(fixtureDevices()[:1])
	d, err := reg.Select("sess-1", "")
	require.NoError(t, err)
	assert.Equal(t, "fake-5554", d.Serial)
}

func TestStaticRegistry_SelectEmptyWithNoDevicesFails(t *testing.T) {
	reg := device.NewStaticRegistry(nil)
	_, err := reg.Select("sess-1", "")
	require.Error(t, err)
	assert.IsType(t, &device.ErrNoDevices{}, err)
}

func TestStaticRegistry_SelectEmptyAmbiguousFails(t *testing.T) {
	reg := device.NewStaticRegistry(fixtureDevices())
	_, err := reg.Select("sess-1", "")
	require.Error(t, err)
	assert.IsType(t, &device.ErrAmbiguousDevice{}, err)
}

func TestStaticRegistry_ClearRemovesSelection(t *testing.T) {
	reg := device.NewStaticRegistry(fixtureDevices())
	_, err := reg.Select("sess-1", "fake-5554")
	require.NoError(t, err)
	reg.Clear("sess-1")
	assert.Nil(t, reg.Selected("sess-1"))
}
