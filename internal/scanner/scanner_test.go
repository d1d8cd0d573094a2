package scanner

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/safetyscanner/internal/cola2"
	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/simulator"
	"firestige.xyz/safetyscanner/internal/transport"
)

// startDevice serves a simulated device on a loopback port.
func startDevice(t *testing.T) (*simulator.Device, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dev := simulator.NewDevice(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		dev.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return dev, ln.Addr().String()
}

func newScanner(t *testing.T) (*Scanner, *simulator.Device) {
	t.Helper()
	dev, addr := startDevice(t)
	s := New(transport.NewTCPClient(addr), WithCommandTimeout(time.Second))
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, dev
}

func TestScannerDeviceInformation(t *testing.T) {
	s, _ := newScanner(t)
	ctx := context.Background()

	tc, err := s.RequestTypeCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.InterfaceEFIPro, tc.InterfaceType)
	assert.InDelta(t, 5.5, tc.MaxRange, 1e-9)

	name, err := s.RequestDeviceName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "microScan3 simulator", name.Name)

	sn, err := s.RequestSerialNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "21470001", sn.SerialNumber)

	order, err := s.RequestOrderNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1075843", order.OrderNumber)

	fw, err := s.RequestFirmwareVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "V1.2.0", fw.String())

	app, err := s.RequestApplicationName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "simulated application", app.Name)

	project, err := s.RequestProjectName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "simulator", project.Name)

	user, err := s.RequestUserName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Maintenance", user.Name)

	_, err = s.RequestConfigMetadata(ctx)
	require.NoError(t, err)

	so, err := s.RequestStatusOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ConfigStateVerified, so.ConfigState)

	status, err := s.RequestDeviceStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.DeviceStatusOK, status)

	action, err := s.RequestRequiredUserAction(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.RequiredUserAction{}, action)

	cfg, err := s.RequestPersistentConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(simulator.SimBeams), cfg.DerivedValues.NumberOfBeams)

	// one session served every request
	id, ok := s.Session().SessionID()
	assert.True(t, ok)
	assert.NotZero(t, id)
}

func TestScannerFieldData(t *testing.T) {
	s, _ := newScanner(t)

	fields, err := s.RequestFieldData(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.True(t, fields[0].IsProtectiveField)
	assert.False(t, fields[1].IsProtectiveField)
	for _, f := range fields {
		assert.Len(t, f.BeamDistances, simulator.SimBeams)
		assert.InDelta(t, simulator.SimStartAngle, f.StartAngle, 1e-6)
		assert.InDelta(t, simulator.SimResolution, f.AngularBeamResolution, 1e-6)
	}
}

func TestScannerMonitoringCases(t *testing.T) {
	s, _ := newScanner(t)

	cases, err := s.RequestMonitoringCases(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, uint16(1), cases[0].MonitoringCaseNumber)
	assert.Equal(t, []uint16{1, 2}, cases[0].FieldIndices[:2])
}

func TestScannerLatestTelegramClampsChannel(t *testing.T) {
	s, dev := newScanner(t)
	dev.SetVariable(cola2.IndexLatestTelegram+2, nil)

	data, err := s.RequestLatestTelegram(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, uint32(simulator.SimSerial), data.Header.SerialNumberOfDevice)
	assert.Len(t, data.Measurement.ScanPoints, simulator.SimBeams)

	// missing on the device
	_, err = s.RequestLatestTelegram(context.Background(), 2)
	var perr *core.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, simulator.ErrorUnknownIndex, perr.Code)
}

func TestScannerMethods(t *testing.T) {
	s, dev := newScanner(t)
	ctx := context.Background()

	settings := core.DefaultCommSettings()
	settings.Channel = 1
	settings.HostIP = netip.MustParseAddr("127.0.0.1")
	settings.HostUDPPort = 6060
	settings.StartAngle, settings.EndAngle = -45, 225
	require.NoError(t, s.ChangeSensorSettings(ctx, settings))
	require.NoError(t, s.FindSensor(ctx, 3))

	got, ok := dev.CommSettings(1)
	require.True(t, ok)
	assert.Equal(t, settings, got)
	require.Len(t, dev.Calls(), 2)
	assert.Equal(t, uint16(cola2.MethodFindMe), dev.Calls()[1].Index)
}

func TestScannerReconnectsAfterClose(t *testing.T) {
	s, _ := newScanner(t)
	ctx := context.Background()

	_, err := s.RequestDeviceStatus(ctx)
	require.NoError(t, err)
	first, _ := s.Session().SessionID()

	require.NoError(t, s.Close(ctx))
	assert.Equal(t, cola2.StateClosed, s.Session().State())

	_, err = s.RequestDeviceStatus(ctx)
	require.NoError(t, err)
	second, _ := s.Session().SessionID()
	assert.NotEqual(t, first, second)
}

func TestScannerUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	s := New(transport.NewTCPClient(addr))
	_, err = s.RequestDeviceName(context.Background())
	assert.ErrorIs(t, err, core.ErrTransport)
}
