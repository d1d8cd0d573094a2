package simulator

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/safetyscanner/internal/cola2"
	"firestige.xyz/safetyscanner/internal/core"
	"firestige.xyz/safetyscanner/internal/core/decoder"
)

func TestFrameDecodes(t *testing.T) {
	f := Frame{
		SerialNumber: 42,
		Channel:      1,
		ScanNumber:   7,
		Features:     core.FeaturesAll,
		StartAngle:   -10,
		Resolution:   0.5,
		Distances:    []uint16{100, 200, 300},
		RunMode:      true,
	}
	data, err := decoder.DecodeData(core.NewBuffer(f.Encode()))
	require.NoError(t, err)

	assert.Equal(t, uint32(42), data.Header.SerialNumberOfDevice)
	assert.Equal(t, uint32(7), data.Header.ScanNumber)
	assert.True(t, data.GeneralSystemState.RunModeActive)
	assert.Equal(t, uint16(3), data.DerivedValues.NumberOfBeams)
	require.Len(t, data.Measurement.ScanPoints, 3)
	assert.Equal(t, uint16(200), data.Measurement.ScanPoints[1].Distance)
	assert.InDelta(t, -9.5, data.Measurement.ScanPoints[1].Angle, 1e-6)
	assert.True(t, data.Measurement.ScanPoints[1].Valid)
	assert.Len(t, data.Intrusion.Data, core.IntrusionFieldCount)
	assert.False(t, data.Application.IsEmpty)
}

func TestFrameFeatureSelection(t *testing.T) {
	f := Frame{Features: core.FeatureDerivedValues, Resolution: 1, Distances: []uint16{1}}
	data, err := decoder.DecodeData(core.NewBuffer(f.Encode()))
	require.NoError(t, err)
	assert.False(t, data.DerivedValues.IsEmpty)
	assert.True(t, data.Measurement.IsEmpty)
	assert.True(t, data.GeneralSystemState.IsEmpty)
	assert.True(t, data.Application.IsEmpty)
}

func reply(t *testing.T, d *Device, cmd cola2.Command, sessionID uint32, requestID uint16) cola2.Reply {
	t.Helper()
	raw := d.Handle(cola2.EncodeRequest(cmd, sessionID, requestID))
	require.NotNil(t, raw)
	r, err := cola2.DecodeReply(core.NewBuffer(raw))
	require.NoError(t, err)
	return r
}

func TestDeviceHandle(t *testing.T) {
	d := NewDevice(nil)

	var id uint32
	create := cola2.NewCreateSession(60, 1, &id)
	r := reply(t, d, create, 0, 1)
	require.NoError(t, create.DecodeReply(r))
	assert.NotZero(t, id)

	var tc core.TypeCode
	cmd := cola2.NewTypeCodeCommand(&tc)
	require.NoError(t, cmd.DecodeReply(reply(t, d, cmd, id, 2)))
	assert.Equal(t, "MICS3-ABAZ55ZA1P01", tc.Code)

	// reads need a live session
	r = reply(t, d, cola2.NewTypeCodeCommand(&tc), id+1, 3)
	assert.True(t, r.Failed())
	assert.Equal(t, ErrorInvalidSession, r.ErrorCode)

	// find me does not
	r = reply(t, d, cola2.NewFindMeCommand(2), 0, 4)
	assert.False(t, r.Failed())

	d.SetVariable(cola2.IndexTypeCode, nil)
	r = reply(t, d, cola2.NewTypeCodeCommand(&tc), id, 5)
	assert.Equal(t, ErrorUnknownIndex, r.ErrorCode)

	require.NoError(t, cola2.NewCloseSession().DecodeReply(reply(t, d, cola2.NewCloseSession(), id, 6)))
	r = reply(t, d, cola2.NewDeviceStatusCommand(new(core.DeviceStatus)), id, 7)
	assert.Equal(t, ErrorInvalidSession, r.ErrorCode)
}

func TestDeviceRecordsCommSettings(t *testing.T) {
	d := NewDevice(nil)
	var id uint32
	id = reply(t, d, cola2.NewCreateSession(60, 1, &id), 0, 1).SessionID

	s := core.DefaultCommSettings()
	s.Channel = 2
	s.HostUDPPort = 6061
	r := reply(t, d, cola2.NewChangeCommSettingsCommand(s), id, 2)
	require.False(t, r.Failed())

	got, ok := d.CommSettings(2)
	require.True(t, ok)
	assert.Equal(t, uint16(6061), got.HostUDPPort)
	require.Len(t, d.Calls(), 1)
	assert.Equal(t, uint16(cola2.MethodChangeCommSettings), d.Calls()[0].Index)
}

func TestPublisherFragments(t *testing.T) {
	ln, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()

	pub, err := NewPublisher(ln.LocalAddr().String(), 200)
	require.NoError(t, err)
	defer pub.Close()

	s := core.DefaultCommSettings()
	s.StartAngle, s.EndAngle = 0, 50
	telegram := SyntheticFrame(s, 3).Encode()
	require.NoError(t, pub.Send(telegram))

	r := decoder.NewReassembler(decoder.ReassemblyConfig{})
	buf := make([]byte, 2048)
	ln.SetReadDeadline(time.Now().Add(2 * time.Second))
	for !r.IsComplete() {
		n, err := ln.Read(buf)
		require.NoError(t, err)
		_, err = r.Add(core.NewBuffer(buf[:n]))
		require.NoError(t, err)
	}
	out, err := r.Deploy()
	require.NoError(t, err)
	assert.Equal(t, telegram, out.Bytes())
}
