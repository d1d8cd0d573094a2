package decoder

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/safetyscanner/internal/core"
)

const angleEps = 1.0 / core.AngleScale

func TestDecodeDataHeader(t *testing.T) {
	payload := newTelegramBuilder().
		add(slotDerived, derivedBlock(0, 0, 0)).
		bytes()

	h, err := DecodeDataHeader(payload)
	require.NoError(t, err)
	assert.Equal(t, byte('R'), h.VersionIndicator)
	assert.Equal(t, uint8(1), h.VersionMajor)
	assert.Equal(t, uint32(0x11223344), h.SerialNumberOfDevice)
	assert.Equal(t, uint32(0x55667788), h.SerialNumberOfSystemPlug)
	assert.Equal(t, uint8(1), h.ChannelNumber)
	assert.Equal(t, uint32(42), h.SequenceNumber)
	assert.Equal(t, uint32(7), h.ScanNumber)
	assert.Equal(t, uint16(1000), h.TimestampDate)
	assert.Equal(t, uint32(123456), h.TimestampTime)
	assert.Equal(t, core.BlockRef{Offset: DataHeaderSize, Size: DerivedValuesSize}, h.DerivedValuesBlock)
	assert.True(t, h.MeasurementDataBlock.Absent())
}

func TestDecodeDataHeaderTooShort(t *testing.T) {
	_, err := DecodeDataHeader(make([]byte, DataHeaderSize-1))
	assert.True(t, errors.Is(err, core.ErrDecode))
}

// Two datagrams carrying one telegram with three scan points.
func TestEndToEndTwoFragmentTelegram(t *testing.T) {
	telegram := newTelegramBuilder().
		add(slotDerived, derivedBlock(3, -47.5, 0.125)).
		add(slotMeasurement, measurementBlock(
			beam{distance: 1000, reflectivity: 10, status: 0b000001},
			beam{distance: 2000, reflectivity: 20, status: 0b000110},
			beam{distance: 3000, reflectivity: 30, status: 0b111000},
		)).
		bytes()

	datagrams := Fragment(telegram, 77, len(telegram)/2+1)
	require.Len(t, datagrams, 2)

	r := NewReassembler(ReassemblyConfig{})
	complete, err := r.Add(core.NewBuffer(datagrams[1]))
	require.NoError(t, err)
	assert.False(t, complete)
	complete, err = r.Add(core.NewBuffer(datagrams[0]))
	require.NoError(t, err)
	require.True(t, complete)

	buf, err := r.Deploy()
	require.NoError(t, err)
	data, err := DecodeData(buf)
	require.NoError(t, err)

	m := data.Measurement
	require.False(t, m.IsEmpty)
	require.Len(t, m.ScanPoints, 3)
	for i, want := range []float64{-47.5, -47.375, -47.25} {
		assert.InDelta(t, want, m.ScanPoints[i].Angle, angleEps, "angle of point %d", i)
	}

	want := []core.ScanPoint{
		{Index: 0, Distance: 1000, Reflectivity: 10, Valid: true},
		{Index: 1, Distance: 2000, Reflectivity: 20, Infinite: true, Glare: true},
		{Index: 2, Distance: 3000, Reflectivity: 30, Reflector: true, Contamination: true, ContaminationWarning: true},
	}
	ignoreAngle := cmp.FilterPath(func(p cmp.Path) bool { return p.Last().String() == ".Angle" }, cmp.Ignore())
	if diff := cmp.Diff(want, m.ScanPoints, ignoreAngle); diff != "" {
		t.Errorf("scan points mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, data.Intrusion.IsEmpty)
	assert.True(t, data.GeneralSystemState.IsEmpty)
	assert.True(t, data.Application.IsEmpty)
}

func TestDecodeDerivedValues(t *testing.T) {
	payload := newTelegramBuilder().add(slotDerived, derivedBlock(2750, -47.5, 0.1)).bytes()
	data, err := DecodeData(core.NewBuffer(payload))
	require.NoError(t, err)

	d := data.DerivedValues
	assert.False(t, d.IsEmpty)
	assert.Equal(t, uint16(1), d.MultiplicationFactor)
	assert.Equal(t, uint16(2750), d.NumberOfBeams)
	assert.Equal(t, uint16(40), d.ScanTime)
	assert.InDelta(t, -47.5, d.StartAngle, angleEps)
	assert.InDelta(t, 0.1, d.AngularBeamResolution, angleEps)
	assert.Equal(t, uint32(25), d.InterbeamPeriod)
}

func TestMeasurementWithoutDerivedValuesIsEmpty(t *testing.T) {
	payload := newTelegramBuilder().
		add(slotMeasurement, measurementBlock(beam{distance: 1})).
		bytes()
	data, err := DecodeData(core.NewBuffer(payload))
	require.NoError(t, err)
	assert.True(t, data.DerivedValues.IsEmpty)
	assert.True(t, data.Measurement.IsEmpty)
}

func TestAbsentIntrusionBlockReadsNothing(t *testing.T) {
	// Header claims derived values only; the payload is far too short for a
	// full intrusion block.
	payload := newTelegramBuilder().add(slotDerived, derivedBlock(100, 0, 1)).bytes()
	data, err := DecodeData(core.NewBuffer(payload))
	require.NoError(t, err)
	assert.True(t, data.Intrusion.IsEmpty)
	assert.Nil(t, data.Intrusion.Data)
}

func TestDeclaredBlockBeyondPayload(t *testing.T) {
	payload := newTelegramBuilder().
		add(slotDerived, derivedBlock(3, 0, 1)).
		ref(slotMeasurement, 200, 100).
		bytes()
	_, err := DecodeData(core.NewBuffer(payload))
	var de *core.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "measurement data", de.Block)
}

func TestMeasurementBeamCountExceedsBlock(t *testing.T) {
	m := measurementBlock(beam{distance: 1}, beam{distance: 2})
	binary.LittleEndian.PutUint32(m[0:], 50)
	payload := newTelegramBuilder().
		add(slotDerived, derivedBlock(3, 0, 1)).
		add(slotMeasurement, m).
		bytes()
	_, err := DecodeData(core.NewBuffer(payload))
	assert.True(t, errors.Is(err, core.ErrDecode))
}

func TestShortDerivedValuesBlock(t *testing.T) {
	payload := newTelegramBuilder().add(slotDerived, make([]byte, 8)).bytes()
	_, err := DecodeData(core.NewBuffer(payload))
	assert.True(t, errors.Is(err, core.ErrDecode))
}

func TestDecodeGeneralSystemState(t *testing.T) {
	gss := make([]byte, GeneralSystemStateSize)
	gss[0] = 0b00100101 // run mode, contamination warning, manipulation
	gss[1] = 0b00000011 // safe paths 0 and 1
	gss[3] = 0b00001000 // safe path 19
	gss[4] = 0b10000000 // non-safe path 7
	gss[9] = 0b00000100 // reset required path 18
	gss[10], gss[11], gss[12], gss[13] = 1, 2, 3, 4
	gss[15] = 0b10 // device error

	payload := newTelegramBuilder().add(slotSystemState, gss).bytes()
	data, err := DecodeData(core.NewBuffer(payload))
	require.NoError(t, err)

	s := data.GeneralSystemState
	assert.False(t, s.IsEmpty)
	assert.True(t, s.RunModeActive)
	assert.False(t, s.StandbyModeActive)
	assert.True(t, s.ContaminationWarning)
	assert.False(t, s.ContaminationError)
	assert.True(t, s.ManipulationStatus)
	require.Len(t, s.SafeCutOffPath, core.CutOffPathBits)
	assert.True(t, s.SafeCutOffPath[0])
	assert.True(t, s.SafeCutOffPath[1])
	assert.False(t, s.SafeCutOffPath[2])
	assert.True(t, s.SafeCutOffPath[19])
	assert.True(t, s.NonSafeCutOffPath[7])
	assert.True(t, s.ResetRequiredCutOffPath[18])
	assert.Equal(t, uint8(1), s.CurrentMonitoringCaseNoTable1)
	assert.Equal(t, uint8(4), s.CurrentMonitoringCaseNoTable4)
	assert.False(t, s.ApplicationError)
	assert.True(t, s.DeviceError)
}

func TestDecodeIntrusionData(t *testing.T) {
	intr := intrusionBlock(map[int][]byte{
		0:  {0b00000101, 0xFF},
		23: {0b10000000},
	})
	payload := newTelegramBuilder().
		add(slotDerived, derivedBlock(10, 0, 1)).
		add(slotIntrusion, intr).
		bytes()

	data, err := DecodeData(core.NewBuffer(payload))
	require.NoError(t, err)

	in := data.Intrusion
	require.False(t, in.IsEmpty)
	require.Len(t, in.Data, core.IntrusionFieldCount)

	// 2 bytes but only 10 beams
	first := in.Data[0]
	assert.Equal(t, uint32(2), first.Size)
	require.Len(t, first.Flags, 10)
	assert.Equal(t, []bool{true, false, true, false, false, false, false, false, true, true}, first.Flags)

	assert.Empty(t, in.Data[1].Flags)

	last := in.Data[23]
	require.Len(t, last.Flags, 8)
	assert.True(t, last.Flags[7])
}

func TestDecodeApplicationData(t *testing.T) {
	app := make([]byte, ApplicationDataSize)
	binary.LittleEndian.PutUint32(app[0:], 0xA)
	binary.LittleEndian.PutUint16(app[12:], 5)
	binary.LittleEndian.PutUint16(app[12+2*19:], 9)
	binary.LittleEndian.PutUint16(app[56:], uint16(math.MaxUint16)) // -1
	app[60] = 0b0101
	app[64] = 3
	binary.LittleEndian.PutUint32(app[116:], 0xF0)
	binary.LittleEndian.PutUint16(app[128:], 11)
	app[172] = 1
	app[174] = 0b100001
	app[175] = 0x3F
	binary.LittleEndian.PutUint16(app[176:], 300)
	binary.LittleEndian.PutUint16(app[184+2*19:], uint16(0x10000-250)) // -250
	binary.LittleEndian.PutUint32(app[224:], 0xFFFFF)

	payload := newTelegramBuilder().add(slotApplication, app).bytes()
	data, err := DecodeData(core.NewBuffer(payload))
	require.NoError(t, err)

	a := data.Application
	require.False(t, a.IsEmpty)
	assert.Equal(t, uint32(0xA), a.Inputs.UnsafeInputsSources)
	require.Len(t, a.Inputs.MonitoringCases, core.MonitoringCaseSlots)
	assert.Equal(t, uint16(5), a.Inputs.MonitoringCases[0])
	assert.Equal(t, uint16(9), a.Inputs.MonitoringCases[19])
	assert.Equal(t, int16(-1), a.Inputs.LinearVelocity0)
	assert.True(t, a.Inputs.LinearVelocity0Valid)
	assert.False(t, a.Inputs.LinearVelocity1Valid)
	assert.True(t, a.Inputs.LinearVelocity0TransmittedSafely)
	assert.Equal(t, uint8(3), a.Inputs.SleepModeInput)

	assert.Equal(t, uint32(0xF0), a.Outputs.EvalOut)
	assert.Equal(t, uint16(11), a.Outputs.MonitoringCases[0])
	assert.Equal(t, uint8(1), a.Outputs.SleepModeOutput)
	assert.True(t, a.Outputs.HostErrorFlagContaminationWarning)
	assert.True(t, a.Outputs.HostErrorFlagCriticalError)
	assert.False(t, a.Outputs.HostErrorFlagGlare)
	assert.Equal(t, uint8(0x3F), a.Outputs.HostErrorFlagsValid)
	assert.Equal(t, int16(300), a.Outputs.LinearVelocity0)
	assert.Equal(t, int16(-250), a.Outputs.ResultingVelocities[19])
	assert.Equal(t, uint32(0xFFFFF), a.Outputs.ResultingVelocityFlags)
}

func TestShortApplicationBlock(t *testing.T) {
	payload := newTelegramBuilder().add(slotApplication, make([]byte, 100)).bytes()
	_, err := DecodeData(core.NewBuffer(payload))
	assert.True(t, errors.Is(err, core.ErrDecode))
}

func TestDecodedValuesDoNotAliasBuffer(t *testing.T) {
	raw := newTelegramBuilder().
		add(slotDerived, derivedBlock(1, 0, 1)).
		add(slotMeasurement, measurementBlock(beam{distance: 500, status: 1})).
		bytes()
	buf := core.NewBuffer(raw)
	data, err := DecodeData(buf)
	require.NoError(t, err)

	for i := range buf.Bytes() {
		buf.Bytes()[i] = 0
	}
	assert.Equal(t, uint16(500), data.Measurement.ScanPoints[0].Distance)
}
