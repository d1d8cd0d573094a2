// Package scanner is the driver facade: typed requests over a COLA2 session
// and a streaming context for the UDP data output.
package scanner

import (
	"context"
	"log/slog"
	"time"

	"firestige.xyz/safetyscanner/internal/cola2"
	"firestige.xyz/safetyscanner/internal/core"
)

// Scanner issues commands to one device. Like the session it wraps, it is
// not safe for concurrent use.
type Scanner struct {
	session *cola2.Session
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures a Scanner.
type Option func(*scannerOptions)

type scannerOptions struct {
	logger      *slog.Logger
	timeout     time.Duration
	sessionOpts []cola2.Option
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *scannerOptions) { o.logger = l }
}

// WithCommandTimeout bounds the wait for each reply.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *scannerOptions) { o.timeout = d }
}

// WithSessionOptions passes options to the underlying session.
func WithSessionOptions(opts ...cola2.Option) Option {
	return func(o *scannerOptions) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

// New creates a scanner talking over client. No connection is made until the
// first request.
func New(client cola2.StreamClient, opts ...Option) *Scanner {
	o := scannerOptions{logger: slog.Default(), timeout: cola2.DefaultCommandTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	sessionOpts := append([]cola2.Option{cola2.WithLogger(o.logger)}, o.sessionOpts...)
	return &Scanner{
		session: cola2.NewSession(client, sessionOpts...),
		logger:  o.logger.With("component", "scanner"),
		timeout: o.timeout,
	}
}

// Session exposes the underlying session.
func (s *Scanner) Session() *cola2.Session { return s.session }

// Close ends the session and disconnects.
func (s *Scanner) Close(ctx context.Context) error { return s.session.Close(ctx) }

func (s *Scanner) execute(ctx context.Context, cmd cola2.Command) error {
	return s.session.Execute(ctx, cmd, s.timeout)
}

// request runs the command built by newCmd and returns its output.
func request[T any, C cola2.Command](ctx context.Context, s *Scanner, newCmd func(*T) C) (T, error) {
	var out T
	err := s.execute(ctx, newCmd(&out))
	return out, err
}

// ChangeSensorSettings configures a UDP output channel of the device.
func (s *Scanner) ChangeSensorSettings(ctx context.Context, settings core.CommSettings) error {
	s.logger.Info("changing comm settings",
		"channel", settings.Channel,
		"host", settings.HostIP.String(),
		"port", settings.HostUDPPort,
		"features", settings.Features.String(),
		"start_angle", settings.StartAngle,
		"end_angle", settings.EndAngle)
	return s.execute(ctx, cola2.NewChangeCommSettingsCommand(settings))
}

// FindSensor makes the device display blink.
func (s *Scanner) FindSensor(ctx context.Context, blinkSeconds uint16) error {
	return s.execute(ctx, cola2.NewFindMeCommand(blinkSeconds))
}

func (s *Scanner) RequestTypeCode(ctx context.Context) (core.TypeCode, error) {
	tc, err := request(ctx, s, cola2.NewTypeCodeCommand)
	if err == nil {
		s.logger.Info("type code", "code", tc.Code, "interface", tc.InterfaceType.String(), "max_range", tc.MaxRange)
	}
	return tc, err
}

func (s *Scanner) RequestDeviceName(ctx context.Context) (core.DeviceName, error) {
	return request(ctx, s, cola2.NewDeviceNameCommand)
}

func (s *Scanner) RequestSerialNumber(ctx context.Context) (core.SerialNumber, error) {
	return request(ctx, s, cola2.NewSerialNumberCommand)
}

func (s *Scanner) RequestOrderNumber(ctx context.Context) (core.OrderNumber, error) {
	return request(ctx, s, cola2.NewOrderNumberCommand)
}

func (s *Scanner) RequestFirmwareVersion(ctx context.Context) (core.FirmwareVersion, error) {
	return request(ctx, s, cola2.NewFirmwareVersionCommand)
}

func (s *Scanner) RequestApplicationName(ctx context.Context) (core.ApplicationName, error) {
	return request(ctx, s, cola2.NewApplicationNameCommand)
}

func (s *Scanner) RequestProjectName(ctx context.Context) (core.ProjectName, error) {
	return request(ctx, s, cola2.NewProjectNameCommand)
}

func (s *Scanner) RequestUserName(ctx context.Context) (core.UserName, error) {
	return request(ctx, s, cola2.NewUserNameCommand)
}

func (s *Scanner) RequestConfigMetadata(ctx context.Context) (core.ConfigMetadata, error) {
	return request(ctx, s, cola2.NewConfigMetadataCommand)
}

func (s *Scanner) RequestStatusOverview(ctx context.Context) (core.StatusOverview, error) {
	return request(ctx, s, cola2.NewStatusOverviewCommand)
}

func (s *Scanner) RequestDeviceStatus(ctx context.Context) (core.DeviceStatus, error) {
	return request(ctx, s, cola2.NewDeviceStatusCommand)
}

func (s *Scanner) RequestRequiredUserAction(ctx context.Context) (core.RequiredUserAction, error) {
	return request(ctx, s, cola2.NewRequiredUserActionCommand)
}

func (s *Scanner) RequestPersistentConfig(ctx context.Context) (core.ConfigData, error) {
	return request(ctx, s, cola2.NewPersistentConfigCommand)
}

func (s *Scanner) RequestCurrentConfig(ctx context.Context) (core.ConfigData, error) {
	return request(ctx, s, cola2.NewCurrentConfigCommand)
}

// RequestLatestTelegram reads the most recent data telegram of a channel.
// Channels outside the device range fall back to channel 0.
func (s *Scanner) RequestLatestTelegram(ctx context.Context, channel uint8) (core.Data, error) {
	if channel >= cola2.MaxChannels {
		s.logger.Warn("channel out of range, using channel 0", "channel", channel, "max", cola2.MaxChannels-1)
		channel = 0
	}
	var data core.Data
	err := s.execute(ctx, cola2.NewLatestTelegramCommand(&data, channel))
	return data, err
}

// RequestFieldData enumerates the configured fields. Each field takes the
// start angle and beam resolution of the current measurement configuration.
// Field 0 holds contour data and may be invalid without ending the list.
func (s *Scanner) RequestFieldData(ctx context.Context) ([]core.FieldData, error) {
	cfg, err := s.RequestCurrentConfig(ctx)
	if err != nil {
		return nil, err
	}

	var fields []core.FieldData
	for i := range uint16(cola2.MaxFields) {
		var f core.FieldData
		if err := s.execute(ctx, cola2.NewFieldHeaderCommand(&f, i)); err != nil {
			return fields, err
		}
		if !f.IsValid {
			if i == 0 {
				continue
			}
			break
		}
		if err := s.execute(ctx, cola2.NewFieldGeometryCommand(&f, i)); err != nil {
			return fields, err
		}
		f.StartAngle = cfg.DerivedValues.StartAngle
		f.AngularBeamResolution = cfg.DerivedValues.AngularBeamResolution
		fields = append(fields, f)
	}
	s.logger.Debug("field data read", "fields", len(fields))
	return fields, nil
}

// RequestMonitoringCases enumerates monitoring cases until the first invalid
// one.
func (s *Scanner) RequestMonitoringCases(ctx context.Context) ([]core.MonitoringCaseData, error) {
	var cases []core.MonitoringCaseData
	for i := range uint16(cola2.MaxMonitoringCases) {
		var mc core.MonitoringCaseData
		if err := s.execute(ctx, cola2.NewMonitoringCaseCommand(&mc, i)); err != nil {
			return cases, err
		}
		if !mc.IsValid {
			break
		}
		cases = append(cases, mc)
	}
	return cases, nil
}
