package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"firestige.xyz/safetyscanner/internal/core"
)

// render writes v in the selected output format.
func render(w io.Writer, format string, v any) error {
	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("unsupported output format %q (must be yaml or json)", format)
}

// telegramSummary is the one-line view of a data telegram.
type telegramSummary struct {
	Channel        uint8  `json:"channel"`
	SequenceNumber uint32 `json:"sequence_number"`
	ScanNumber     uint32 `json:"scan_number"`
	Beams          int    `json:"beams"`
	Valid          int    `json:"valid"`
	MinDistance    uint16 `json:"min_distance"`
	RunMode        bool   `json:"run_mode"`
	MonitoringCase uint8  `json:"monitoring_case"`
}

func summarize(d core.Data) telegramSummary {
	s := telegramSummary{
		Channel:        d.Header.ChannelNumber,
		SequenceNumber: d.Header.SequenceNumber,
		ScanNumber:     d.Header.ScanNumber,
		Beams:          len(d.Measurement.ScanPoints),
		RunMode:        d.GeneralSystemState.RunModeActive,
		MonitoringCase: d.GeneralSystemState.CurrentMonitoringCaseNoTable1,
	}
	for _, p := range d.Measurement.ScanPoints {
		if !p.Valid {
			continue
		}
		if s.Valid == 0 || p.Distance < s.MinDistance {
			s.MinDistance = p.Distance
		}
		s.Valid++
	}
	return s
}

// writeSummary prints one telegram per line: JSON lines for json output,
// key=value text otherwise.
func writeSummary(w io.Writer, format string, d core.Data) error {
	s := summarize(d)
	if format == "json" {
		return json.NewEncoder(w).Encode(s)
	}
	_, err := fmt.Fprintf(w, "channel=%d seq=%d scan=%d beams=%d valid=%d min_distance=%d run_mode=%t case=%d\n",
		s.Channel, s.SequenceNumber, s.ScanNumber, s.Beams, s.Valid, s.MinDistance, s.RunMode, s.MonitoringCase)
	return err
}
