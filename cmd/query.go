package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/safetyscanner/internal/scanner"
)

type queryFunc func(ctx context.Context, s *scanner.Scanner) (any, error)

func wrap[T any](f func(*scanner.Scanner, context.Context) (T, error)) queryFunc {
	return func(ctx context.Context, s *scanner.Scanner) (any, error) {
		return f(s, ctx)
	}
}

var queryChannel uint8

// queryItems maps item names to scanner requests.
var queryItems = map[string]queryFunc{
	"type-code":         wrap((*scanner.Scanner).RequestTypeCode),
	"device-name":       wrap((*scanner.Scanner).RequestDeviceName),
	"serial-number":     wrap((*scanner.Scanner).RequestSerialNumber),
	"order-number":      wrap((*scanner.Scanner).RequestOrderNumber),
	"firmware":          wrap((*scanner.Scanner).RequestFirmwareVersion),
	"application-name":  wrap((*scanner.Scanner).RequestApplicationName),
	"project-name":      wrap((*scanner.Scanner).RequestProjectName),
	"user-name":         wrap((*scanner.Scanner).RequestUserName),
	"config-metadata":   wrap((*scanner.Scanner).RequestConfigMetadata),
	"status-overview":   wrap((*scanner.Scanner).RequestStatusOverview),
	"device-status":     wrap((*scanner.Scanner).RequestDeviceStatus),
	"user-action":       wrap((*scanner.Scanner).RequestRequiredUserAction),
	"persistent-config": wrap((*scanner.Scanner).RequestPersistentConfig),
	"current-config":    wrap((*scanner.Scanner).RequestCurrentConfig),
	"fields":            wrap((*scanner.Scanner).RequestFieldData),
	"monitoring-cases":  wrap((*scanner.Scanner).RequestMonitoringCases),
	"latest-telegram": func(ctx context.Context, s *scanner.Scanner) (any, error) {
		return s.RequestLatestTelegram(ctx, queryChannel)
	},
}

// identityItems are queried by "info".
var identityItems = []string{
	"type-code", "device-name", "serial-number", "order-number", "firmware",
	"application-name", "project-name", "user-name", "device-status",
}

func queryItemNames() []string {
	names := make([]string, 0, len(queryItems))
	for name := range queryItems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var queryCmd = &cobra.Command{
	Use:   "query <item>...",
	Short: "Read variables from the scanner",
	Long: `Read one or more variables from the scanner over its command interface
and print them. "info" is shorthand for the identification items.

Items: info, ` + strings.Join(queryItemNames(), ", ") + `

Examples:
  safetyscanner query info
  safetyscanner query fields -o json
  safetyscanner query latest-telegram --channel 1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		logger := slog.Default()
		s := newScanner(cfg, logger)
		defer s.Close(context.Background())

		return runQuery(ctx, s, args, cmd.OutOrStdout(), outputFormat)
	},
}

func init() {
	queryCmd.Flags().Uint8Var(&queryChannel, "channel", 0, "UDP channel for latest-telegram")
	rootCmd.AddCommand(queryCmd)
}

// runQuery reads every item and renders them. A single item is printed on
// its own, several items as a map keyed by item name.
func runQuery(ctx context.Context, s *scanner.Scanner, items []string, w io.Writer, format string) error {
	var expanded []string
	for _, item := range items {
		if item == "info" {
			expanded = append(expanded, identityItems...)
			continue
		}
		if _, ok := queryItems[item]; !ok {
			return fmt.Errorf("unknown item %q (valid: info, %s)", item, strings.Join(queryItemNames(), ", "))
		}
		expanded = append(expanded, item)
	}

	results := make(map[string]any, len(expanded))
	for _, item := range expanded {
		v, err := queryItems[item](ctx, s)
		if err != nil {
			return fmt.Errorf("query %s: %w", item, err)
		}
		results[item] = v
	}

	if len(expanded) == 1 {
		return render(w, format, results[expanded[0]])
	}
	return render(w, format, results)
}
