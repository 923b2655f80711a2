package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/insight/internal/config"
	"github.com/abelbrown/insight/internal/otel"
)

type eventFilter struct {
	tail   int
	follow bool
	kind   string
	level  string
	comp   string
	runID  string
	json   bool
}

var evFilter eventFilter

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the workflow event log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dataDir := dataDirFlag
		if dataDir == "" {
			dataDir = config.DataDir()
		}
		path := filepath.Join(dataDir, otel.EventsFile)

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("event log not found at %s (run the dashboard first): %w", path, err)
		}
		defer f.Close()

		out := cmd.OutOrStdout()
		lines, err := readTailLines(f, evFilter.tail, evFilter.match)
		for _, l := range lines {
			fmt.Fprintln(out, evFilter.format(l.ev, l.raw))
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if !evFilter.follow {
			return nil
		}
		return followEvents(cmd.Context(), f, out, evFilter)
	},
}

func init() {
	f := eventsCmd.Flags()
	f.IntVarP(&evFilter.tail, "tail", "n", 50, "number of recent events to show")
	f.BoolVarP(&evFilter.follow, "follow", "f", false, "keep printing new events")
	f.StringVar(&evFilter.kind, "kind", "", "event kind prefix (e.g. 'boxplot')")
	f.StringVar(&evFilter.level, "level", "", "minimum level: debug, info, warn, error")
	f.StringVar(&evFilter.comp, "comp", "", "component name")
	f.StringVar(&evFilter.runID, "run", "", "run id")
	f.BoolVar(&evFilter.json, "json", false, "print raw JSON lines")
}

// levelRank orders levels for --level filtering.
func levelRank(level otel.Level) int {
	switch level {
	case otel.LevelInfo:
		return 1
	case otel.LevelWarn:
		return 2
	case otel.LevelError:
		return 3
	default:
		return 0
	}
}

func (ef eventFilter) match(ev otel.Event) bool {
	if ef.kind != "" && !strings.HasPrefix(string(ev.Kind), ef.kind) {
		return false
	}
	if ef.level != "" && levelRank(ev.Level) < levelRank(otel.Level(ef.level)) {
		return false
	}
	if ef.comp != "" && ev.Comp != ef.comp {
		return false
	}
	if ef.runID != "" && !strings.HasPrefix(ev.RunID, ef.runID) {
		return false
	}
	return true
}

func (ef eventFilter) format(ev otel.Event, raw []byte) string {
	if ef.json {
		return string(raw)
	}
	lvl := strings.ToUpper(string(ev.Level))
	if lvl == "" {
		lvl = "?"
	}

	parts := []string{fmt.Sprintf("%s %-5s [%-4s] %-18s", ev.Time.Format("15:04:05.000"), lvl, ev.Comp, ev.Kind)}
	if ev.Msg != "" {
		parts = append(parts, "- "+ev.Msg)
	}
	if ev.Gen > 0 {
		parts = append(parts, fmt.Sprintf("gen=%d", ev.Gen))
	}
	if ev.RunID != "" {
		parts = append(parts, "run="+shortID(ev.RunID))
	}
	if ev.Algorithm != "" {
		parts = append(parts, "algo="+ev.Algorithm)
	}
	if len(ev.Features) > 0 {
		parts = append(parts, fmt.Sprintf("features=%q", strings.Join(ev.Features, ",")))
	}
	if ev.Feature != "" {
		parts = append(parts, fmt.Sprintf("feature=%q", ev.Feature))
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}
	return strings.Join(parts, " ")
}

// maxEventLine bounds a single JSONL record.
const maxEventLine = 256 * 1024

type parsedLine struct {
	ev  otel.Event
	raw []byte
}

// readTailLines returns the last n lines of r that decode and match. On a
// read error the lines gathered so far are returned with it.
func readTailLines(r io.Reader, n int, match func(otel.Event) bool) ([]parsedLine, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	var ring []parsedLine
	if n > 0 {
		ring = make([]parsedLine, 0, n)
	}

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 || n <= 0 {
			continue
		}
		var ev otel.Event
		if json.Unmarshal(raw, &ev) != nil || !match(ev) {
			continue
		}
		// scanner reuses its buffer
		line := parsedLine{ev: ev, raw: append([]byte(nil), raw...)}

		if len(ring) < n {
			ring = append(ring, line)
		} else {
			copy(ring, ring[1:])
			ring[n-1] = line
		}
	}
	return ring, scanner.Err()
}

// followEvents polls r for appended lines until ctx is done.
func followEvents(ctx context.Context, r io.Reader, w io.Writer, ef eventFilter) error {
	reader := bufio.NewReader(r)
	var pending []byte
	for {
		chunk, err := reader.ReadBytes('\n')
		pending = append(pending, chunk...)
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return err
		}

		line := trimLine(pending)
		pending = nil
		if len(line) == 0 {
			continue
		}
		var ev otel.Event
		if json.Unmarshal(line, &ev) != nil {
			continue
		}
		if ef.match(ev) {
			fmt.Fprintln(w, ef.format(ev, line))
		}
	}
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
