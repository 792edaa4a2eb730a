package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/garage-occupancy-service/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// WriteObservation writes a timestamped snapshot in the specified format
func WriteObservation(w io.Writer, obs domain.Observation, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, obs)
	case FormatText:
		fmt.Fprintf(w, "Observed at %s\n\n", obs.ObservedAt.Format(time.RFC3339))
		return writeSnapshotText(w, obs.Garages)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteSnapshot writes a snapshot in the specified format
func WriteSnapshot(w io.Writer, snapshot domain.Snapshot, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, snapshot)
	case FormatText:
		return writeSnapshotText(w, snapshot)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteCatalog writes the garage catalog in the specified format
func WriteCatalog(w io.Writer, catalog *domain.Catalog, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, catalog.Garages())
	case FormatText:
		t := newTable(w)
		t.AppendHeader(table.Row{"Garage", "Capacity"})
		for _, g := range catalog.Garages() {
			t.AppendRow(table.Row{g.Name, g.Capacity})
		}
		t.Render()
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeSnapshotText prints one row per garage sorted by name. Unknown open
// counts print as "-" and confirmed-full garages as "full".
func writeSnapshotText(w io.Writer, snapshot domain.Snapshot) error {
	if len(snapshot) == 0 {
		fmt.Fprintln(w, "No garages reported.")
		return nil
	}

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable(w)
	t.AppendHeader(table.Row{"Garage", "Total", "Open"})
	for _, name := range names {
		occ := snapshot[name]
		open := "-"
		switch {
		case occ.Full():
			open = "full"
		case occ.Known():
			open = strconv.Itoa(*occ.Open)
		}
		t.AppendRow(table.Row{name, occ.Total, open})
	}
	t.Render()
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}
