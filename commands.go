package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-gnutella/go-gnutella/lib/config"
	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/replay"
	"github.com/go-gnutella/go-gnutella/lib/router"
	"github.com/go-gnutella/go-gnutella/lib/util/time/monotonic"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// reasonsCmd lists the drop reasons
var reasonsCmd = &cobra.Command{
	Use:   "reasons",
	Short: "List drop reasons",
	Long:  `Display every drop reason with its stable name and display string.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := newTable()
		t.AppendHeader(table.Row{"#", "Name", "Description"})
		for _, r := range drop.All() {
			t.AppendRow(table.Row{int(r), r.Name(), r.String()})
		}
		t.Render()
		return nil
	},
}

var replayQuiet bool

var (
	acceptedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	droppedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle    = lipgloss.NewStyle().Faint(true)
)

// replayCmd submits a recorded capture
var replayCmd = &cobra.Command{
	Use:   "replay [capture.yaml]",
	Short: "Replay a capture through the engine",
	Long:  `Submit every frame of a capture file in order, then print the per-frame outcomes and the statistics.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(args[0])
	},
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Validate(config.ConfigFromViper()); err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(viper.AllSettings())
	},
}

func init() {
	replayCmd.Flags().BoolVarP(&replayQuiet, "quiet", "q", false, "only print the statistics")
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

func runReplay(path string) error {
	capture, err := replay.ReadCapture(path)
	if err != nil {
		return err
	}
	cfg, err := config.NewEngineConfigFromViper()
	if err != nil {
		return err
	}
	cfg.NTPServers = nil

	start := capture.Start
	if start.IsZero() {
		start = time.Now()
	}
	clock := monotonic.NewManual(start)
	engine, err := router.New(cfg, router.WithClock(clock))
	if err != nil {
		return err
	}
	defer engine.Close()

	outcomes := replay.NewPlayer(engine, clock).Play(capture)

	if !replayQuiet {
		t := newTable()
		t.AppendHeader(table.Row{"#", "Offset", "Conn", "Kind", "Outcome", "Deliveries"})
		for _, o := range outcomes {
			t.AppendRow(table.Row{o.Index, o.At.Sub(start), o.Conn.String(), kindColumn(o), outcomeColumn(o), o.Deliveries})
		}
		t.Render()
	}

	snap := engine.StatsSnapshot()
	names := make([]string, 0, len(snap))
	for name, v := range snap {
		if v > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	t := newTable()
	t.AppendHeader(table.Row{"Counter", "Count"})
	var total uint64
	for _, name := range names {
		t.AppendRow(table.Row{name, snap[name]})
		total += snap[name]
	}
	t.AppendFooter(table.Row{"Total", total})
	t.Render()
	return nil
}

func kindColumn(o replay.Outcome) string {
	if o.Disconnect {
		return "-"
	}
	return o.Kind.String()
}

func outcomeColumn(o replay.Outcome) string {
	switch {
	case o.Disconnect:
		return mutedStyle.Render("disconnect")
	case o.Accepted():
		return acceptedStyle.Render("accepted")
	default:
		return droppedStyle.Render(fmt.Sprintf("%s (%s)", o.Reason.Name(), o.Reason.String()))
	}
}
