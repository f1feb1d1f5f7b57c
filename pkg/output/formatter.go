package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ritzau/circuit-index/pkg/circuit"
	"github.com/ritzau/circuit-index/pkg/model"
)

// PrintCircuitReport prints a colored summary of an indexed circuit
func PrintCircuitReport(w io.Writer, c *circuit.Circuit, exported string) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Fprintln(w, "Circuit Index Report")
	bold.Fprintln(w, "====================")
	if exported != "" {
		fmt.Fprintf(w, "Export: %s\n", exported)
	}
	fmt.Fprintln(w)

	bold.Fprintln(w, "NODE POPULATIONS:")
	for _, name := range c.NodeNames() {
		fmt.Fprintf(w, "  %-12s %6d nodes\n", name, c.Nodes[name].Size())
	}
	fmt.Fprintln(w)

	bold.Fprintln(w, "EDGE POPULATIONS:")
	for _, name := range c.EdgeNames() {
		ep := c.Edges[name]
		cyan.Fprintf(w, "  %s", name)
		fmt.Fprintf(w, " (%s -> %s, %d edges)\n", ep.Table.Source, ep.Table.Target, ep.Table.Len())

		for _, dir := range model.Directions {
			s := ep.Index.Get(dir).Stats()
			fmt.Fprintf(w, "    %-16s %6d nodes %6d ranges", dir, s.Nodes, s.Ranges)
			if s.EmptyNodes > 0 {
				yellow.Fprintf(w, "  %d without edges", s.EmptyNodes)
			}
			if s.MultiRangeNodes > 0 {
				fmt.Fprintf(w, "  %d split (max %d ranges)", s.MultiRangeNodes, s.MaxRangesPerNode)
			}
			fmt.Fprintln(w)
		}

		for _, a := range ep.Assemblies {
			yellow.Fprintf(w, "    recurrent assembly of %d nodes\n", len(a.Nodes))
		}
	}

	if len(c.Spikes) > 0 {
		fmt.Fprintln(w)
		bold.Fprintln(w, "SPIKE POPULATIONS:")
		for _, name := range c.SpikeNames() {
			sp := c.Spikes[name]
			fmt.Fprintf(w, "  %-12s %6d spikes over %d gids of %s\n", name, sp.Table.Len(), len(sp.GIDToRange), sp.Table.Population)
		}
	}

	fmt.Fprintln(w)
	green.Fprintf(w, "✓ %d edge populations indexed in both directions\n", len(c.Edges))
}
