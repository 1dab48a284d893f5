package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"Facestab/internal/calc/facestab"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the built-in soil presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tγ [kN/m³]\tc [kPa]\tφ [°]\tDESCRIPTION")
		for _, p := range facestab.Presets() {
			fmt.Fprintf(w, "%s\t%.0f\t%.0f\t%.0f\t%s\n", p.Name, p.Ground.GammaKNM3, p.Ground.CohesionKPa, p.Ground.PhiDeg, p.Description)
		}
		return w.Flush()
	},
}
