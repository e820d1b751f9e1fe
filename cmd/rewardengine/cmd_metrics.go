package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// metricsCmd prints a one-shot snapshot of the process's Prometheus
// metrics in text exposition format. There is no HTTP /metrics endpoint
// in this build (spec §1 Non-goals exclude the observability surface) —
// this subcommand is the operator-facing substitute, grounded on the
// teacher's cmd_health.go "--json vs text" dual rendering.
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print a snapshot of the process's Prometheus metrics",
	RunE:  runMetrics,
}

func runMetrics(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	families, err := rt.gatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		fmt.Println(mf.String())
	}
	return nil
}
