package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pm-intelligence/internal/common/config"
	"pm-intelligence/pkg/registry"
)

type workerStatus struct {
	TaskType      string `json:"taskType"`
	DisplayName   string `json:"displayName"`
	Enabled       bool   `json:"enabled"`
	MaxJobsActive int    `json:"maxJobsActive"`
	Timeout       string `json:"timeout"`
}

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List the registered job workers and their configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry.Default()
		if err != nil {
			return err
		}

		var rows []workerStatus
		for _, taskType := range reg.TaskTypes() {
			act, _ := reg.Lookup(taskType)
			wc := cfg.GetWorkerConfig(taskType)
			rows = append(rows, workerStatus{
				TaskType:      taskType,
				DisplayName:   act.DisplayName,
				Enabled:       wc.Enabled,
				MaxJobsActive: wc.MaxJobsActive,
				Timeout:       config.GetDuration(wc.Timeout, act.TimeoutOr(0)).String(),
			})
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, rows)
		}
		for _, r := range rows {
			state := "disabled"
			if r.Enabled {
				state = "enabled"
			}
			fmt.Fprintf(out, "%-24s %-9s maxJobs %-3d timeout %-8s %s\n", r.TaskType, state, r.MaxJobsActive, r.Timeout, r.DisplayName)
		}
		return nil
	},
}
