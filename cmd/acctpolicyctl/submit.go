package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	submitUser  uint32
	submitCPUs  uint64
	submitNodes uint64
	submitMemMB uint64
	submitWall  uint64
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a job into the demo world and run admission validation",
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().Uint32Var(&submitUser, "uid", 100, "submitting user id")
	submitCmd.Flags().Uint64Var(&submitCPUs, "cpus", 4, "requested cpus")
	submitCmd.Flags().Uint64Var(&submitNodes, "nodes", 1, "requested nodes")
	submitCmd.Flags().Uint64Var(&submitMemMB, "mem-mb", 1024, "requested memory in MB")
	submitCmd.Flags().Uint64Var(&submitWall, "wall-min", 0, "requested wall time in minutes (0 = none)")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	w := newWorld()
	j := w.newJob(submitUser, submitCPUs, submitNodes, submitMemMB)
	j.ReqWallMin = submitWall

	token := uuid.New()
	d := w.engine.Validate(j)
	w.recordValidate(j.ID, d)
	if !d.Allow {
		fmt.Printf("job %d (submission %s) REJECTED: %s (%s)\n", j.ID, token, d.Reason, d.Desc)
		return nil
	}

	w.engine.AddJobSubmit(j)
	w.recordMutation(j.ID, "add_submit", fmt.Sprintf("cpus=%d nodes=%d", j.ReqCPUs, j.ReqNodes))
	fmt.Printf("job %d (submission %s) admitted, time_limit=%dmin\n", j.ID, token, j.TimeLimitMinutes)
	return nil
}
