package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var finiWallMinutes uint64

var finiCmd = &cobra.Command{
	Use:   "fini",
	Short: "Run a demo job through submit/begin/fini and print the reversed usage",
	RunE:  runFini,
}

func init() {
	finiCmd.Flags().Uint64Var(&finiWallMinutes, "ran-min", 30, "simulated minutes the job ran before finishing")
	rootCmd.AddCommand(finiCmd)
}

func runFini(cmd *cobra.Command, args []string) error {
	w := newWorld()
	j := w.newJob(100, 4, 1, 1024)

	if d := w.engine.Validate(j); !d.Allow {
		return fmt.Errorf("job %d rejected at validation: %s", j.ID, d.Reason)
	}
	w.engine.AddJobSubmit(j)

	start := time.Now()
	w.engine.JobBegin(j, start)
	w.recordMutation(j.ID, "begin", fmt.Sprintf("cpus=%d", j.ReqCPUs))
	fmt.Printf("job %d began, assoc %s cpus in use=%d\n", j.ID, w.physics.Account, w.physics.Usage.GrpUsedTRES[0])

	end := start.Add(time.Duration(finiWallMinutes) * time.Minute)
	w.engine.JobFini(j, end)
	w.recordMutation(j.ID, "fini", fmt.Sprintf("ran_min=%d", finiWallMinutes))
	fmt.Printf("job %d finished, assoc %s cpus in use=%d (should be 0), wall_secs=%d\n",
		j.ID, w.physics.Account, w.physics.Usage.GrpUsedTRES[0], w.physics.Usage.GrpUsedWallSecs)
	return nil
}
