package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	beginCPUs  uint64
	beginNodes uint64
	beginMemMB uint64
)

var beginCmd = &cobra.Command{
	Use:   "begin",
	Short: "Submit, validate, and immediately begin a demo job, printing its runnability and charged usage",
	RunE:  runBegin,
}

func init() {
	beginCmd.Flags().Uint64Var(&beginCPUs, "cpus", 4, "requested cpus")
	beginCmd.Flags().Uint64Var(&beginNodes, "nodes", 1, "requested nodes")
	beginCmd.Flags().Uint64Var(&beginMemMB, "mem-mb", 1024, "requested memory in MB")
	rootCmd.AddCommand(beginCmd)
}

func runBegin(cmd *cobra.Command, args []string) error {
	w := newWorld()
	j := w.newJob(100, beginCPUs, beginNodes, beginMemMB)

	if d := w.engine.Validate(j); !d.Allow {
		w.recordValidate(j.ID, d)
		fmt.Printf("job %d rejected at validation: %s\n", j.ID, d.Reason)
		return nil
	}
	w.engine.AddJobSubmit(j)

	if d := w.engine.JobRunnablePreSelect(j); !d.Allow {
		w.recordRunnable(j.ID, "pre_select", d)
		fmt.Printf("job %d not runnable: %s (%s)\n", j.ID, d.Reason, d.Desc)
		return nil
	}

	w.engine.JobBegin(j, time.Now())
	w.recordMutation(j.ID, "begin", fmt.Sprintf("cpus=%d nodes=%d mem_mb=%d", j.ReqCPUs, j.ReqNodes, j.ReqMemMB))
	fmt.Printf("job %d running: assoc %s charged cpus=%d nodes=%d, qos %s charged cpus=%d\n",
		j.ID, w.physics.Account, w.physics.Usage.GrpUsedTRES[0], w.physics.Usage.GrpUsedTRES[2],
		w.normal.Name, w.normal.Usage.GrpUsedCPUs)
	return nil
}
