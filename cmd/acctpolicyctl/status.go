package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the demo world's current QoS and association ceilings",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	w := newWorld()
	fmt.Printf("%-10s %-16s %-16s %-16s\n", "KIND", "NAME", "GRP_CPUS", "GRP_USED_CPUS")
	fmt.Println("---------- ---------------- ---------------- ----------------")
	fmt.Printf("%-10s %-16s %-16d %-16d\n", "assoc", w.physics.Account, w.physics.Limits.GrpTRES[0], w.physics.Usage.GrpUsedTRES[0])
	fmt.Printf("%-10s %-16s %-16d %-16d\n", "qos", w.normal.Name, w.normal.Limits.GrpCPUs, w.normal.Usage.GrpUsedCPUs)
	fmt.Printf("partition %s: max_wall_min=%d default_qos=%s\n", w.batch.Name, w.batch.MaxWallMinutes, w.normal.Name)
}
