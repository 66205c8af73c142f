package main

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opentorque/acctpolicy/internal/assoc"
	"github.com/opentorque/acctpolicy/internal/metrics"
	"github.com/opentorque/acctpolicy/internal/qos"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Run a job through the demo world, then expose its usage as Prometheus gauges",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":9100", "address to serve /metrics on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	w := newWorld()
	j := w.newJob(100, 4, 1, 1024)

	if d := w.engine.Validate(j); !d.Allow {
		w.recordValidate(j.ID, d)
		return fmt.Errorf("demo job rejected at validation: %s", d.Reason)
	}
	w.engine.AddJobSubmit(j)

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(
		func() []*qos.QoS { return []*qos.QoS{w.normal} },
		func() []*assoc.Association { return []*assoc.Association{w.root, w.physics} },
	))

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.WithField("addr", serveAddr).Info("serving accounting-policy metrics")
	return http.ListenAndServe(serveAddr, nil)
}
