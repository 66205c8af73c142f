package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/opentorque/acctpolicy/internal/assoc"
	"github.com/opentorque/acctpolicy/internal/audit"
	"github.com/opentorque/acctpolicy/internal/config"
	"github.com/opentorque/acctpolicy/internal/engine"
	"github.com/opentorque/acctpolicy/internal/job"
	"github.com/opentorque/acctpolicy/internal/partition"
	"github.com/opentorque/acctpolicy/internal/qos"
)

// world is the fixed demo environment every subcommand operates
// against: one root account, one child account, a "normal" QoS, and a
// "batch" partition. A real deployment builds this from its
// accounting-storage collaborator instead of hardcoding it.
type world struct {
	engine  *engine.Engine
	audit   *audit.Logger
	jobs    *job.Manager
	root    *assoc.Association
	physics *assoc.Association
	normal  *qos.QoS
	batch   *partition.Partition
}

func newWorld() *world {
	root := assoc.New(1, "root", 0)
	physics := assoc.New(2, "physics", 0)
	physics.SetParent(root)
	physics.Limits.GrpJobs = 4
	physics.Limits.GrpTRES[0] = 32 // cpu

	normal := qos.New("normal")
	normal.Limits.MaxCPUsPerJob = 16
	normal.Limits.MaxWallPerJob = 240

	batch := partition.New("batch")
	batch.QOS = normal
	batch.MaxWallMinutes = 480

	cfg := config.New()
	e := engine.New(cfg, nil, nil)

	al, err := audit.NewLogger(cfg.AuditLogDir)
	if err != nil {
		log.WithError(err).Warn("audit logging disabled: could not open decision log")
	}

	return &world{
		engine:  e,
		audit:   al,
		jobs:    job.NewManager(),
		root:    root,
		physics: physics,
		normal:  normal,
		batch:   batch,
	}
}

// recordValidate logs an admission decision if audit logging is
// available; the demo CLI runs one job per process invocation, so
// there is no long-lived logger to close on exit.
func (w *world) recordValidate(jobID uint64, d engine.Decision) {
	if w.audit != nil {
		w.audit.RecordValidateDecision(jobID, d)
	}
}

func (w *world) recordRunnable(jobID uint64, stage string, d engine.Decision) {
	if w.audit != nil {
		w.audit.RecordRunnableDecision(jobID, stage, d)
	}
}

func (w *world) recordMutation(jobID uint64, op, detail string) {
	if w.audit != nil {
		w.audit.RecordMutation(jobID, op, detail)
	}
}

func (w *world) newJob(uid uint32, cpus, nodes, memMB uint64) *job.Job {
	id := w.jobs.NextJobID()
	j := job.New(id, uid, w.physics.Account, w.batch.Name, cpus, nodes, memMB)
	j.Assoc = w.physics
	j.QOS = w.normal
	j.Partition = w.batch
	w.jobs.Add(j)
	return j
}
