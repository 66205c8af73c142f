// Package collab defines the interfaces a host scheduler implements
// to plug the accounting policy engine into its own job lifecycle:
// association/partition resolution, priority-subsystem notification,
// and accounting-storage persistence. The engine calls the priority
// and storage hooks; the resolvers are for the host's own lookups
// before it hands records to the engine, which never calls them. The
// engine never implements the scheduling, priority, or storage logic
// behind these interfaces (spec.md section 1, Non-goals).
package collab

import (
	"time"

	"github.com/opentorque/acctpolicy/internal/assoc"
	"github.com/opentorque/acctpolicy/internal/partition"
)

// AssocResolver looks up (or lazily creates, on a storage-backed
// implementation) the association a job charges against, keyed by
// account name, partition name, and user id — mirroring the original
// engine's `assoc_mgr_fill_in_assoc` refill call.
type AssocResolver interface {
	Resolve(account, partitionName string, uid uint32) (*assoc.Association, error)
}

// PartitionResolver looks up a partition by name.
type PartitionResolver interface {
	Partition(name string) (*partition.Partition, error)
}

// PrioritySubsystem is notified when a job's accounting lifecycle
// reaches points the priority/fairshare subsystem cares about. The
// engine never computes priority itself (Non-goal); it only reports
// the event.
type PrioritySubsystem interface {
	// JobEnd is called after JobFini has reversed the job's usage,
	// giving the priority subsystem a chance to update decayed usage
	// accumulators (e.g. UsageRaw) from the just-finished job's
	// resource-seconds.
	JobEnd(assocID uint32, cpuSeconds uint64, finishedAt time.Time)
}

// AccountingStorage is notified of admission-relevant lifecycle events
// so a durable accounting-storage layer can persist them. The engine
// holds no database connection itself (Non-goal: persistence).
type AccountingStorage interface {
	// JobStartDirect records that a job began running, mirroring the
	// original's `jobacct_storage_g_job_start` direct-start path used
	// when a job is registered as already running (e.g. on recovery).
	JobStartDirect(jobID uint64, assocID uint32, startedAt time.Time) error
}

// NoopPrioritySubsystem discards every notification; the default when
// a deployment has no separate priority subsystem to inform.
type NoopPrioritySubsystem struct{}

func (NoopPrioritySubsystem) JobEnd(uint32, uint64, time.Time) {}

// NoopAccountingStorage discards every notification.
type NoopAccountingStorage struct{}

func (NoopAccountingStorage) JobStartDirect(uint64, uint32, time.Time) error { return nil }
