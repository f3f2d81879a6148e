package model

// HpcType identifies which HpcAdapter implementation a SubmissionGroup
// targets.
type HpcType string

const (
	HpcTypeSlurm HpcType = "slurm"
	HpcTypeFake  HpcType = "fake"
	HpcTypeLocal HpcType = "local"
)

// HpcConfig mirrors the [hpc] table of the TOML HPC config file, grounded
// on _examples/original_source/jade/models/hpc.py's
// HpcConfig/SlurmConfig/FakeHpcConfig/LocalHpcConfig union.
type HpcConfig struct {
	HpcType   HpcType `toml:"hpc_type" json:"hpc_type" validate:"required,oneof=slurm fake local"`
	JobPrefix string  `toml:"job_prefix" json:"job_prefix"`

	Account       string            `toml:"account" json:"account"`
	Walltime      string            `toml:"walltime" json:"walltime" validate:"required"`
	Partition     string            `toml:"partition" json:"partition,omitempty"`
	QOS           string            `toml:"qos" json:"qos,omitempty"`
	Mem           string            `toml:"mem" json:"mem,omitempty"`
	Tmp           string            `toml:"tmp" json:"tmp,omitempty"`
	Nodes         int               `toml:"nodes" json:"nodes,omitempty"`
	NTasks        int               `toml:"ntasks" json:"ntasks,omitempty"`
	NTasksPerNode int               `toml:"ntasks_per_node" json:"ntasks_per_node,omitempty"`
	Gres          string            `toml:"gres" json:"gres,omitempty"`
	Env           map[string]string `toml:"env" json:"env,omitempty"`

	// RetryAttempts/RetryBaseDelaySeconds configure HpcSubmitter's retry
	// policy. Zero means "use the package default".
	RetryAttempts         int `toml:"retry_attempts" json:"retry_attempts,omitempty"`
	RetryBaseDelaySeconds int `toml:"retry_base_delay_seconds" json:"retry_base_delay_seconds,omitempty"`
}

// SubmissionGroup is a named batching + HPC policy a Job may reference.
type SubmissionGroup struct {
	Name      string    `json:"name" validate:"required"`
	HpcConfig HpcConfig `json:"hpc_config"`

	// Exactly one of PerNodeBatchSize or TimeBasedBatching governs how
	// jobs are packed into a batch.
	PerNodeBatchSize  int  `json:"per_node_batch_size,omitempty"`
	TimeBasedBatching bool `json:"time_based_batching,omitempty"`

	// NumParallelProcessesPerNode defaults to the CPU count when zero;
	// see SubmissionGroup.ResolvedParallelism.
	NumParallelProcessesPerNode int `json:"num_parallel_processes_per_node,omitempty"`

	TryAddBlockedJobs bool `json:"try_add_blocked_jobs"`

	NodeSetupCommand    string `json:"node_setup_command,omitempty"`
	NodeTeardownCommand string `json:"node_teardown_command,omitempty"`

	// ResourceMonitorIntervalSeconds mirrors submitter_params.py's
	// resource_monitor_interval: how often the worker pool wakes its
	// resource-monitor task while a batch runs (zero disables it). The task
	// itself does no sampling.
	ResourceMonitorIntervalSeconds int `json:"resource_monitor_interval_seconds,omitempty"`

	// PollIntervalSeconds governs the worker pool's cancellation-flag poll
	// cadence. Must be identical across every group in a Configuration, same
	// as MaxNodes. The cluster lock is retried on its own fixed cadence.
	PollIntervalSeconds int `json:"poll_interval_seconds,omitempty"`

	MaxNodes int `json:"max_nodes,omitempty"`
}

// ResolvedParallelism returns NumParallelProcessesPerNode, defaulting to
// numCPU when unset.
func (g *SubmissionGroup) ResolvedParallelism(numCPU int) int {
	if g.NumParallelProcessesPerNode > 0 {
		return g.NumParallelProcessesPerNode
	}
	return numCPU
}

// SafetyMarginMinutes is the fixed margin time-based batching subtracts
// from walltime before packing.
const SafetyMarginMinutes = 5

// DefaultPollIntervalSeconds is the worker pool's default cancellation poll
// cadence; the cluster lock's retry cadence is fixed independently in
// internal/cluster.
const DefaultPollIntervalSeconds = 1

// DefaultGracePeriodSeconds is the default SIGTERM→SIGKILL grace window.
const DefaultGracePeriodSeconds = 30
