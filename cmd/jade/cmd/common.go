package cmd

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NREL/jade/internal/aggregate"
	"github.com/NREL/jade/internal/cluster"
	"github.com/NREL/jade/internal/common/config"
	"github.com/NREL/jade/internal/common/logging"
	"github.com/NREL/jade/internal/hpc"
	"github.com/NREL/jade/internal/model"
)

// clusterLockTimeout bounds how long a submit-jobs/run-jobs process will
// wait for another node's submitter to release the cluster lock before
// giving up with ErrLockTimeout.
const clusterLockTimeout = 10 * time.Minute

// tryLockTimeout is used by try-submit-jobs, which must not block: if
// another node already holds the lock it should report that and exit
// cleanly rather than queue up behind it.
const tryLockTimeout = 2 * time.Second

const (
	configFileName  = "jade_config.json"
	resultsFileName = "results.csv"
)

func loadConfiguration(path string) (*model.Configuration, error) {
	var cfg model.Configuration
	if err := config.LoadJSON(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// buildAdapters instantiates one hpc.Adapter per distinct HpcType used
// across a Configuration's submission groups.
func buildAdapters(cfg *model.Configuration, log *logrus.Entry) (map[model.HpcType]hpc.Adapter, error) {
	adapters := make(map[model.HpcType]hpc.Adapter)
	for _, g := range cfg.SubmissionGroups {
		if _, ok := adapters[g.HpcConfig.HpcType]; ok {
			continue
		}
		adapter, err := hpc.New(g.HpcConfig.HpcType, log)
		if err != nil {
			return nil, err
		}
		adapters[g.HpcConfig.HpcType] = adapter
	}
	return adapters, nil
}

func forceLocal(cfg *model.Configuration) {
	for i := range cfg.SubmissionGroups {
		cfg.SubmissionGroups[i].HpcConfig.HpcType = model.HpcTypeLocal
	}
}

func outputConfigPath(output string) string    { return filepath.Join(output, configFileName) }
func outputResultsPath(output string) string   { return filepath.Join(output, resultsFileName) }
func outputLogPath(output, name string) string { return filepath.Join(output, name) }

// configID derives a stable identifier for a Configuration from its own
// contents, so a stale ClusterState left over from an unrelated run in the
// same output directory is detected rather than silently reused.
func configID(cfg *model.Configuration) string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func newClusterStore(output string, log *logrus.Entry) *cluster.Store {
	return cluster.New(output, clusterLockTimeout, log)
}

func newClusterStoreWithTimeout(output string, timeout time.Duration, log *logrus.Entry) *cluster.Store {
	return cluster.New(output, timeout, log)
}

func newResultsFile(output string) *aggregate.ResultsFile {
	return aggregate.NewResultsFile(outputResultsPath(output), clusterLockTimeout)
}

// setUpLogging configures the process-wide logrus instance and tees it to
// a file in the output directory, returning an Entry every command uses.
// Mirrors the (setup_logging(name, filename, ...) call every JADE CLI
// command makes.
func setUpLogging(output, name string, verbose bool) (*logrus.Entry, error) {
	logging.Configure(verbose)
	if _, err := logging.ConfigureFile(outputLogPath(output, name)); err != nil {
		return nil, err
	}
	return logrus.NewEntry(logrus.StandardLogger()), nil
}

func ensureOutputDir(output string) error {
	return os.MkdirAll(output, 0o755)
}
