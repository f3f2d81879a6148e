package hpc

import (
	"bytes"
	"os/exec"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
)

// commandResult is the captured output of a subprocess invocation,
// mirroring run_command.py's output dict.
type commandResult struct {
	Stdout string
	Stderr string
}

// runCommand runs name with args, retrying failures up to attempts times
// with a fixed delay between tries. Grounded on run_command.py's num_retries/retry_delay_s
// pair; Slurm's squeue/sbatch calls use 6 retries at 10s (about a minute of
// tolerance for transient scheduler errors).
func runCommand(name string, args []string, attempts uint, delay time.Duration) (commandResult, error) {
	var res commandResult
	err := retry.Do(
		func() error {
			cmd := exec.Command(name, args...)
			var stdout, stderr bytes.Buffer
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr
			runErr := cmd.Run()
			res = commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
			if runErr != nil {
				return errors.Wrapf(runErr, "%s %s: %s", name, strings.Join(args, " "), res.Stderr)
			}
			return nil
		},
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
	)
	return res, err
}
