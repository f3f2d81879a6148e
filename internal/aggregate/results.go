// Package aggregate synchronizes per-job results into a shared CSV and
// rolls them up into completion summaries. Grounded on
// _examples/original_source/jade/jobs/results_aggregator.py's
// ResultsAggregator.
package aggregate

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/gofrs/flock"

	"github.com/NREL/jade/internal/model"
)

// ResultsFile synchronizes appends to one run's results.csv across every
// worker process on a node, using the same lock-per-operation discipline
// as the rest of the cluster coordination.
type ResultsFile struct {
	path     string
	lockPath string
	timeout  time.Duration
}

func NewResultsFile(path string, timeout time.Duration) *ResultsFile {
	return &ResultsFile{path: path, lockPath: path + ".lock", timeout: timeout}
}

// Create writes the header row. Callers must not call this if the file
// already exists from a prior run.
func (r *ResultsFile) Create() error {
	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	return w.Write(model.ResultCSVHeader)
}

// Append adds one result row under the file lock.
func (r *ResultsFile) Append(result model.JobResult) error {
	lock := flock.New(r.lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring results lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("timed out after %s waiting for results lock %s", r.timeout, r.lockPath)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	return w.Write(resultToRow(result))
}

// ReadAll returns every result row currently in the file.
func (r *ResultsFile) ReadAll() ([]model.JobResult, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("opening results file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading results file: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	results := make([]model.JobResult, 0, len(rows)-1)
	for _, row := range rows[1:] {
		result, err := rowToResult(row)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Finalize writes results.txt and errors.txt under dir from the full
// completed result set, the summarize-at-completion half of
// results_aggregator.py's ResultsAggregator (Append/ReadAll above cover
// the per-job streaming half). Called once, when a run's last job
// reaches a terminal state.
func Finalize(dir string, results []model.JobResult) error {
	if err := writeResultsSummary(filepath.Join(dir, "results.txt"), results); err != nil {
		return fmt.Errorf("writing results.txt: %w", err)
	}
	if err := writeErrorsSummary(filepath.Join(dir, "errors.txt"), results); err != nil {
		return fmt.Errorf("writing errors.txt: %w", err)
	}
	return nil
}

func writeResultsSummary(path string, results []model.JobResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := tabwriter.NewWriter(f, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "index\tname\treturn_code\tstatus\texec_time_s\tcompletion_time\tbatch_id\thpc_job_id")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t%d\t%s\n",
			i, r.Name, r.ReturnCode, r.Status,
			strconv.FormatFloat(r.ExecTimeSecond, 'f', 3, 64),
			r.CompletionTime.UTC().Format(time.RFC3339),
			r.BatchID, r.HpcJobID,
		)
	}
	return w.Flush()
}

// writeErrorsSummary lists the failed-job identifiers and a pointer to
// each one's captured stderr, standing in for the structured error-event
// extraction results_aggregator.py does against each job's log text.
func writeErrorsSummary(path string, results []model.JobResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	failed := 0
	for _, r := range results {
		if r.Status == model.StatusFinished && r.ReturnCode == 0 {
			continue
		}
		failed++
		fmt.Fprintf(f, "job_id=%d name=%s status=%s return_code=%d batch_id=%d stderr=%s\n",
			r.JobID, r.Name, r.Status, r.ReturnCode, r.BatchID,
			filepath.Join("job-stdio", r.Name+".e"),
		)
	}
	if failed == 0 {
		fmt.Fprintln(f, "no failed or missing jobs")
	}
	return nil
}

func resultToRow(r model.JobResult) []string {
	return []string{
		r.Name,
		strconv.Itoa(r.JobID),
		strconv.Itoa(r.ReturnCode),
		string(r.Status),
		strconv.FormatFloat(r.ExecTimeSecond, 'f', -1, 64),
		r.CompletionTime.UTC().Format(time.RFC3339),
		strconv.Itoa(r.BatchID),
		r.HpcJobID,
		r.OutputDir,
	}
}

func rowToResult(row []string) (model.JobResult, error) {
	if len(row) != len(model.ResultCSVHeader) {
		return model.JobResult{}, fmt.Errorf("expected %d fields, got %d", len(model.ResultCSVHeader), len(row))
	}
	jobID, err := strconv.Atoi(row[1])
	if err != nil {
		return model.JobResult{}, fmt.Errorf("parsing job_id: %w", err)
	}
	returnCode, err := strconv.Atoi(row[2])
	if err != nil {
		return model.JobResult{}, fmt.Errorf("parsing return_code: %w", err)
	}
	execTime, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return model.JobResult{}, fmt.Errorf("parsing exec_time_s: %w", err)
	}
	completionTime, err := time.Parse(time.RFC3339, row[5])
	if err != nil {
		return model.JobResult{}, fmt.Errorf("parsing completion_time: %w", err)
	}
	batchID, err := strconv.Atoi(row[6])
	if err != nil {
		return model.JobResult{}, fmt.Errorf("parsing batch_id: %w", err)
	}
	return model.JobResult{
		Name:           row[0],
		JobID:          jobID,
		ReturnCode:     returnCode,
		Status:         model.JobStatus(row[3]),
		ExecTimeSecond: execTime,
		CompletionTime: completionTime,
		BatchID:        batchID,
		HpcJobID:       row[7],
		OutputDir:      row[8],
	}, nil
}
