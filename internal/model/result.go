package model

import "time"

// JobStatus is the terminal state a Job reaches.
type JobStatus string

const (
	StatusFinished JobStatus = "finished"
	StatusMissing  JobStatus = "missing"
	StatusCanceled JobStatus = "canceled"
)

// JobResult is one append-only result row, matching the fixed CSV schema:
// name,job_id,return_code,status,exec_time_s,completion_time,batch_id,hpc_job_id,output_dir
type JobResult struct {
	Name           string    `json:"name" csv:"name"`
	JobID          int       `json:"job_id" csv:"job_id"`
	ReturnCode     int       `json:"return_code" csv:"return_code"`
	Status         JobStatus `json:"status" csv:"status"`
	ExecTimeSecond float64   `json:"exec_time_s" csv:"exec_time_s"`
	CompletionTime time.Time `json:"completion_time" csv:"completion_time"`
	BatchID        int       `json:"batch_id" csv:"batch_id"`
	HpcJobID       string    `json:"hpc_job_id" csv:"hpc_job_id"`
	OutputDir      string    `json:"output_dir" csv:"output_dir"`
}

// ResultCSVHeader is the fixed header row written to every results CSV.
var ResultCSVHeader = []string{
	"name", "job_id", "return_code", "status", "exec_time_s",
	"completion_time", "batch_id", "hpc_job_id", "output_dir",
}
