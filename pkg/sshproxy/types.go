// Package sshproxy implements the C3 component: long-lived SSH sessions
// to simulated devices via a vendor-neutral driver, with dual storage (a
// continuous buffer plus per-command job history) and adaptive
// synchronous/asynchronous command execution (spec §4.3). It is designed
// to run as its own process (cmd/gns3-sshproxy), mirroring the spec's
// "separate process on the simulator host"; the main gateway talks to it
// over HTTP via pkg/gns3proxyclient.
package sshproxy

import (
	"sync"
	"time"
)

// DeviceSpec describes how to reach and authenticate to a device (spec
// §4.3 configure operation).
type DeviceSpec struct {
	DeviceType string        `json:"device_type"`
	Host       string        `json:"host"`
	Port       int           `json:"port"`
	Username   string        `json:"username"`
	Password   string        `json:"password"`
	Secret     string        `json:"secret,omitempty"`
	KeyFile    string        `json:"key_file,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// JobStatus is a job's lifecycle state (spec §3: running -> {completed,
// failed, timed_out}, a one-way transition, spec §8 testable property 5).
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobTimedOut  JobStatus = "timed_out"
)

// Job is a single remote command invocation (spec §3). Its mutable fields
// (Status/Output/Error/FinishedAt/ExecutionTime) are written exactly once,
// by the goroutine that finishes it (job.go finishJob), but may be read
// concurrently by get_job_status polling; mu guards that handoff.
type Job struct {
	ID       string    `json:"id"`
	NodeName string    `json:"node_name"`
	Command  string    `json:"command"`

	mu            sync.Mutex
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	Status        JobStatus     `json:"status"`
	Output        string        `json:"output,omitempty"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time,omitempty"`
}

// Snapshot returns a copy of j's current fields, safe to serialize or read
// without racing the goroutine that may still be finishing it.
func (j *Job) Snapshot() Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	cp := *j
	cp.mu = sync.Mutex{}
	return cp
}

// FailureCategory classifies why an SSH connection attempt failed (spec
// §4.3: "authentication_failed, connection_refused, timeout,
// host_unreachable").
type FailureCategory string

const (
	FailureAuthentication   FailureCategory = "authentication_failed"
	FailureConnectionRefused FailureCategory = "connection_refused"
	FailureTimeout          FailureCategory = "timeout"
	FailureHostUnreachable  FailureCategory = "host_unreachable"
)

func suggestedAction(cat FailureCategory) string {
	switch cat {
	case FailureAuthentication:
		return "enable SSH and verify credentials via a console session before retrying"
	case FailureConnectionRefused:
		return "verify the device is listening on the configured SSH port"
	case FailureTimeout:
		return "verify network reachability and increase the configure timeout"
	case FailureHostUnreachable:
		return "verify the node's host address and that it is started"
	default:
		return ""
	}
}
