package sshproxy

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// runJob executes command against s, recording a Job in history and
// mirroring the output into the continuous buffer (dual storage, spec
// §4.3). wait selects synchronous vs asynchronous execution (spec §4.3
// send_command: "adaptive synchronous/asynchronous execution"):
//
//   - wait > 0: block until the command completes or wait elapses, then
//     return the finished job.
//   - wait == 0: return immediately with a running job; the command
//     continues in the background up to readTimeout.
func runJob(s *session, history *jobHistory, command string, readTimeout, wait time.Duration, expectString string) *Job {
	j := &Job{
		ID:        uuid.NewString(),
		NodeName:  s.nodeName,
		Command:   command,
		StartedAt: time.Now(),
		Status:    JobRunning,
	}
	history.add(j)

	done := make(chan struct{})
	go func() {
		defer close(done)
		execTimeout := readTimeout
		if execTimeout == 0 {
			execTimeout = 60 * time.Second
		}
		out, matched := s.runCommand(command, execTimeout)
		finishJob(j, out, matched, expectString)
	}()

	if wait <= 0 {
		// Asynchronous: return the running job immediately; the goroutine
		// above finishes it in the background.
		return j
	}

	select {
	case <-done:
		return j
	case <-time.After(wait):
		// Synchronous caller's wait budget elapsed before completion; the
		// command keeps running in the background and the caller can poll
		// get_job_status. The job itself is not marked timed_out here —
		// that only happens if runCommand's own execTimeout elapses.
		return j
	}
}

func finishJob(j *Job, out string, matched bool, expectString string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	j.FinishedAt = &now
	j.ExecutionTime = now.Sub(j.StartedAt)
	j.Output = out

	switch {
	case !matched:
		j.Status = JobTimedOut
		j.Error = "timed out waiting for command prompt"
	case !matchesExpect(out, expectString):
		j.Status = JobFailed
		j.Error = "output did not match expect_string"
	default:
		j.Status = JobCompleted
	}
}

// runConfigSet executes a sequence of configuration commands synchronously
// (spec §4.3 send_config_set), entering and exiting config mode via the
// session's driver.
func runConfigSet(s *session, commands []string, timeout time.Duration) (string, error) {
	var out strings.Builder

	if s.driver.configEnterCmd != "" {
		enterOut, _ := s.runCommand(s.driver.configEnterCmd, timeout)
		out.WriteString(enterOut)
	}

	for _, cmd := range commands {
		cmdOut, ok := s.runCommand(cmd, timeout)
		out.WriteString(cmdOut)
		if !ok {
			return out.String(), errConfigTimeout
		}
	}

	if s.driver.configExitCmd != "" {
		exitOut, _ := s.runCommand(s.driver.configExitCmd, timeout)
		out.WriteString(exitOut)
	}

	return out.String(), nil
}

var errConfigTimeout = errTimeout{}

type errTimeout struct{}

func (errTimeout) Error() string { return "timed out waiting for configuration command prompt" }
