package adb

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocmd "github.com/go-cmd/cmd"
	log "github.com/sirupsen/logrus"
)

// ExecResult is the captured outcome of one finished process.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs one process to completion. It returns ErrTimeout when the timeout fires and
// ctx.Err() when ctx ends first; in both cases the process has been stopped. A non-zero exit is
// not an error at this level.
type Executor interface {
	Execute(ctx context.Context, binary string, args []string, timeout time.Duration) (ExecResult, error)
}

// CmdExecutor is the go-cmd backed Executor.
type CmdExecutor struct{}

func (self CmdExecutor) Execute(ctx context.Context, binary string, args []string, timeout time.Duration) (ExecResult, error) {
	cmd := gocmd.NewCmdOptions(gocmd.Options{Buffered: true, Streaming: false}, binary, args...)
	statCh := cmd.Start()

	var expire <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}

	select {
	case status := <-statCh:
		res := ExecResult{
			Stdout:   joinLines(status.Stdout),
			Stderr:   joinLines(status.Stderr),
			ExitCode: status.Exit,
		}
		if status.Error != nil {
			return res, fmt.Errorf("exec %s: %w", binary, status.Error)
		}
		return res, nil
	case <-expire:
		stopCmd(cmd, binary)
		return ExecResult{ExitCode: -1}, ErrTimeout
	case <-ctx.Done():
		stopCmd(cmd, binary)
		return ExecResult{ExitCode: -1}, ctx.Err()
	}
}

func stopCmd(cmd *gocmd.Cmd, binary string) {
	if err := cmd.Stop(); err != nil {
		log.WithFields(log.Fields{
			"type":   "proc_stop_err",
			"binary": binary,
			"error":  err,
		}).Debug("Could not stop process")
	}
}

// go-cmd hands back output as lines with the newlines removed.
func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
