package adb

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 30 * time.Second
	PropTimeout    = 5 * time.Second
	HeavyTimeout   = 10 * time.Second
	MaxWorkers     = 8
)

// Options configures a Client.
type Options struct {
	// Path to the adb binary. Empty means search PATH.
	Path           string
	DefaultTimeout time.Duration
	PropTimeout    time.Duration
	HeavyTimeout   time.Duration
	// Workers bounds in-flight per-package queries in ListApps. Capped at MaxWorkers.
	Workers  int
	Executor Executor
}

func DefaultOptions() Options {
	return Options{
		DefaultTimeout: DefaultTimeout,
		PropTimeout:    PropTimeout,
		HeavyTimeout:   HeavyTimeout,
		Workers:        MaxWorkers,
	}
}

func (self Options) withDefaults() Options {
	if self.DefaultTimeout <= 0 {
		self.DefaultTimeout = DefaultTimeout
	}
	if self.PropTimeout <= 0 {
		self.PropTimeout = PropTimeout
	}
	if self.HeavyTimeout <= 0 {
		self.HeavyTimeout = HeavyTimeout
	}
	if self.Workers <= 0 || self.Workers > MaxWorkers {
		self.Workers = MaxWorkers
	}
	if self.Executor == nil {
		self.Executor = CmdExecutor{}
	}
	return self
}

// CheckAvailable reports whether adb can be found on PATH.
func CheckAvailable() bool {
	_, err := exec.LookPath("adb")
	return err == nil
}

func findAdb(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	found, err := exec.LookPath("adb")
	if err != nil {
		return "", &ToolNotFoundError{Name: "adb"}
	}
	return found, nil
}

// Runner invokes the bridge binary and turns its result into output or a classified failure.
type Runner struct {
	binary         string
	executor       Executor
	defaultTimeout time.Duration
}

func NewRunner(opts Options) (*Runner, error) {
	opts = opts.withDefaults()
	binary, err := findAdb(opts.Path)
	if err != nil {
		return nil, err
	}
	return &Runner{
		binary:         binary,
		executor:       opts.Executor,
		defaultTimeout: opts.DefaultTimeout,
	}, nil
}

func (self *Runner) Binary() string {
	return self.binary
}

// Run executes adb with args, targeting deviceID when it is not empty. A zero timeout uses the
// default. Output of a zero exit is returned untouched.
func (self *Runner) Run(ctx context.Context, args []string, timeout time.Duration, deviceID string) (string, string, error) {
	full := []string{}
	if deviceID != "" {
		full = append(full, "-s", deviceID)
	}
	full = append(full, args...)
	if timeout <= 0 {
		timeout = self.defaultTimeout
	}
	cmdline := self.binary + " " + strings.Join(full, " ")

	log.WithFields(log.Fields{
		"type":    "adb_run",
		"cmd":     cmdline,
		"timeout": timeout,
	}).Debug("Running adb")

	res, err := self.executor.Execute(ctx, self.binary, full, timeout)
	if err != nil {
		switch {
		case errors.Is(err, ErrTimeout):
			return "", "", &TimeoutError{Command: cmdline, Timeout: timeout}
		case ctx.Err() != nil:
			return "", "", fmt.Errorf("%s: %w", cmdline, ctx.Err())
		}
		// Could not start or was killed from outside; treat like any other failed exit.
		stderr := res.Stderr
		if stderr == "" {
			stderr = err.Error()
		}
		return "", "", classifyFailure(failure{
			args:     args,
			deviceID: deviceID,
			command:  cmdline,
			exitCode: res.ExitCode,
			stderr:   stderr,
		})
	}
	if res.ExitCode != 0 {
		ferr := classifyFailure(failure{
			args:     args,
			deviceID: deviceID,
			command:  cmdline,
			exitCode: res.ExitCode,
			stderr:   res.Stderr,
		})
		log.WithFields(log.Fields{
			"type": "adb_fail",
			"kind": kindOf(ferr),
			"exit": res.ExitCode,
			"cmd":  cmdline,
		}).Debug("adb exited non-zero")
		return res.Stdout, res.Stderr, ferr
	}
	return res.Stdout, res.Stderr, nil
}
