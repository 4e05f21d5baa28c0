package adb

import "strings"

// adb has no structured error channel, so a failed exit is classified by sniffing stderr.
// This is best-effort. Keep every substring rule in this file.

type failure struct {
	args     []string
	deviceID string
	command  string
	exitCode int
	stderr   string
}

func classifyFailure(f failure) error {
	msg := strings.ToLower(f.stderr)

	if strings.Contains(msg, "device") &&
		(strings.Contains(msg, "not found") || strings.Contains(msg, "offline") || strings.Contains(msg, "disconnected")) {
		if f.deviceID != "" {
			return &DeviceDisconnectedError{DeviceID: f.deviceID}
		}
		return &DeviceNotFoundError{DeviceID: "unknown"}
	}

	if strings.Contains(msg, "permission denied") || strings.Contains(msg, "insufficient permissions") {
		op := f.args
		if len(op) > 2 {
			op = op[:2]
		}
		id := f.deviceID
		if id == "" {
			id = "unknown"
		}
		return &PermissionError{Operation: strings.Join(op, " "), DeviceID: id}
	}

	return &CommandError{Command: f.command, ExitCode: f.exitCode, Stderr: f.stderr}
}
