package adb

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Failure kinds. Every concrete error below matches exactly one of these with errors.Is.
var (
	ErrToolNotFound       = errors.New("adb not found")
	ErrTimeout            = errors.New("adb command timed out")
	ErrCommandFailed      = errors.New("adb command failed")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrDeviceDisconnected = errors.New("device disconnected")
	ErrPermissionDenied   = errors.New("permission denied")
)

type ToolNotFoundError struct {
	Name string
}

func (self *ToolNotFoundError) Error() string {
	name := self.Name
	if name == "" {
		name = "adb"
	}
	return fmt.Sprintf("%s not found. Install Android SDK platform-tools and ensure '%s' is in PATH.\n"+
		"macOS: brew install android-platform-tools\n"+
		"Linux: sudo apt install adb", name, name)
}

func (self *ToolNotFoundError) Is(target error) bool { return target == ErrToolNotFound }

// TimeoutError is returned when a subcommand exceeds its budget. The process is already killed.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (self *TimeoutError) Error() string {
	return fmt.Sprintf("adb command timed out after %s: %s", self.Timeout, self.Command)
}

func (self *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// CommandError is a non-zero exit that matched no more specific kind.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (self *CommandError) Error() string {
	detail := strings.TrimSpace(self.Stderr)
	if detail == "" {
		detail = self.Command
	}
	return fmt.Sprintf("adb command failed (exit %d): %s", self.ExitCode, detail)
}

func (self *CommandError) Is(target error) bool { return target == ErrCommandFailed }

// DeviceNotFoundError covers an absent or not-ready device, an empty ready list and an ambiguous
// auto-selection. Candidates is only set for the ambiguous case.
type DeviceNotFoundError struct {
	DeviceID   string
	Reason     string
	Candidates []string
}

func (self *DeviceNotFoundError) Error() string {
	if len(self.Candidates) > 0 {
		return fmt.Sprintf("multiple devices available (%d), specify a device id: %s",
			len(self.Candidates), strings.Join(self.Candidates, ", "))
	}
	if self.Reason != "" {
		return "device not found: " + self.Reason
	}
	return "device not found or disconnected: " + self.DeviceID
}

func (self *DeviceNotFoundError) Is(target error) bool { return target == ErrDeviceNotFound }

type DeviceDisconnectedError struct {
	DeviceID string
}

func (self *DeviceDisconnectedError) Error() string {
	return "device disconnected during operation: " + self.DeviceID
}

func (self *DeviceDisconnectedError) Is(target error) bool { return target == ErrDeviceDisconnected }

type PermissionError struct {
	Operation string
	DeviceID  string
}

func (self *PermissionError) Error() string {
	return fmt.Sprintf("permission denied for '%s' on device %s", self.Operation, self.DeviceID)
}

func (self *PermissionError) Is(target error) bool { return target == ErrPermissionDenied }

// kindOf names the failure kind of err for log fields.
func kindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrToolNotFound):
		return "tool_not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCommandFailed):
		return "command_failed"
	case errors.Is(err, ErrDeviceNotFound):
		return "device_not_found"
	case errors.Is(err, ErrDeviceDisconnected):
		return "device_disconnected"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	}
	return "other"
}
