package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

const DefaultDir = "reports"

// Writer renders reports as Markdown files under Dir.
type Writer struct {
	Dir string
}

func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = DefaultDir
	}
	return &Writer{Dir: dir}
}

// Filename is <device-id>-<YYYYMMDD-HHMMSS>.md.
func (self *Writer) Filename(rep *OperationReport) string {
	return fmt.Sprintf("%s-%s.md", rep.Device.ID, rep.Timestamp.Format("20060102-150405"))
}

// Write creates Dir if needed and writes the report, returning the file path.
func (self *Writer) Write(rep *OperationReport) (string, error) {
	if err := os.MkdirAll(self.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	path := filepath.Join(self.Dir, self.Filename(rep))
	if err := os.WriteFile(path, []byte(Markdown(rep)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	log.WithFields(log.Fields{
		"type":    "report_written",
		"path":    path,
		"report":  rep.ID.String(),
		"total":   rep.Total(),
		"success": rep.SuccessCount(),
		"failed":  rep.FailureCount(),
	}).Info("Wrote report")
	return path, nil
}

// Markdown renders rep. Optional device fields are omitted when empty.
func Markdown(rep *OperationReport) string {
	action := rep.Action.String()
	dev := rep.Device
	lines := []string{
		"# App Freeze Report: " + action,
		"",
		"**Generated:** " + rep.Timestamp.Format("2006-01-02 15:04:05"),
		"",
		"**Report ID:** " + rep.ID.String(),
		"",
	}
	if rep.Host != "" {
		lines = append(lines, "**Host:** "+rep.Host, "")
	}

	lines = append(lines, "## Device Information", "", "- **Device ID:** "+dev.ID)
	if name := dev.DisplayName(); name != "" {
		lines = append(lines, "- **Name:** "+name)
	}
	if dev.Manufacturer != "" {
		lines = append(lines, "- **Manufacturer:** "+dev.Manufacturer)
	}
	if dev.Model != "" {
		lines = append(lines, "- **Model:** "+dev.Model)
	}
	if dev.AndroidVersion != "" {
		lines = append(lines, "- **Android Version:** "+dev.AndroidVersion)
	}
	if dev.SDKLevel > 0 {
		lines = append(lines, fmt.Sprintf("- **SDK Level:** %d", dev.SDKLevel))
	}
	lines = append(lines, "")

	lines = append(lines,
		"## Summary",
		"",
		"- **Action:** "+action,
		fmt.Sprintf("- **Total Apps:** %d", rep.Total()),
		fmt.Sprintf("- **Successful:** %d", rep.SuccessCount()),
		fmt.Sprintf("- **Failed:** %d", rep.FailureCount()),
		"",
		"## Results",
		"",
		"| Status | Package Name | Error |",
		"|--------|-------------|-------|",
	)
	failures := []OperationResult{}
	for _, r := range rep.Results {
		status := "✓"
		if !r.Success {
			status = "✗"
			failures = append(failures, r)
		}
		lines = append(lines, fmt.Sprintf("| %s | %s | %s |", status, r.Package, cell(r.Error)))
	}
	lines = append(lines, "")

	if len(failures) > 0 {
		lines = append(lines, "## Failed Operations", "")
		for _, r := range failures {
			msg := r.Error
			if msg == "" {
				msg = "Unknown error"
			}
			lines = append(lines, "### "+r.Package, "", "**Error:** "+msg, "")
		}
	}
	return strings.Join(lines, "\n")
}

// cell keeps multi-line adb output from breaking the table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
