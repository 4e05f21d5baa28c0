package adb

import (
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Parsers for bridge command output. All of them are total: lines they do not understand are skipped.

// DeviceEntry is one parsed row of `adb devices -l`.
type DeviceEntry struct {
	ID    string
	State State
	Props map[string]string
}

// PackageMetadata is what `dumpsys package <pkg>` tells us about one user profile.
type PackageMetadata struct {
	Enabled     bool
	VersionCode int
	Label       string
}

var (
	userInfoRe    = regexp.MustCompile(`UserInfo\{(\d+):`)
	versionCodeRe = regexp.MustCompile(`\bversionCode=(\d+)`)
	userStateRe   = regexp.MustCompile(`\bUser (\d+):.*?\benabled=(\d+)`)
	labelRe       = regexp.MustCompile(`\b(?:nonLocalizedLabel|labelRes)=("[^"]*"|\S+)`)
)

func ParseConnectionState(token string) State {
	switch strings.ToLower(token) {
	case "device":
		return StateReady
	case "offline":
		return StateOffline
	case "unauthorized":
		return StateUnauthorized
	case "bootloader":
		return StateBootloader
	case "recovery":
		return StateRecovery
	case "sideload":
		return StateSideload
	}
	return StateUnknown
}

// ParseDeviceListing parses `adb devices -l`. Property values are returned raw; model names keep
// their underscores.
func ParseDeviceListing(text string) []DeviceEntry {
	entries := []DeviceEntry{}
	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		props := make(map[string]string)
		for _, part := range parts[2:] {
			key, value, ok := strings.Cut(part, ":")
			if !ok {
				continue
			}
			props[key] = value
		}
		entries = append(entries, DeviceEntry{
			ID:    parts[0],
			State: ParseConnectionState(parts[1]),
			Props: props,
		})
	}
	return entries
}

// ParseUserListing extracts user ids from `pm list users` in order of appearance.
func ParseUserListing(text string) []int {
	ids := []int{}
	for _, m := range userInfoRe.FindAllStringSubmatch(text, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// ParsePackageListing returns every `package:` line's value. No dedup, no sort.
func ParsePackageListing(text string) []string {
	pkgs := []string{}
	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, "package:"); ok && name != "" {
			pkgs = append(pkgs, name)
		}
	}
	return pkgs
}

// ParsePackagePath returns the install directory of the base APK listed by `pm path`.
// Split APK entries are ignored.
func ParsePackagePath(text string) (string, bool) {
	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		value, ok := strings.CutPrefix(line, "package:")
		if !ok || !strings.HasSuffix(value, "/base.apk") {
			continue
		}
		return path.Dir(value), true
	}
	return "", false
}

// ParseDumpsysPackage reads enabled state for userID, versionCode and label from
// `dumpsys package <pkg>`. A missing user line means enabled; states 0 (default) and 1 (enabled)
// count as enabled, anything else as disabled.
func ParseDumpsysPackage(text string, userID int) PackageMetadata {
	meta := PackageMetadata{Enabled: true}
	versionSeen := false
	enabledSeen := false
	for _, line := range splitLines(text) {
		if !versionSeen {
			if m := versionCodeRe.FindStringSubmatch(line); m != nil {
				if code, err := strconv.Atoi(m[1]); err == nil {
					meta.VersionCode = code
					versionSeen = true
				}
			}
		}
		if !enabledSeen {
			if m := userStateRe.FindStringSubmatch(line); m != nil {
				if id, err := strconv.Atoi(m[1]); err == nil && id == userID {
					state, _ := strconv.Atoi(m[2])
					meta.Enabled = state == 0 || state == 1
					enabledSeen = true
				}
			}
		}
		if meta.Label == "" {
			meta.Label = labelFrom(line)
		}
	}
	return meta
}

func labelFrom(line string) string {
	for _, m := range labelRe.FindAllStringSubmatch(line, -1) {
		value := strings.Trim(m[1], `"'`)
		if value == "" || value == "null" || strings.HasPrefix(value, "0x") {
			continue
		}
		return value
	}
	return ""
}

var sizeUnits = map[byte]float64{
	'K': 0.001,
	'M': 1,
	'G': 1024,
	'T': 1024 * 1024,
}

// ParseDiskUsage converts the first token of `du -sh` output to megabytes, rounded to 2 decimals.
// A bare number is taken as kilobytes. Anything unparseable yields 0.
func ParseDiskUsage(text string) float64 {
	lines := splitLines(text)
	if len(lines) == 0 {
		return 0
	}
	fields := strings.Fields(lines[0])
	if len(fields) == 0 {
		return 0
	}
	token := fields[0]
	mult := sizeUnits['K']
	last := strings.ToUpper(token[len(token)-1:])[0]
	if m, ok := sizeUnits[last]; ok {
		mult = m
		token = token[:len(token)-1]
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return math.Round(value*mult*100) / 100
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
