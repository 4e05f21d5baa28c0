package main

import (
	"fmt"
	"os"
	"path/filepath"

	"app_freeze/adb"
)

func sanityChecks(config *Config) bool {
	if config.adbPath == "" {
		if !adb.CheckAvailable() {
			fmt.Fprintf(os.Stderr, "%s\n", (&adb.ToolNotFoundError{Name: "adb"}).Error())
			return false
		}
		return true
	}

	adbPath, _ := filepath.Abs(config.adbPath)
	fh, err := os.Stat(adbPath)
	if os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "%s does not exist. Fix bin_paths.adb in config.json\n", adbPath)
		return false
	}
	if err == nil && fh.IsDir() {
		fmt.Fprintf(os.Stderr, "%s is a directory. bin_paths.adb must point at the adb binary\n", adbPath)
		return false
	}
	return true
}
