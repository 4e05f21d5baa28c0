package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	uj "github.com/nanoscopic/ujsonin/v2/mod"
	log "github.com/sirupsen/logrus"

	"app_freeze/adb"
	"app_freeze/report"
)

type Config struct {
	adbPath        string
	defaultTimeout time.Duration
	propTimeout    time.Duration
	heavyTimeout   time.Duration
	workers        int
	reportsDir     string
	idList         []string
}

func builtinConfig() Config {
	return Config{
		defaultTimeout: adb.DefaultTimeout,
		propTimeout:    adb.PropTimeout,
		heavyTimeout:   adb.HeavyTimeout,
		workers:        adb.MaxWorkers,
		reportsDir:     report.DefaultDir,
	}
}

// NewConfig layers configPath over defaultsPath over the built-in values. Either file may be
// absent; a file that exists but does not parse is fatal.
func NewConfig(configPath string, defaultsPath string) *Config {
	config, err := loadConfig(configPath, defaultsPath)
	if err != nil {
		log.WithFields(log.Fields{
			"type":          "err_read_config",
			"error":         err,
			"config_path":   configPath,
			"defaults_path": defaultsPath,
		}).Fatal("Could not load config")
	}
	return config
}

func loadConfig(configPath string, defaultsPath string) (*Config, error) {
	config := builtinConfig()
	for _, path := range []string{defaultsPath, configPath} {
		root, err := readJSON(path)
		if err != nil {
			return nil, err
		}
		if root == nil {
			continue
		}
		config.apply(root)
	}
	return &config, nil
}

// readJSON returns nil, nil for a missing file. A directory is taken to hold config.json.
func readJSON(path string) (uj.JNode, error) {
	if path == "" {
		return nil, nil
	}
	fh, err := os.Stat(path)
	if os.IsNotExist(err) {
		log.WithFields(log.Fields{
			"type": "config_absent",
			"path": path,
		}).Debug("Config file not present; skipping")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	file := path
	if fh.Mode().IsDir() {
		file = fmt.Sprintf("%s/config.json", path)
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	root, _, perr := uj.ParseFull(content)
	if perr != nil {
		return nil, fmt.Errorf("parse %s: %+v", file, perr)
	}
	return root, nil
}

func (self *Config) apply(root uj.JNode) {
	if node := dig(root, "bin_paths", "adb"); node != nil {
		self.adbPath = node.String()
	}
	if node := dig(root, "timeouts", "default_sec"); node != nil {
		self.defaultTimeout = seconds(node.Int(), self.defaultTimeout)
	}
	if node := dig(root, "timeouts", "prop_sec"); node != nil {
		self.propTimeout = seconds(node.Int(), self.propTimeout)
	}
	if node := dig(root, "timeouts", "heavy_sec"); node != nil {
		self.heavyTimeout = seconds(node.Int(), self.heavyTimeout)
	}
	if node := dig(root, "workers"); node != nil {
		workers := node.Int()
		if workers > 0 && workers <= adb.MaxWorkers {
			self.workers = workers
		} else {
			log.WithFields(log.Fields{
				"type":    "config_workers",
				"workers": workers,
				"max":     adb.MaxWorkers,
			}).Warn("Ignoring out of range worker count")
		}
	}
	if node := dig(root, "reports_dir"); node != nil {
		if dir := strings.TrimSpace(node.String()); dir != "" {
			self.reportsDir = dir
		}
	}
}

func dig(root uj.JNode, keys ...string) uj.JNode {
	cur := root
	for _, key := range keys {
		if cur == nil {
			return nil
		}
		cur = cur.Get(key)
	}
	return cur
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func (self *Config) adbOptions() adb.Options {
	return adb.Options{
		Path:           self.adbPath,
		DefaultTimeout: self.defaultTimeout,
		PropTimeout:    self.propTimeout,
		HeavyTimeout:   self.heavyTimeout,
		Workers:        self.workers,
	}
}
