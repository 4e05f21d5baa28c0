package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	si "github.com/elastic/go-sysinfo"
	log "github.com/sirupsen/logrus"
)

// coro_sigterm makes an interrupted bulk run clean up after itself. Packages already changed stay
// changed; the report is not written.
func coro_sigterm(config *Config, action string) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		do_shutdown(config, action)
	}()
}

func do_shutdown(config *Config, action string) {
	log.WithFields(log.Fields{
		"type":   "sigterm",
		"state":  "begun",
		"action": action,
	}).Warn("Interrupted; the operation may be partially applied")

	cleanup_procs(config)

	log.WithFields(log.Fields{
		"type":  "sigterm",
		"state": "done",
	}).Info("Shutdown finished")

	os.Exit(1)
}

type Aproc struct {
	pid  int
	args []string
}

func get_procs() []Aproc {
	procs := []Aproc{}
	all, err := si.Processes()
	if err != nil {
		log.WithFields(log.Fields{
			"type":  "proc_list_err",
			"error": err,
		}).Warn("Could not list processes")
		return procs
	}
	for _, proc := range all {
		info, err := proc.Info()
		if err != nil || len(info.Args) == 0 {
			continue
		}
		procs = append(procs, Aproc{pid: info.PID, args: info.Args})
	}
	return procs
}

// isLeftoverAdb picks out adb clients we may have spawned. The adb server itself is never a
// leftover. With ids set, only clients targeting one of them (`-s <id>`) match.
func isLeftoverAdb(args []string, adbPath string, ids []string) bool {
	if len(args) == 0 {
		return false
	}
	if adbPath != "" {
		if args[0] != adbPath && filepath.Base(args[0]) != filepath.Base(adbPath) {
			return false
		}
	} else if filepath.Base(args[0]) != "adb" {
		return false
	}
	for _, arg := range args[1:] {
		if arg == "fork-server" || arg == "server" || arg == "start-server" {
			return false
		}
	}
	if len(ids) == 0 {
		return true
	}
	for i := 1; i < len(args)-1; i++ {
		if args[i] != "-s" {
			continue
		}
		for _, id := range ids {
			if args[i+1] == id {
				return true
			}
		}
	}
	return false
}

func cleanup_procs(config *Config) {
	plog := log.WithFields(log.Fields{
		"type": "proc_cleanup",
	})

	ownPid := os.Getpid()
	var hangingPids []int
	for _, proc := range get_procs() {
		if proc.pid == ownPid || !isLeftoverAdb(proc.args, config.adbPath, config.idList) {
			continue
		}
		plog.WithFields(log.Fields{
			"proc": "adb",
			"pid":  proc.pid,
			"args": proc.args,
		}).Warn("Leftover adb - Sending SIGTERM")

		syscall.Kill(proc.pid, syscall.SIGTERM)
		hangingPids = append(hangingPids, proc.pid)
	}

	if len(hangingPids) == 0 {
		return
	}

	// Half a second to exit cleanly
	time.Sleep(time.Millisecond * 500)

	for _, pid := range hangingPids {
		if arg0, alive := procAlive(pid); alive {
			plog.WithFields(log.Fields{
				"arg0": arg0,
				"pid":  pid,
			}).Warn("Leftover Proc - Sending SIGKILL")
			syscall.Kill(pid, syscall.SIGKILL)
		}
	}

	// Up to 500ms for killed processes to vanish
	for i := 0; i < 5; i++ {
		time.Sleep(time.Millisecond * 100)
		allGone := true
		for _, pid := range hangingPids {
			if _, alive := procAlive(pid); alive {
				allGone = false
			}
		}
		if allGone {
			break
		}
	}

	for _, pid := range hangingPids {
		if arg0, alive := procAlive(pid); alive {
			plog.WithFields(log.Fields{
				"arg0": arg0,
				"pid":  pid,
			}).Error("Kill attempted and failed")
		}
	}
}

// procAlive errors out fetching info once the process has vanished.
func procAlive(pid int) (string, bool) {
	proc, err := si.Process(pid)
	if err != nil || proc == nil {
		return "", false
	}
	info, err := proc.Info()
	if err != nil {
		return "", false
	}
	arg0 := "unknown"
	if len(info.Args) > 0 {
		arg0 = info.Args[0]
	}
	return arg0, true
}
