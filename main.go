package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	uc "github.com/nanoscopic/uclop/mod"
	log "github.com/sirupsen/logrus"

	"app_freeze/adb"
	"app_freeze/report"
)

func main() {
	uclop := uc.NewUclop()
	commonOpts := uc.OPTS{
		uc.OPT("-debug", "Use debug log level", uc.FLAG),
		uc.OPT("-warn", "Use warn log level", uc.FLAG),
		uc.OPT("-config", "Config file to use", 0),
		uc.OPT("-defaults", "Defaults config file to use", 0),
	}

	idOpts := append(uc.OPTS{}, commonOpts...)
	idOpts = append(idOpts,
		uc.OPT("-id", "Serial of device; optional when one device is attached", 0),
	)

	appsOpts := append(uc.OPTS{}, idOpts...)
	appsOpts = append(appsOpts,
		uc.OPT("-user", "User profile id to read enabled state for", 0),
		uc.OPT("-system", "Include system apps", uc.FLAG),
		uc.OPT("-third", "Include third-party apps", uc.FLAG),
		uc.OPT("-sizes", "Fetch on-disk size of each app", uc.FLAG),
	)

	changeOpts := append(uc.OPTS{}, idOpts...)
	changeOpts = append(changeOpts,
		uc.OPT("-pkgs", "Comma separated package names", uc.REQ),
		uc.OPT("-users", "Comma separated user profile ids; default all", 0),
		uc.OPT("-yes", "Apply without asking", uc.FLAG),
	)

	uclop.AddCmd("devices", "List attached devices", runDevices, commonOpts)
	uclop.AddCmd("info", "Show device details", runInfo, idOpts)
	uclop.AddCmd("users", "List user profiles on a device", runUsers, idOpts)
	uclop.AddCmd("apps", "List installed apps", runApps, appsOpts)
	uclop.AddCmd("disable", "Disable (freeze) apps", runDisable, changeOpts)
	uclop.AddCmd("enable", "Enable (unfreeze) apps", runEnable, changeOpts)
	uclop.AddCmd("cleanup", "Cleanup leftover adb processes", runCleanup, idOpts)

	uclop.Run()
}

func optString(cmd *uc.Cmd, name string) string {
	node := cmd.Get(name)
	if node == nil {
		return ""
	}
	return node.String()
}

func optBool(cmd *uc.Cmd, name string) bool {
	node := cmd.Get(name)
	if node == nil {
		return false
	}
	return node.Bool()
}

func common(cmd *uc.Cmd) *Config {
	setupLog(optBool(cmd, "-debug"), optBool(cmd, "-warn"))

	configPath := optString(cmd, "-config")
	if configPath == "" {
		configPath = "config.json"
	}
	defaultsPath := optString(cmd, "-defaults")
	if defaultsPath == "" {
		defaultsPath = "default.json"
	}

	config := NewConfig(configPath, defaultsPath)
	if id := optString(cmd, "-id"); id != "" {
		config.idList = []string{id}
	}
	return config
}

func newClient(config *Config) *adb.Client {
	if !sanityChecks(config) {
		fmt.Printf("Sanity checks failed. Exiting\n")
		os.Exit(1)
	}
	client, err := adb.NewClient(config.adbOptions())
	if err != nil {
		fail(err)
	}
	return client
}

func fail(err error) {
	log.WithFields(log.Fields{
		"type":  "cmd_err",
		"error": err,
	}).Debug("Command failed")
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	os.Exit(1)
}

func selectDevice(ctx context.Context, client *adb.Client, cmd *uc.Cmd) adb.Device {
	dev, err := client.SelectDevice(ctx, optString(cmd, "-id"))
	if err != nil {
		fail(err)
	}
	return dev
}

func runDevices(cmd *uc.Cmd) {
	config := common(cmd)
	client := newClient(config)

	devices, err := client.ListDevices(context.Background(), false)
	if err != nil {
		fail(err)
	}
	if len(devices) == 0 {
		fmt.Printf("No devices attached\n")
		return
	}
	for _, dev := range devices {
		fmt.Printf("%-24s %-14s %s\n", dev.ID, dev.State, dev.Model)
	}
}

func runInfo(cmd *uc.Cmd) {
	config := common(cmd)
	client := newClient(config)
	ctx := context.Background()

	dev := selectDevice(ctx, client, cmd)
	dev, err := client.DeviceInfo(ctx, dev.ID, true)
	if err != nil {
		fail(err)
	}
	fmt.Printf("ID:              %s\n", dev.ID)
	fmt.Printf("State:           %s\n", dev.State)
	fmt.Printf("Name:            %s\n", dev.DisplayName())
	fmt.Printf("Manufacturer:    %s\n", dev.Manufacturer)
	fmt.Printf("Model:           %s\n", dev.Model)
	fmt.Printf("Android version: %s\n", dev.AndroidVersion)
	fmt.Printf("SDK level:       %d\n", dev.SDKLevel)
}

func runUsers(cmd *uc.Cmd) {
	config := common(cmd)
	client := newClient(config)
	ctx := context.Background()

	dev := selectDevice(ctx, client, cmd)
	users, err := client.ListUsers(ctx, dev.ID)
	if err != nil {
		fail(err)
	}
	for _, id := range users {
		fmt.Printf("%d\n", id)
	}
}

func runApps(cmd *uc.Cmd) {
	config := common(cmd)
	client := newClient(config)
	ctx := context.Background()

	dev := selectDevice(ctx, client, cmd)

	userID := 0
	if s := optString(cmd, "-user"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			fail(fmt.Errorf("invalid -user %q", s))
		}
		userID = n
	}
	system := optBool(cmd, "-system")
	third := optBool(cmd, "-third")
	if !system && !third {
		system, third = true, true
	}

	listOpts := adb.DefaultListAppsOptions()
	listOpts.UserID = userID
	listOpts.IncludeSystem = system
	listOpts.IncludeUser = third
	listOpts.FetchSizes = optBool(cmd, "-sizes")
	listOpts.OnProgress = func(pkg string, completed int, total int) {
		fmt.Fprintf(os.Stderr, "\r%d/%d", completed, total)
	}
	apps, err := client.ListApps(ctx, dev.ID, listOpts)
	fmt.Fprintf(os.Stderr, "\n")
	if err != nil {
		fail(err)
	}

	for _, app := range apps {
		state := "enabled"
		if !app.IsEnabled {
			state = "disabled"
		}
		kind := "user"
		if app.IsSystem {
			kind = "system"
		}
		fmt.Printf("%-9s %-7s %10.2fMB  %s (%s)\n", state, kind, app.SizeMB, app.PackageName, app.DisplayName())
	}
}

func runDisable(cmd *uc.Cmd) {
	runChange(cmd, adb.ActionDisable)
}

func runEnable(cmd *uc.Cmd) {
	runChange(cmd, adb.ActionEnable)
}

func runChange(cmd *uc.Cmd, action adb.AppAction) {
	config := common(cmd)

	pkgs := splitList(optString(cmd, "-pkgs"))
	if len(pkgs) == 0 {
		fail(errors.New("no packages given"))
	}
	userIDs := []int{}
	for _, s := range splitList(optString(cmd, "-users")) {
		n, err := strconv.Atoi(s)
		if err != nil {
			fail(fmt.Errorf("invalid user id %q", s))
		}
		userIDs = append(userIDs, n)
	}

	client := newClient(config)
	ctx := context.Background()
	dev := selectDevice(ctx, client, cmd)
	if full, err := client.DeviceInfo(ctx, dev.ID, false); err == nil {
		dev = full
	}

	if !optBool(cmd, "-yes") {
		fmt.Printf("%s %d app(s) on %s:\n", action, len(pkgs), dev.DisplayName())
		for _, pkg := range pkgs {
			fmt.Printf("  %s\n", pkg)
		}
		fmt.Printf("Rerun with -yes to apply\n")
		return
	}

	config.idList = []string{dev.ID}
	coro_sigterm(config, action.String())

	results, err := client.BulkSetEnabled(ctx, dev.ID, pkgs, action == adb.ActionEnable, adb.BulkOptions{
		UserIDs: userIDs,
		OnProgress: func(pkg string, done int, total int) {
			fmt.Printf("[%d/%d] %s\n", done, total, pkg)
		},
	})

	rep := report.NewReport(dev, action, results, pkgs)
	path, werr := report.NewWriter(config.reportsDir).Write(rep)
	if werr != nil {
		log.WithFields(log.Fields{
			"type":  "report_err",
			"error": werr,
		}).Error("Could not write report")
	} else {
		fmt.Printf("%d succeeded, %d failed. Report: %s\n", rep.SuccessCount(), rep.FailureCount(), path)
	}

	if err != nil {
		fail(err)
	}
	if werr != nil || rep.FailureCount() > 0 {
		os.Exit(1)
	}
}

func runCleanup(cmd *uc.Cmd) {
	config := common(cmd)
	cleanup_procs(config)
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setupLog(debug bool, warn bool) {
	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: true,
	})
	log.SetOutput(os.Stdout)
	if debug {
		log.SetLevel(log.DebugLevel)
	} else if warn {
		log.SetLevel(log.WarnLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
