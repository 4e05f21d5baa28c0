package adb

import (
	"context"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Progress is called once per finished package in completion order, not input order.
type Progress func(pkg string, completed int, total int)

type ListAppsOptions struct {
	UserID        int
	IncludeSystem bool
	IncludeUser   bool
	FetchSizes    bool
	OnProgress    Progress
}

// DefaultListAppsOptions lists system and third-party apps for the owner profile, without sizes.
func DefaultListAppsOptions() ListAppsOptions {
	return ListAppsOptions{
		IncludeSystem: true,
		IncludeUser:   true,
	}
}

// ListPackages returns the union of system and third-party package names, deduplicated and sorted.
func (self *Client) ListPackages(ctx context.Context, id string, systemApps bool, userApps bool) ([]string, error) {
	seen := map[string]struct{}{}
	flags := []string{}
	if systemApps {
		flags = append(flags, "-s")
	}
	if userApps {
		flags = append(flags, "-3")
	}
	for _, flag := range flags {
		stdout, err := propagate("list_packages "+flag, func() (string, error) {
			out, _, err := self.shell(ctx, id, 0, "pm", "list", "packages", flag)
			return out, err
		})
		if err != nil {
			return nil, err
		}
		for _, pkg := range ParsePackageListing(stdout) {
			seen[pkg] = struct{}{}
		}
	}
	pkgs := make([]string, 0, len(seen))
	for pkg := range seen {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs, nil
}

// IsSystemApp asks the system package listing about pkg. Any failure answers false.
func (self *Client) IsSystemApp(ctx context.Context, id string, pkg string) bool {
	isSystem, _ := bestEffort("is_system_app", false, func() (bool, error) {
		out, _, err := self.shell(ctx, id, self.opts.PropTimeout, "pm", "list", "packages", "-s", pkg)
		if err != nil {
			return false, err
		}
		for _, name := range ParsePackageListing(out) {
			if name == pkg {
				return true, nil
			}
		}
		return false, nil
	})
	return isSystem
}

// AppSize returns the on-disk size of pkg's install directory in MB. Any failure,
// including an unresolved path, yields 0.
func (self *Client) AppSize(ctx context.Context, id string, pkg string) float64 {
	size, _ := bestEffort("app_size", 0.0, func() (float64, error) {
		out, _, err := self.shell(ctx, id, self.opts.PropTimeout, "pm", "path", pkg)
		if err != nil {
			return 0, err
		}
		dir, ok := ParsePackagePath(out)
		if !ok {
			return 0, nil
		}
		out, _, err = self.shell(ctx, id, self.opts.HeavyTimeout, "du", "-sh", dir)
		if err != nil {
			return 0, err
		}
		return ParseDiskUsage(out), nil
	})
	return size
}

// AppInfo builds the Application for pkg as seen by userID. The dumpsys query propagates its
// failure; the system flag and size fall back to defaults.
func (self *Client) AppInfo(ctx context.Context, id string, pkg string, userID int, fetchSize bool) (Application, error) {
	isSystem := self.IsSystemApp(ctx, id, pkg)

	stdout, err := propagate("dumpsys_package", func() (string, error) {
		out, _, err := self.shell(ctx, id, self.opts.HeavyTimeout, "dumpsys", "package", pkg)
		return out, err
	})
	if err != nil {
		return Application{}, err
	}
	meta := ParseDumpsysPackage(stdout, userID)

	app := Application{
		PackageName: pkg,
		IsSystem:    isSystem,
		IsEnabled:   meta.Enabled,
		VersionCode: meta.VersionCode,
		Label:       meta.Label,
	}
	if fetchSize {
		app.SizeMB = self.AppSize(ctx, id, pkg)
	}
	return app, nil
}

type appOutcome struct {
	pkg string
	app Application
	err error
}

// ListApps fetches every package's Application over a bounded pool. A package whose AppInfo
// fails is dropped from the result; the listing as a whole only fails if the package list
// itself cannot be read. The result is sorted by lower-cased package name.
func (self *Client) ListApps(ctx context.Context, id string, opts ListAppsOptions) ([]Application, error) {
	pkgs, err := self.ListPackages(ctx, id, opts.IncludeSystem, opts.IncludeUser)
	if err != nil {
		return nil, err
	}
	total := len(pkgs)
	apps := make([]Application, 0, total)
	if total == 0 {
		return apps, nil
	}

	workers := self.opts.Workers
	if workers > total {
		workers = total
	}

	// Tasks always return nil so one package's failure never cancels the rest.
	results := make(chan appOutcome)
	var pool errgroup.Group
	pool.SetLimit(workers)
	go func() {
		for _, pkg := range pkgs {
			pkg := pkg
			pool.Go(func() error {
				results <- self.fetchApp(ctx, id, pkg, opts)
				return nil
			})
		}
		pool.Wait()
		close(results)
	}()

	completed := 0
	dropped := 0
	for res := range results {
		completed++
		if opts.OnProgress != nil {
			opts.OnProgress(res.pkg, completed, total)
		}
		if res.err != nil {
			dropped++
			log.WithFields(log.Fields{
				"type":  "app_info_drop",
				"pkg":   res.pkg,
				"kind":  kindOf(res.err),
				"error": res.err,
			}).Debug("Dropping package from listing")
			continue
		}
		apps = append(apps, res.app)
	}

	sort.SliceStable(apps, func(i, j int) bool {
		a, b := strings.ToLower(apps[i].PackageName), strings.ToLower(apps[j].PackageName)
		if a == b {
			return apps[i].PackageName < apps[j].PackageName
		}
		return a < b
	})

	log.WithFields(log.Fields{
		"type":    "list_apps",
		"id":      censorID(id),
		"total":   total,
		"dropped": dropped,
	}).Info("Listed apps")

	if err := ctx.Err(); err != nil {
		return apps, err
	}
	return apps, nil
}

// fetchApp is the task boundary of the pool: a panic or error is reported as a drop.
func (self *Client) fetchApp(ctx context.Context, id string, pkg string, opts ListAppsOptions) (out appOutcome) {
	out.pkg = pkg
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"type":  "app_info_panic",
				"pkg":   pkg,
				"panic": r,
			}).Error("Package query panicked")
			out.err = ErrCommandFailed
		}
	}()
	out.app, out.err = self.AppInfo(ctx, id, pkg, opts.UserID, opts.FetchSizes)
	return out
}
