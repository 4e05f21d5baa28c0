package adb

import (
	"context"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// OpResult is the outcome of one enable/disable attempt.
type OpResult struct {
	Success bool
	Error   string
}

// BulkProgress is called after each package, in input order.
type BulkProgress func(pkg string, done int, total int)

type BulkOptions struct {
	// UserIDs to apply the change to. Empty means every profile on the device, or [0] if the
	// device reports none.
	UserIDs    []int
	OnProgress BulkProgress
}

// SetAppEnabled enables or disables pkg for one user profile.
//
// The exit code of `pm enable` / `pm disable-user` is not reliable, so success is read from the
// output: a state keyword means success, "error" or "exception" means failure, and anything else
// is assumed to be a success. That last rule is weak. Timeouts and command failures come back as
// a failed OpResult. The returned error is only set for kinds a retry cannot fix: a vanished
// device, a refused permission or a cancelled context.
func (self *Client) SetAppEnabled(ctx context.Context, id string, pkg string, userID int, enable bool) (OpResult, error) {
	args := []string{"pm", "disable-user", "--user", strconv.Itoa(userID), pkg}
	keyword := "disabled"
	if enable {
		args = []string{"pm", "enable", "--user", strconv.Itoa(userID), pkg}
		keyword = "enabled"
	}

	failMsg := ""
	output, err := bestEffort("set_app_enabled", "", func() (string, error) {
		stdout, stderr, err := self.shell(ctx, id, self.opts.HeavyTimeout, args...)
		if err != nil {
			failMsg = err.Error()
			return "", err
		}
		return stdout + stderr, nil
	}, ErrTimeout, ErrCommandFailed)
	if err != nil {
		return OpResult{Success: false, Error: err.Error()}, err
	}
	if failMsg != "" {
		return OpResult{Success: false, Error: failMsg}, nil
	}

	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, keyword) || strings.Contains(lower, "new state"):
		return OpResult{Success: true}, nil
	case strings.Contains(lower, "error") || strings.Contains(lower, "exception"):
		return OpResult{Success: false, Error: strings.TrimSpace(output)}, nil
	}
	return OpResult{Success: true}, nil
}

// BulkSetEnabled applies the change to every package, once per user profile, strictly in input
// order. A package succeeds only if every profile succeeded; the last failing profile's message
// is kept.
//
// There is no rollback. When a later profile fails, profiles already changed stay changed; the
// change is idempotent per profile, so the caller retries rather than undoes. If a
// non-recoverable error comes back (device gone, permission refused, context cancelled) the run
// stops there and the results gathered so far are returned with that error.
func (self *Client) BulkSetEnabled(ctx context.Context, id string, packages []string, enable bool, opts BulkOptions) (map[string]OpResult, error) {
	results := make(map[string]OpResult, len(packages))

	userIDs := opts.UserIDs
	if len(userIDs) == 0 {
		found, err := self.ListUsers(ctx, id)
		if err != nil {
			return results, err
		}
		userIDs = found
		if len(userIDs) == 0 {
			userIDs = []int{0}
		}
	}

	plog := log.WithFields(log.Fields{
		"id":     censorID(id),
		"action": ActionFor(enable).String(),
	})
	plog.WithFields(log.Fields{
		"type":     "bulk_start",
		"packages": len(packages),
		"users":    userIDs,
	}).Info("Bulk operation started")

	for i, pkg := range packages {
		agg := OpResult{Success: true}
		for _, userID := range userIDs {
			res, err := self.SetAppEnabled(ctx, id, pkg, userID, enable)
			if err != nil {
				results[pkg] = OpResult{Success: false, Error: err.Error()}
				plog.WithFields(log.Fields{
					"type":  "bulk_abort",
					"pkg":   pkg,
					"user":  userID,
					"kind":  kindOf(err),
					"error": err,
				}).Error("Bulk operation stopped")
				return results, err
			}
			if !res.Success {
				agg.Success = false
				agg.Error = res.Error
				plog.WithFields(log.Fields{
					"type":  "bulk_pkg_fail",
					"pkg":   pkg,
					"user":  userID,
					"error": res.Error,
				}).Warn("Package change failed for user")
			}
		}
		results[pkg] = agg
		if opts.OnProgress != nil {
			opts.OnProgress(pkg, i+1, len(packages))
		}
	}

	plog.WithFields(log.Fields{
		"type": "bulk_done",
	}).Info("Bulk operation finished")
	return results, nil
}
