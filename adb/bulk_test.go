package adb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAppEnabledOutput(t *testing.T) {
	fx := newFakeExec().
		on("-s D shell pm disable-user --user 0 com.a", "Package com.a new state: disabled-user\n").
		on("-s D shell pm enable --user 0 com.a", "Package com.a new state: enabled\n").
		on("-s D shell pm disable-user --user 0 com.b", "java.lang.SecurityException: Shell cannot change component state\n").
		on("-s D shell pm disable-user --user 0 com.c", "\n").
		on("-s D shell pm enable --user 0 com.d", "Error: unknown package: com.d\n").
		fail("-s D shell pm disable-user --user 0 com.e", 255, "Failure [not installed for 0]").
		timeout("-s D shell pm disable-user --user 0 com.f")
	client := newTestClient(t, fx)
	ctx := context.Background()

	res, err := client.SetAppEnabled(ctx, "D", "com.a", 0, false)
	require.NoError(t, err)
	assert.Equal(t, OpResult{Success: true}, res)

	res, err = client.SetAppEnabled(ctx, "D", "com.a", 0, true)
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = client.SetAppEnabled(ctx, "D", "com.b", 0, false)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "java.lang.SecurityException: Shell cannot change component state", res.Error)

	// Silent output is counted as a success.
	res, err = client.SetAppEnabled(ctx, "D", "com.c", 0, false)
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = client.SetAppEnabled(ctx, "D", "com.d", 0, true)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown package")

	res, err = client.SetAppEnabled(ctx, "D", "com.e", 0, false)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "adb command failed (exit 255): Failure [not installed for 0]", res.Error)

	res, err = client.SetAppEnabled(ctx, "D", "com.f", 0, false)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")
}

func TestSetAppEnabledFatal(t *testing.T) {
	fx := newFakeExec().
		fail("-s D shell pm disable-user --user 0 com.a", 1, "error: device 'D' not found").
		fail("-s D shell pm disable-user --user 0 com.b", 1, "Permission denied")
	client := newTestClient(t, fx)

	res, err := client.SetAppEnabled(context.Background(), "D", "com.a", 0, false)
	assert.True(t, errors.Is(err, ErrDeviceDisconnected))
	assert.False(t, res.Success)
	assert.Equal(t, err.Error(), res.Error)

	_, err = client.SetAppEnabled(context.Background(), "D", "com.b", 0, false)
	assert.True(t, errors.Is(err, ErrPermissionDenied))
}

// profileDevice keeps per-user enabled state and lets individual profiles refuse changes.
type profileDevice struct {
	lock    sync.Mutex
	enabled map[string]bool
	refuse  map[int]string
}

func (self *profileDevice) key(user int, pkg string) string {
	return fmt.Sprintf("%d/%s", user, pkg)
}

func (self *profileDevice) handle(cmd string) (ExecResult, error, bool) {
	self.lock.Lock()
	defer self.lock.Unlock()

	var user int
	var pkg string
	switch {
	case strings.HasPrefix(cmd, "-s D shell pm disable-user "):
		fmt.Sscanf(strings.TrimPrefix(cmd, "-s D shell pm disable-user "), "--user %d %s", &user, &pkg)
		if msg, ok := self.refuse[user]; ok {
			return ExecResult{Stdout: msg + "\n"}, nil, true
		}
		self.enabled[self.key(user, pkg)] = false
		return ExecResult{Stdout: "Package " + pkg + " new state: disabled-user\n"}, nil, true
	case strings.HasPrefix(cmd, "-s D shell pm enable "):
		fmt.Sscanf(strings.TrimPrefix(cmd, "-s D shell pm enable "), "--user %d %s", &user, &pkg)
		if msg, ok := self.refuse[user]; ok {
			return ExecResult{Stdout: msg + "\n"}, nil, true
		}
		self.enabled[self.key(user, pkg)] = true
		return ExecResult{Stdout: "Package " + pkg + " new state: enabled\n"}, nil, true
	case strings.HasPrefix(cmd, "-s D shell dumpsys package "):
		pkg = strings.TrimPrefix(cmd, "-s D shell dumpsys package ")
		var b strings.Builder
		b.WriteString("    versionCode=1\n")
		for _, user := range []int{0, 10} {
			state := 1
			if on, ok := self.enabled[self.key(user, pkg)]; ok && !on {
				state = 3
			}
			fmt.Fprintf(&b, "    User %d: installed=true enabled=%d\n", user, state)
		}
		return ExecResult{Stdout: b.String()}, nil, true
	case cmd == "-s D shell pm list users":
		return ExecResult{Stdout: "Users:\n\tUserInfo{0:Owner:c13} running\n\tUserInfo{10:Work:1030} running\n"}, nil, true
	}
	return ExecResult{}, nil, false
}

func TestBulkPartialProfileFailure(t *testing.T) {
	dev := &profileDevice{
		enabled: map[string]bool{},
		refuse:  map[int]string{10: "Error: java.lang.IllegalArgumentException: Unknown package: com.x"},
	}
	fx := newFakeExec()
	fx.handle = dev.handle
	client := newTestClient(t, fx)
	ctx := context.Background()

	results, err := client.BulkSetEnabled(ctx, "D", []string{"com.x"}, false, BulkOptions{UserIDs: []int{0, 10}})
	require.NoError(t, err)
	require.Contains(t, results, "com.x")
	assert.False(t, results["com.x"].Success)
	assert.Contains(t, results["com.x"].Error, "Unknown package: com.x")

	// Profile 0 stays changed.
	app, err := client.AppInfo(ctx, "D", "com.x", 0, false)
	require.NoError(t, err)
	assert.False(t, app.IsEnabled)
	app, err = client.AppInfo(ctx, "D", "com.x", 10, false)
	require.NoError(t, err)
	assert.True(t, app.IsEnabled)
}

func TestBulkKeepsLastFailure(t *testing.T) {
	dev := &profileDevice{
		enabled: map[string]bool{},
		refuse: map[int]string{
			0:  "Error: first profile",
			10: "Error: second profile",
		},
	}
	fx := newFakeExec()
	fx.handle = dev.handle
	client := newTestClient(t, fx)

	results, err := client.BulkSetEnabled(context.Background(), "D", []string{"com.x"}, true, BulkOptions{UserIDs: []int{0, 10}})
	require.NoError(t, err)
	assert.Equal(t, OpResult{Success: false, Error: "Error: second profile"}, results["com.x"])
}

func TestBulkResolvesUsers(t *testing.T) {
	dev := &profileDevice{enabled: map[string]bool{}, refuse: map[int]string{}}
	fx := newFakeExec()
	fx.handle = dev.handle
	client := newTestClient(t, fx)

	results, err := client.BulkSetEnabled(context.Background(), "D", []string{"com.a", "com.b"}, false, BulkOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]OpResult{"com.a": {Success: true}, "com.b": {Success: true}}, results)
	assert.Equal(t, 1, fx.count("-s D shell pm list users"))
	assert.Equal(t, 2, fx.count("-s D shell pm disable-user --user 10"))
	assert.Equal(t, 2, fx.count("-s D shell pm disable-user --user 0"))
}

func TestBulkFallsBackToOwner(t *testing.T) {
	fx := newFakeExec().
		on("-s D shell pm list users", "Users:\n").
		on("-s D shell pm enable --user 0 com.a", "Package com.a new state: enabled\n")
	client := newTestClient(t, fx)

	results, err := client.BulkSetEnabled(context.Background(), "D", []string{"com.a"}, true, BulkOptions{})
	require.NoError(t, err)
	assert.True(t, results["com.a"].Success)
	assert.Equal(t, 1, fx.count("-s D shell pm enable"))
}

func TestBulkStopsOnDisconnect(t *testing.T) {
	fx := newFakeExec().
		on("-s D shell pm disable-user --user 0 com.a", "Package com.a new state: disabled-user\n").
		fail("-s D shell pm disable-user --user 0 com.b", 1, "error: device 'D' not found")
	client := newTestClient(t, fx)

	progress := []string{}
	results, err := client.BulkSetEnabled(context.Background(), "D", []string{"com.a", "com.b", "com.c"}, false, BulkOptions{
		UserIDs: []int{0},
		OnProgress: func(pkg string, done int, total int) {
			progress = append(progress, fmt.Sprintf("%s %d/%d", pkg, done, total))
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeviceDisconnected))
	assert.True(t, results["com.a"].Success)
	assert.False(t, results["com.b"].Success)
	assert.NotContains(t, results, "com.c")
	assert.Equal(t, 0, fx.count("-s D shell pm disable-user --user 0 com.c"))
	assert.Equal(t, []string{"com.a 1/3"}, progress)
}

func TestBulkProgressOrder(t *testing.T) {
	pkgs := []string{"com.z", "com.a", "com.m"}
	fx := newFakeExec()
	for _, pkg := range pkgs {
		fx.on("-s D shell pm enable --user 0 "+pkg, "Package "+pkg+" new state: enabled\n")
	}
	fx.on("-s D shell pm enable --user 0 com.a", "Error: nope\n")
	client := newTestClient(t, fx)

	progress := []string{}
	results, err := client.BulkSetEnabled(context.Background(), "D", pkgs, true, BulkOptions{
		UserIDs: []int{0},
		OnProgress: func(pkg string, done int, total int) {
			assert.Equal(t, 3, total)
			progress = append(progress, fmt.Sprintf("%s %d", pkg, done))
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"com.z 1", "com.a 2", "com.m 3"}, progress)
	assert.Len(t, results, 3)
	assert.False(t, results["com.a"].Success)
}
