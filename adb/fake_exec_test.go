package adb

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type response struct {
	res ExecResult
	err error
}

// fakeExec answers adb invocations from a table keyed by the space-joined argument list
// (including any "-s <id>" prefix). handle, when set, is consulted first.
type fakeExec struct {
	lock        sync.Mutex
	routes      map[string]response
	handle      func(cmd string) (ExecResult, error, bool)
	calls       []string
	delay       time.Duration
	inFlight    int
	maxInFlight int
}

func newFakeExec() *fakeExec {
	return &fakeExec{routes: make(map[string]response)}
}

func (self *fakeExec) on(cmd string, stdout string) *fakeExec {
	self.routes[cmd] = response{res: ExecResult{Stdout: stdout}}
	return self
}

func (self *fakeExec) fail(cmd string, exit int, stderr string) *fakeExec {
	self.routes[cmd] = response{res: ExecResult{ExitCode: exit, Stderr: stderr}}
	return self
}

func (self *fakeExec) timeout(cmd string) *fakeExec {
	self.routes[cmd] = response{res: ExecResult{ExitCode: -1}, err: ErrTimeout}
	return self
}

func (self *fakeExec) Execute(ctx context.Context, binary string, args []string, timeout time.Duration) (ExecResult, error) {
	cmd := strings.Join(args, " ")

	self.lock.Lock()
	self.calls = append(self.calls, cmd)
	self.inFlight++
	if self.inFlight > self.maxInFlight {
		self.maxInFlight = self.inFlight
	}
	delay := self.delay
	self.lock.Unlock()

	defer func() {
		self.lock.Lock()
		self.inFlight--
		self.lock.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if self.handle != nil {
		if res, err, ok := self.handle(cmd); ok {
			return res, err
		}
	}

	self.lock.Lock()
	r, ok := self.routes[cmd]
	self.lock.Unlock()
	if ok {
		return r.res, r.err
	}
	return ExecResult{ExitCode: 1, Stderr: "unknown command: " + cmd}, nil
}

func (self *fakeExec) count(prefix string) int {
	self.lock.Lock()
	defer self.lock.Unlock()
	n := 0
	for _, c := range self.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, fx *fakeExec) *Client {
	t.Helper()
	client, err := NewClient(Options{Path: "/fake/adb", Executor: fx})
	require.NoError(t, err)
	return client
}
