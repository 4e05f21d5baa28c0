package adb

import (
	"context"
	"time"
)

// Client is the device-communication layer: device directory, package inventory and bulk
// state changes, all over one Runner and one DeviceCache.
type Client struct {
	runner *Runner
	cache  *DeviceCache
	opts   Options
}

// NewClient locates adb and fails with a ToolNotFoundError when it cannot.
func NewClient(opts Options) (*Client, error) {
	opts = opts.withDefaults()
	runner, err := NewRunner(opts)
	if err != nil {
		return nil, err
	}
	return &Client{
		runner: runner,
		cache:  NewDeviceCache(),
		opts:   opts,
	}, nil
}

func (self *Client) Runner() *Runner {
	return self.runner
}

func (self *Client) Cache() *DeviceCache {
	return self.cache
}

func (self *Client) shell(ctx context.Context, deviceID string, timeout time.Duration, args ...string) (string, string, error) {
	return self.runner.Run(ctx, append([]string{"shell"}, args...), timeout, deviceID)
}
