package adb

import (
	"context"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	propModel          = "ro.product.model"
	propManufacturer   = "ro.product.manufacturer"
	propAndroidVersion = "ro.build.version.release"
	propSDK            = "ro.build.version.sdk"
)

// ListDevices returns every device adb sees. With useCache, a cached record is reused when its
// connection state matches the fresh listing.
func (self *Client) ListDevices(ctx context.Context, useCache bool) ([]Device, error) {
	stdout, err := propagate("list_devices", func() (string, error) {
		out, _, err := self.runner.Run(ctx, []string{"devices", "-l"}, self.opts.PropTimeout, "")
		return out, err
	})
	if err != nil {
		return nil, err
	}

	devices := []Device{}
	for _, entry := range ParseDeviceListing(stdout) {
		if useCache {
			if cached, ok := self.cache.Get(entry.ID); ok && cached.State == entry.State {
				devices = append(devices, cached)
				continue
			}
		}
		transportID, _ := strconv.Atoi(entry.Props["transport_id"])
		devices = append(devices, Device{
			ID:          entry.ID,
			State:       entry.State,
			Model:       strings.ReplaceAll(entry.Props["model"], "_", " "),
			Product:     entry.Props["product"],
			TransportID: transportID,
		})
	}
	return devices, nil
}

func (self *Client) ReadyDevices(ctx context.Context) ([]Device, error) {
	devices, err := self.ListDevices(ctx, false)
	if err != nil {
		return nil, err
	}
	ready := []Device{}
	for _, dev := range devices {
		if dev.IsReady() {
			ready = append(ready, dev)
		}
	}
	return ready, nil
}

// ValidateDevice re-lists devices and returns id if it is present and ready.
func (self *Client) ValidateDevice(ctx context.Context, id string) (Device, error) {
	dev, err := self.findDevice(ctx, id)
	if err != nil {
		return Device{}, err
	}
	if !dev.IsReady() {
		return Device{}, &DeviceNotFoundError{DeviceID: id}
	}
	return dev, nil
}

// SelectDevice validates id when given. Otherwise it picks the only ready device and refuses to
// guess when there are several.
func (self *Client) SelectDevice(ctx context.Context, id string) (Device, error) {
	if id != "" {
		return self.ValidateDevice(ctx, id)
	}
	ready, err := self.ReadyDevices(ctx)
	if err != nil {
		return Device{}, err
	}
	switch len(ready) {
	case 0:
		return Device{}, &DeviceNotFoundError{Reason: "no ready devices available"}
	case 1:
		return ready[0], nil
	}
	ids := make([]string, 0, len(ready))
	for _, dev := range ready {
		ids = append(ids, dev.ID)
	}
	return Device{}, &DeviceNotFoundError{Candidates: ids}
}

// DeviceInfo returns the extended record for id. A cached record with a known SDK level is
// returned as is unless forceRefresh. A device that is listed but not ready comes back with
// its basic listing info and is not cached.
func (self *Client) DeviceInfo(ctx context.Context, id string, forceRefresh bool) (Device, error) {
	if !forceRefresh {
		if cached, ok := self.cache.Get(id); ok && cached.SDKLevel > 0 {
			return cached, nil
		}
	}

	dev, err := self.findDevice(ctx, id)
	if err != nil {
		return Device{}, err
	}
	if !dev.IsReady() {
		return dev, nil
	}

	props := map[string]string{}
	for _, name := range []string{propModel, propManufacturer, propAndroidVersion, propSDK} {
		value, err := self.getProp(ctx, id, name)
		if err != nil {
			return Device{}, err
		}
		props[name] = value
	}

	sdk, err := strconv.Atoi(props[propSDK])
	if err != nil {
		sdk = 0
	}
	full := Device{
		ID:             id,
		State:          dev.State,
		Model:          props[propModel],
		Manufacturer:   props[propManufacturer],
		AndroidVersion: props[propAndroidVersion],
		SDKLevel:       sdk,
		Product:        dev.Product,
		TransportID:    dev.TransportID,
	}
	if full.Model == "" {
		full.Model = dev.Model
	}

	self.cache.Set(full)
	log.WithFields(log.Fields{
		"type":    "device_info",
		"id":      censorID(id),
		"model":   full.Model,
		"android": full.AndroidVersion,
		"sdk":     full.SDKLevel,
	}).Info("Device Info")
	return full, nil
}

// getProp degrades to "" on timeout or command failure so one property never aborts a detail fetch.
func (self *Client) getProp(ctx context.Context, id string, name string) (string, error) {
	return bestEffort("getprop "+name, "", func() (string, error) {
		out, _, err := self.shell(ctx, id, self.opts.PropTimeout, "getprop", name)
		return strings.TrimSpace(out), err
	}, ErrTimeout, ErrCommandFailed)
}

func (self *Client) ListUsers(ctx context.Context, id string) ([]int, error) {
	stdout, err := propagate("list_users", func() (string, error) {
		out, _, err := self.shell(ctx, id, 0, "pm", "list", "users")
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return ParseUserListing(stdout), nil
}

// InvalidateCache drops the cached record for id, or every record when id is empty.
func (self *Client) InvalidateCache(id string) {
	if id == "" {
		self.cache.Clear()
		return
	}
	self.cache.Invalidate(id)
}

func (self *Client) findDevice(ctx context.Context, id string) (Device, error) {
	devices, err := self.ListDevices(ctx, false)
	if err != nil {
		return Device{}, err
	}
	for _, dev := range devices {
		if dev.ID == id {
			return dev, nil
		}
	}
	return Device{}, &DeviceNotFoundError{DeviceID: id}
}

// censorID keeps device serials out of info level logs.
func censorID(id string) string {
	if len(id) <= 4 {
		return id
	}
	return "***" + id[len(id)-4:]
}
