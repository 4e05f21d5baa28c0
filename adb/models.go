package adb

import (
	"strings"
	"sync"
	"unicode"
)

// State is the connection state reported by `adb devices`.
type State int

const (
	StateUnknown State = iota
	StateReady
	StateOffline
	StateUnauthorized
	StateBootloader
	StateRecovery
	StateSideload
)

func (self State) String() string {
	switch self {
	case StateReady:
		return "device"
	case StateOffline:
		return "offline"
	case StateUnauthorized:
		return "unauthorized"
	case StateBootloader:
		return "bootloader"
	case StateRecovery:
		return "recovery"
	case StateSideload:
		return "sideload"
	}
	return "unknown"
}

// Device is one bridge-visible endpoint. SDKLevel 0 means the extended properties were never fetched.
type Device struct {
	ID             string
	State          State
	Model          string
	Manufacturer   string
	AndroidVersion string
	SDKLevel       int
	Product        string
	TransportID    int
}

// IsReady reports whether the device accepts shell commands.
func (self Device) IsReady() bool {
	return self.State == StateReady
}

func (self Device) DisplayName() string {
	if self.Model != "" && self.Manufacturer != "" {
		return self.Manufacturer + " " + self.Model
	}
	if self.Model != "" {
		return self.Model
	}
	return self.ID
}

// Application is one installed package as seen by one user profile.
type Application struct {
	PackageName string
	IsSystem    bool
	IsEnabled   bool
	SizeMB      float64
	VersionCode int
	Label       string
}

// DisplayName returns the label, or a title-cased last segment of the package name
// (com.android.chrome -> Chrome, com.foo.my_app -> My App).
func (self Application) DisplayName() string {
	if self.Label != "" {
		return self.Label
	}
	parts := strings.Split(self.PackageName, ".")
	return titleCase(strings.ReplaceAll(parts[len(parts)-1], "_", " "))
}

// titleCase upper-cases the first letter of every letter run and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}

// AppAction is the state change applied by a bulk operation.
type AppAction int

const (
	ActionDisable AppAction = iota
	ActionEnable
)

func (self AppAction) String() string {
	if self == ActionEnable {
		return "Enable"
	}
	return "Disable"
}

// ActionFor maps the enable flag of the bulk calls to an AppAction.
func ActionFor(enable bool) AppAction {
	if enable {
		return ActionEnable
	}
	return ActionDisable
}

// DeviceCache holds the extended Device record per device id. Entries never expire by time.
type DeviceCache struct {
	lock    sync.RWMutex
	entries map[string]Device
}

func NewDeviceCache() *DeviceCache {
	return &DeviceCache{
		entries: make(map[string]Device),
	}
}

func (self *DeviceCache) Get(id string) (Device, bool) {
	self.lock.RLock()
	defer self.lock.RUnlock()
	dev, ok := self.entries[id]
	return dev, ok
}

func (self *DeviceCache) Set(dev Device) {
	self.lock.Lock()
	self.entries[dev.ID] = dev
	self.lock.Unlock()
}

func (self *DeviceCache) Invalidate(id string) {
	self.lock.Lock()
	delete(self.entries, id)
	self.lock.Unlock()
}

func (self *DeviceCache) Clear() {
	self.lock.Lock()
	self.entries = make(map[string]Device)
	self.lock.Unlock()
}

func (self *DeviceCache) Len() int {
	self.lock.RLock()
	defer self.lock.RUnlock()
	return len(self.entries)
}
