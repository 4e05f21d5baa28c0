package adb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnectionState(t *testing.T) {
	cases := map[string]State{
		"device":       StateReady,
		"DEVICE":       StateReady,
		"offline":      StateOffline,
		"Offline":      StateOffline,
		"unauthorized": StateUnauthorized,
		"bootloader":   StateBootloader,
		"RECOVERY":     StateRecovery,
		"sideload":     StateSideload,
		"no":           StateUnknown,
		"":             StateUnknown,
		"host":         StateUnknown,
	}
	for token, want := range cases {
		assert.Equal(t, want, ParseConnectionState(token), token)
	}
}

func TestParseDeviceListingBannerOnly(t *testing.T) {
	assert.Empty(t, ParseDeviceListing("List of devices attached\n"))
	assert.Empty(t, ParseDeviceListing(""))
}

func TestParseDeviceListing(t *testing.T) {
	entries := ParseDeviceListing("device1  device product:prod1 model:Model_1 transport_id:1\n")
	require.Len(t, entries, 1)
	assert.Equal(t, "device1", entries[0].ID)
	assert.Equal(t, StateReady, entries[0].State)
	assert.Equal(t, "Model_1", entries[0].Props["model"])
	assert.Equal(t, "prod1", entries[0].Props["product"])
	assert.Equal(t, "1", entries[0].Props["transport_id"])
}

func TestParseDeviceListingMixed(t *testing.T) {
	text := "* daemon not running; starting now at tcp:5037\n" +
		"* daemon started successfully\n" +
		"List of devices attached\n" +
		"emulator-5554\tdevice product:sdk_gphone64 model:sdk_gphone64_x86_64 device:emu64x transport_id:3\n" +
		"\n" +
		"R58M123\tunauthorized usb:1-1 transport_id:4\n" +
		"lonely\n" +
		"10.0.0.2:5555 offline\n"
	entries := ParseDeviceListing(text)
	require.Len(t, entries, 3)
	assert.Equal(t, "emulator-5554", entries[0].ID)
	assert.Equal(t, "emu64x", entries[0].Props["device"])
	assert.Equal(t, StateUnauthorized, entries[1].State)
	assert.Equal(t, "1-1", entries[1].Props["usb"])
	assert.Equal(t, "10.0.0.2:5555", entries[2].ID)
	assert.Equal(t, StateOffline, entries[2].State)
	assert.Empty(t, entries[2].Props)
}

func TestParseUserListing(t *testing.T) {
	text := "Users:\n\tUserInfo{0:Owner:4c13} running\n\tUserInfo{10:Work:30} running\n"
	assert.Equal(t, []int{0, 10}, ParseUserListing(text))
	assert.Empty(t, ParseUserListing("Users:\n"))
}

func TestParsePackageListing(t *testing.T) {
	text := "package:com.android.chrome\r\npackage:com.b\nnoise\npackage:com.android.chrome\npackage:\n"
	assert.Equal(t, []string{"com.android.chrome", "com.b", "com.android.chrome"}, ParsePackageListing(text))
}

func TestParsePackagePath(t *testing.T) {
	text := "package:/data/app/~~abc/com.x-1/split_config.arm64_v8a.apk\n" +
		"package:/data/app/~~abc/com.x-1/base.apk\n"
	dir, ok := ParsePackagePath(text)
	require.True(t, ok)
	assert.Equal(t, "/data/app/~~abc/com.x-1", dir)

	_, ok = ParsePackagePath("package:/data/app/com.x-1/split_a.apk\n")
	assert.False(t, ok)
	_, ok = ParsePackagePath("")
	assert.False(t, ok)
}

const dumpsysChrome = `Packages:
  Package [com.android.chrome] (2c6a1f3):
    userId=10123
    versionCode=567812345 minSdk=29 targetSdk=34
    versionName=120.0.6099.43
    applicationInfo=ApplicationInfo{df1 com.android.chrome}
      labelRes=0x7f1400a2 nonLocalizedLabel="Chrome" icon=0x7f0801b6
    User 0: ceDataInode=123 installed=true hidden=false suspended=false stopped=false notLaunched=false enabled=0 instant=false virtual=false
    User 10: ceDataInode=456 installed=true hidden=false suspended=false stopped=true notLaunched=false enabled=3 instant=false virtual=false
`

func TestParseDumpsysPackage(t *testing.T) {
	meta := ParseDumpsysPackage(dumpsysChrome, 0)
	assert.True(t, meta.Enabled)
	assert.Equal(t, 567812345, meta.VersionCode)
	assert.Equal(t, "Chrome", meta.Label)

	meta = ParseDumpsysPackage(dumpsysChrome, 10)
	assert.False(t, meta.Enabled)

	// No line for this profile: enabled by default.
	meta = ParseDumpsysPackage(dumpsysChrome, 11)
	assert.True(t, meta.Enabled)
}

func TestParseDumpsysPackageDefaults(t *testing.T) {
	meta := ParseDumpsysPackage("", 0)
	assert.Equal(t, PackageMetadata{Enabled: true}, meta)

	meta = ParseDumpsysPackage("    labelRes=0x7f0e0001 nonLocalizedLabel=null\n    User 0: installed=true enabled=1\n", 0)
	assert.Equal(t, "", meta.Label)
	assert.True(t, meta.Enabled)

	meta = ParseDumpsysPackage("    User 0: installed=true enabled=2\n", 0)
	assert.False(t, meta.Enabled)
}

func TestParseDiskUsage(t *testing.T) {
	assert.InDelta(t, 0.51, ParseDiskUsage("512K\t/x"), 0.001)
	assert.Equal(t, 1536.0, ParseDiskUsage("1.5G\t/x"))
	assert.Equal(t, 12.0, ParseDiskUsage("12M\t/x\n"))
	assert.Equal(t, 2*1048576.0, ParseDiskUsage("2T /x"))
	assert.InDelta(t, 1.02, ParseDiskUsage("1024\t/x"), 0.001)
	assert.Equal(t, 0.0, ParseDiskUsage(""))
	assert.Equal(t, 0.0, ParseDiskUsage("garbage"))
	assert.Equal(t, 0.0, ParseDiskUsage("du: /x: Permission denied"))
}
