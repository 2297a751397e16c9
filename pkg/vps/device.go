package vps

import (
	"runtime"
	"runtime/debug"

	"github.com/saker-ai/vps-client/internal/protocol/wire"
)

const (
	// DefaultDeviceChannel is the channel reported in the handshake.
	DefaultDeviceChannel = "mobile"
	defaultAppVersion    = "1.0.0"
)

// DeviceInfo describes the client in the connection handshake.
type DeviceInfo struct {
	ClientType      string `mapstructure:"client_type" yaml:"client_type"`
	Channel         string `mapstructure:"channel" yaml:"channel"`
	ChannelVersion  string `mapstructure:"channel_version" yaml:"channel_version"`
	PlatformName    string `mapstructure:"platform_name" yaml:"platform_name"`
	PlatformVersion string `mapstructure:"platform_version" yaml:"platform_version"`
}

func (d DeviceInfo) wire() wire.Device {
	return wire.Device{
		ClientType:      d.ClientType,
		Channel:         d.Channel,
		ChannelVersion:  d.ChannelVersion,
		PlatformName:    d.PlatformName,
		PlatformVersion: d.PlatformVersion,
	}
}

// DeviceInfoProvider supplies device metadata when a handshake is built.
type DeviceInfoProvider interface {
	DeviceInfo() DeviceInfo
}

// DeviceInfoFunc adapts a function to DeviceInfoProvider.
type DeviceInfoFunc func() DeviceInfo

// DeviceInfo calls f.
func (f DeviceInfoFunc) DeviceInfo() DeviceInfo { return f() }

// SystemDevice fills the empty fields of base from the running process:
// the OS name, the kernel release and the main module version.
func SystemDevice(base DeviceInfo) DeviceInfoProvider {
	return DeviceInfoFunc(func() DeviceInfo {
		d := base
		if d.PlatformName == "" {
			d.PlatformName = runtime.GOOS
		}
		if d.PlatformVersion == "" {
			d.PlatformVersion = platformVersion()
		}
		if d.ClientType == "" {
			d.ClientType = runtime.GOOS + " " + runtime.GOARCH
		}
		if d.Channel == "" {
			d.Channel = DefaultDeviceChannel
		}
		if d.ChannelVersion == "" {
			d.ChannelVersion = appVersion()
		}
		return d
	})
}

func appVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return defaultAppVersion
	}
	return info.Main.Version
}
