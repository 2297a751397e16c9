//go:build linux || darwin || freebsd || netbsd || openbsd

package vps

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func platformVersion() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return runtime.Version()
	}
	if release := unix.ByteSliceToString(u.Release[:]); release != "" {
		return release
	}
	return runtime.Version()
}
