//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package vps

import "runtime"

func platformVersion() string {
	return runtime.Version()
}
