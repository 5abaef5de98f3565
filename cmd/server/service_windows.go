//go:build windows

package main

import (
	"log"

	"github.com/technosupport/campus-presence/internal/platform/windows"
)

// runAsServiceIfApplicable starts the Windows service loop in a background
// goroutine when the process was started by the Service Control Manager,
// relaying SCM stop requests onto stop, and returns true without waiting for
// it. Returns false when invoked interactively (e.g. from a console during
// development), so main falls through to the normal foreground run.
func runAsServiceIfApplicable(stop chan<- struct{}) bool {
	if !windows.IsWindowsService() {
		return false
	}
	go func() {
		if err := windows.RunAsService(serviceName, stop); err != nil {
			log.Fatalf("windows service loop exited: %v", err)
		}
	}()
	return true
}
