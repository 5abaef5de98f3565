//go:build !windows

package main

// runAsServiceIfApplicable is a no-op outside Windows: the binary always
// runs in the foreground (under systemd, Docker, or a plain shell), so
// there's no SCM to hand control to.
func runAsServiceIfApplicable(stop chan<- struct{}) bool {
	return false
}
