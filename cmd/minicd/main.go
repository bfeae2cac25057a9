// Command minicd is a minimal continuous-delivery agent: it listens
// for git post-receive notifications, runs the jobs declared in the
// notified revision's manifest, and auto-installs the hooks that feed
// it.
package main

import "os"

func main() {
	os.Exit(Execute())
}
