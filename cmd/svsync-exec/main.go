// Command svsync-exec is the launcher generated entry scripts exec. It
// reads the argument-vector payload back out of the script that invoked
// it, waits the configured start delay, and replaces itself with the
// command. The exec is unconditional: the supervisor only ever sees one
// live process in the service slot, never a parent/child pair.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	svsync "github.com/axondata/go-svsync"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: svsync-exec <entry-script>")
		os.Exit(111)
	}

	script := os.Args[1]
	content, err := os.ReadFile(script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "svsync-exec: reading %s: %v\n", script, err)
		os.Exit(111)
	}

	argv, delay, err := svsync.ParseEntryScript(content)
	if err != nil {
		fmt.Fprintf(os.Stderr, "svsync-exec: %s: %v\n", script, err)
		os.Exit(111)
	}

	if delay > 0 {
		time.Sleep(time.Duration(delay) * time.Second)
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "svsync-exec: %v\n", err)
		os.Exit(111)
	}

	// Returns only on failure
	if err := syscall.Exec(path, argv, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "svsync-exec: exec %s: %v\n", path, err)
		os.Exit(111)
	}
}
