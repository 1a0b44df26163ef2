// Command pqosdump initializes the library, dumps what it discovered,
// and shuts down. It exists to exercise Init/discovery/Fini end to end
// the way the teacher's ie32to64 exercises its own package from the
// command line, not as a production CLI.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rdtkit/pqosgo"
)

func main() {
	resctrlRoot := flag.String("resctrl-root", "", "override the resctrl mount point (for testing)")
	iface := flag.String("iface", "", "force a backend: MSR or OS (default: auto-detect)")
	flag.Parse()

	cfg := pqos.Config{ResctrlRoot: *resctrlRoot}
	switch *iface {
	case "MSR":
		cfg.Interface = pqos.BackendDirect
	case "OS":
		cfg.Interface = pqos.BackendResctrl
	}

	ctx, err := pqos.Init(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pqosdump: init: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Fini()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ctx.Capability()); err != nil {
		fmt.Fprintf(os.Stderr, "pqosdump: encoding capability: %v\n", err)
		os.Exit(1)
	}
}
