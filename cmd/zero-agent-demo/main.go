// Command zero-agent-demo assembles the pool, timer manager, RPC agent,
// and in-process stream carrier into a running echo agent, demonstrating
// a full request/response round trip end to end.
//
// Author: aaron-michaux
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := buildRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
