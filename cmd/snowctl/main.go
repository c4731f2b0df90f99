// Command snowctl sends requests to a ServiceNow instance through the
// rate-limited, retrying client.
//
//	snowctl request GET /api/now/table/incident --query sysparm_limit=5
//	snowctl stream /api/now/table/incident --lines
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "snowctl:", err)
		os.Exit(1)
	}
}
