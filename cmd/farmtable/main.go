// Command farmtable serves and scripts the semantic core of a farm-to-table
// marketplace: produce search, contextual recommendations, pricing advice
// and market trends.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/farmtable-go/cmd/farmtable/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
