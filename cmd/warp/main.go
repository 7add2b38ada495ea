// Command warp converts scene documents into element trees and keeps live
// graphs in sync with them.
package main

import (
	"fmt"
	"os"

	"github.com/ryohey/warp/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "warp:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
