// FinTrack - personal finance tracking from the command line
//
// This software is a derivative work based on Zeit (https://github.com/mrusme/zeit)
// Original work copyright (c) マリウス (mrusme)
// Modifications copyright (c) Manav Panchal
//
// Licensed under the SEGV License, Version 1.0
// See LICENSE file for full license text.

package main

import (
	"os"

	"github.com/manav03panchal/fintrack/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
