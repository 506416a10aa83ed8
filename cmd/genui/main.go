// genui runs the generative UI dashboard: a web server, a terminal chat and a
// live voice session over the same tool-calling core.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
