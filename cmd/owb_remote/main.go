// Package main starts the browser remote for the robot.
package main

import "flag"

// main is the entrypoint for the remote server.
func main() {
	debug := flag.Bool("debug", false, "Log every command sent to the controller and RTP forwarding")
	flag.Parse()

	if err := run(*debug); err != nil {
		logFatal(err)
	}
}
