// Package ssc32 is the root of a host-side driver for the Lynxmotion SSC-32
// serial servo controller.
//
// # Installation
//
//	go install github.com/gwillem/ssc32/cmd/ssc32@latest
//
// # Usage
//
// First, run setup to find the board and name your servos:
//
//	ssc32 setup
//
// Then move, query and watch them:
//
//	ssc32 move grip --deg 30 --time 1000 --wait
//	ssc32 query grip
//	ssc32 monitor
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/ssc32: CLI with setup, motion, I/O and monitor commands
//   - pkg/ssc32: Protocol core: channels, controller, servo config files
//   - pkg/transport: Serial port and in-memory test transport
//   - pkg/robot: Connection config and a shared controller
//   - pkg/monitor: Position sampling loop
package ssc32
