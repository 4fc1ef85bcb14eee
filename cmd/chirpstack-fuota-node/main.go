package main

import "github.com/brocaar/chirpstack-fuota-node/cmd/chirpstack-fuota-node/cmd"

var version string // set by the compiler

func main() {
	cmd.Execute(version)
}
