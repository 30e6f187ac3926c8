package main

import "github.com/Nativu5/netpulse/cmd/netpulse/cmd"

func main() {
	cmd.Execute()
}
