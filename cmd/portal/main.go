package main

import "github.com/skwf/portal/cmd/portal/cmd"

func main() {
	cmd.Execute()
}
