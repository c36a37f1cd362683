package main

import "github.com/gerritevents/gerrit-events/cmd/gerrit-events/cmd"

func main() {
	cmd.Execute()
}
