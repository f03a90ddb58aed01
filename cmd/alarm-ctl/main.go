package main

import "github.com/oshokin/alarm-cond/cmd/alarm-ctl/cmd"

func main() {
	cmd.Execute()
}
