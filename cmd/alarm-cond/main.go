package main

import "github.com/oshokin/alarm-cond/cmd/alarm-cond/cmd"

func main() {
	cmd.Execute()
}
