package main

import "github.com/param-gate/paramgate/cmd/paramgate/cmd"

func main() {
	cmd.Execute()
}
