package main

import "github.com/kernel/extkit/cmd"

func main() {
	cmd.Execute()
}
