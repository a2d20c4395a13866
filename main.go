package main

import "github.com/prodsim/prodsim/cmd"

func main() {
	cmd.Execute()
}
