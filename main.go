package main

import "vqconf/cmd"

func main() {
	cmd.Execute()
}
