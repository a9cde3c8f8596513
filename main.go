package main

import "portfolio-sync/cmd"

func main() {
	cmd.Execute()
}
