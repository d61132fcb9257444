package main

import "github.com/hb-chen/mkbi/cmd"

func main() {
	cmd.Execute()
}
