package main

import "github.com/OpenTraceLab/OpenTraceBits/cmd/otb/cmd"

func main() {
	cmd.Execute()
}
