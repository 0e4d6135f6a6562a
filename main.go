package main

import "github.com/polyscope/polyscope/cmd"

func main() {
	cmd.Execute()
}
