package main

import "github.com/khaledhikmat/vs-mood/cmd"

func main() {
	cmd.Execute()
}
