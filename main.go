package main

import "github.com/RyanBlaney/activity-spectra/cmd"

func main() {
	cmd.Execute()
}
