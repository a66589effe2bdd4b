package main

import "github.com/qobs-build/rebuild/cmd"

func main() {
	cmd.Execute()
}
