package main

import "github.com/bazarteer/bazaar/cmd"

func main() {
	cmd.Execute()
}
