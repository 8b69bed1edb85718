package main

import "hammer/cmd/client/cmd"

func main() {
	cmd.Execute()
}
