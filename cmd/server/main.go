package main

import "hammer/cmd/server/cmd"

func main() {
	cmd.Execute()
}
