package main

import "github.com/brewbuds/server/cmd"

func main() {
	cmd.Execute()
}
