package main

import "github.com/libratom/libratom/cmd"

func main() {
	cmd.Execute()
}
