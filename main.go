package main

import "github.com/gaurav-prasanna/bookpipe/cmd"

func main() {
	cmd.Execute()
}
