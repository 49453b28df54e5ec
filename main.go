package main

import "github.com/iksnae/doc-session/cmd"

func main() {
	cmd.Execute()
}
