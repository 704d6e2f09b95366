package main

import "github.com/geeth24/xpool-agent/cmd"

func main() {
	cmd.Execute()
}
