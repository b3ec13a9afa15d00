package main

import "github.com/kozaktomas/uniportal/cmd"

func main() {
	cmd.Execute()
}
