package main

import "sizefit/cmd"

func main() {
	cmd.Execute()
}
