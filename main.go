package main

import "wordbridge/cmd"

func main() {
	cmd.Execute()
}
