package main

import "cdnbox/cmd"

func main() {
	cmd.Execute()
}
