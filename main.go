package main

import "timelock-backend/cmd"

func main() {
	cmd.Run()
}
