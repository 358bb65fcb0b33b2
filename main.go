package main

import "github.com/theirongolddev/dbchat/cmd"

func main() {
	cmd.Execute()
}
