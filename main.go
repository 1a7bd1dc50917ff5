package main

import "github.com/KaramelBytes/keiba-ai/cmd"

func main() {
	cmd.Execute()
}
