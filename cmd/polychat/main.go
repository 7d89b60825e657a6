// Command polychat is a terminal client for the polytechnic chatbot.
package main

import "github.com/diogo/polychat/internal/commands"

func main() {
	commands.Execute()
}
