// Command swarm answers an objective with a team of specialist agents.
package main

func main() {
	Execute()
}
