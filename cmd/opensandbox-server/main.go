// Command opensandbox-server runs the sandbox control-plane HTTP API.
package main

func main() {
	Execute()
}
