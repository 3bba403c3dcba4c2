// Command conftree inspects, validates, encrypts, and serves hierarchical
// configuration files.
package main

func main() {
	Execute()
}
