// Command ginseng shares files between peers over a content-addressed
// blob store.
package main

func main() {
	Execute()
}
