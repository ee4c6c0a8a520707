package main

// main runs the root command. Build metadata lives in root.go and is set
// via -ldflags.
func main() {
	Execute()
}
