// Package main is the entry point for runstorm.
package main

func main() {
	Execute()
}
