// ABOUTME: Entry point for the metronome
// ABOUTME: Hands off to the cobra command tree
package main

import "github.com/Resonate-Protocol/resonate-metronome/cmd"

func main() {
	cmd.Execute()
}
