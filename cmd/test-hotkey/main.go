// Command test-hotkey is a manual test for the global hotkey listener.
// Run it, then press the combo to see events.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--combo cmd+shift+space] [--mode hold|toggle]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/rose/internal/hotkey"
)

func main() {
	comboFlag := flag.String("combo", "ctrl+shift+r", "hotkey combo, e.g. cmd+shift+space")
	mode := flag.String("mode", "hold", "hotkey mode: hold or toggle")
	list := flag.Bool("presets", false, "list preset combos and exit")
	flag.Parse()

	if *list {
		for _, spec := range hotkey.Presets {
			c, _ := hotkey.ParseCombo(spec)
			fmt.Printf("  %-20s %s\n", spec, c.Label)
		}
		return
	}

	combo, err := hotkey.ParseCombo(*comboFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Listening for %s in %q mode...\n", combo.Label, *mode)
	fmt.Println("Press Ctrl+C to exit.")

	listener := hotkey.NewListener(combo, *mode)

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	// Read events
	go func() {
		for ev := range listener.Events() {
			switch ev.Type {
			case hotkey.EventStart:
				fmt.Println(">>> START (recording)")
			case hotkey.EventStop:
				fmt.Println("<<< STOP  (stopped)")
			}
		}
		fmt.Println("Event channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
