// Package inject delivers transcribed text to the active application by
// simulated keystrokes, clipboard paste, or the clipboard alone.
package inject

import (
	"fmt"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
	"github.com/go-vgo/robotgo"
)

// TextInjector delivers text to the user.
type TextInjector interface {
	Inject(text string) error
}

// Keyboard simulates key input.
type Keyboard interface {
	Type(text string)
	KeyTap(key string, modifiers ...string) error
}

// Clipboard reads and writes the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type robotKeyboard struct{}

func (robotKeyboard) Type(text string) { robotgo.Type(text) }

func (robotKeyboard) KeyTap(key string, modifiers ...string) error {
	args := make([]any, len(modifiers))
	for i, m := range modifiers {
		args[i] = m
	}
	return robotgo.KeyTap(key, args...)
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// restoreDelay gives the target application time to read the clipboard
// before the previous contents are put back.
const restoreDelay = 150 * time.Millisecond

// Injector handles typing or pasting text into the active application.
type Injector struct {
	method string // "type", "paste" or "clipboard"
	kb     Keyboard
	cb     Clipboard
	sleep  func(time.Duration)
}

var _ TextInjector = (*Injector)(nil)

// NewInjector creates an Injector backed by robotgo and the system
// clipboard.
func NewInjector(method string) *Injector {
	return NewInjectorWith(method, robotKeyboard{}, systemClipboard{})
}

// NewInjectorWith creates an Injector with explicit input backends.
func NewInjectorWith(method string, kb Keyboard, cb Clipboard) *Injector {
	return &Injector{method: method, kb: kb, cb: cb, sleep: time.Sleep}
}

// Inject sends text to the active application using the configured method.
func (inj *Injector) Inject(text string) error {
	if text == "" {
		return nil
	}

	switch inj.method {
	case "paste":
		return inj.paste(text)
	case "clipboard":
		if err := inj.cb.WriteAll(text); err != nil {
			return fmt.Errorf("inject: write to clipboard: %w", err)
		}
		return nil
	default: // "type"
		inj.kb.Type(text)
		return nil
	}
}

// paste copies text to the clipboard, sends the paste shortcut, and puts
// the previous clipboard contents back.
func (inj *Injector) paste(text string) error {
	prev, _ := inj.cb.ReadAll()

	if err := inj.cb.WriteAll(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}
	if err := inj.kb.KeyTap("v", pasteModifier()); err != nil {
		return fmt.Errorf("inject: key tap paste: %w", err)
	}

	inj.sleep(restoreDelay)
	_ = inj.cb.WriteAll(prev) // best effort
	return nil
}

func pasteModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
