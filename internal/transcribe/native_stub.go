//go:build !whispercpp

package transcribe

// NativeAvailable reports whether the cgo whisper.cpp backend is compiled in.
func NativeAvailable() bool { return false }

// NativeEngine is a placeholder for builds without the cgo backend.
type NativeEngine struct{}

// NewNativeEngine always fails without the whispercpp build tag.
func NewNativeEngine(string, bool) (*NativeEngine, error) {
	return nil, ErrNativeUnavailable
}

func (e *NativeEngine) NewState() (DecodingState, error) { return nil, ErrNativeUnavailable }
func (e *NativeEngine) UsesAccelerator() bool            { return false }
func (e *NativeEngine) Close() error                     { return nil }
