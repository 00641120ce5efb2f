//go:build whispercpp

package transcribe

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo CXXFLAGS: -std=c++17 -I${SRCDIR}/../../third_party/whisper.cpp -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/whisper.cpp/build -L${SRCDIR}/../../third_party/whisper.cpp/build/src -Wl,-rpath,${SRCDIR}/../../third_party/whisper.cpp/build/src -lwhisper -lstdc++ -lm
#cgo darwin LDFLAGS: -framework Accelerate -framework Metal -framework Foundation

#include <stdlib.h>
#include "include/whisper.h"
#include "ggml.h"

bool roseWhisperAbort(void * user_data);
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"runtime/cgo"
	"strings"
	"sync"
	"unsafe"
)

// NativeAvailable reports whether the cgo whisper.cpp backend is compiled in.
func NativeAvailable() bool { return true }

// NativeEngine drives whisper.cpp directly. Each DecodingState owns its own
// whisper_state, so attempts decode in parallel against one shared model.
type NativeEngine struct {
	mu     sync.RWMutex // Close waits for in-flight states
	ctx    *C.struct_whisper_context
	useGPU bool
}

// NewNativeEngine loads a ggml model file. The caller must call Close.
func NewNativeEngine(modelPath string, useGPU bool) (*NativeEngine, error) {
	if modelPath == "" {
		return nil, errors.New("transcribe: model path required")
	}
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))

	cParams := C.whisper_context_default_params()
	cParams.use_gpu = C.bool(useGPU)

	ctx := C.whisper_init_from_file_with_params(cPath, cParams)
	if ctx == nil {
		return nil, fmt.Errorf("transcribe: load whisper model %q: init failed", modelPath)
	}
	return &NativeEngine{ctx: ctx, useGPU: useGPU}, nil
}

// UsesAccelerator reports whether the model was loaded onto the GPU.
func (e *NativeEngine) UsesAccelerator() bool { return e.useGPU }

// NewState allocates a whisper_state for one attempt.
func (e *NativeEngine) NewState() (DecodingState, error) {
	e.mu.RLock()
	if e.ctx == nil {
		e.mu.RUnlock()
		return nil, ErrNoEngine
	}
	state := C.whisper_init_state(e.ctx)
	if state == nil {
		e.mu.RUnlock()
		return nil, errors.New("transcribe: failed to initialise whisper state")
	}
	// The read lock is held until the state is closed.
	return &nativeState{engine: e, state: state}, nil
}

// Close frees the model once every outstanding state has been closed.
func (e *NativeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != nil {
		C.whisper_free(e.ctx)
		e.ctx = nil
	}
	return nil
}

type nativeState struct {
	engine *NativeEngine
	state  *C.struct_whisper_state
}

func (s *nativeState) Recognize(ctx context.Context, samples []float32, opts DecodeOptions) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}

	params := C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	params.n_threads = C.int(max(1, opts.Threads))
	params.translate = C.bool(false)
	params.no_context = C.bool(true)
	params.single_segment = C.bool(false)
	params.print_special = C.bool(false)
	params.print_progress = C.bool(false)
	params.print_realtime = C.bool(false)
	params.print_timestamps = C.bool(false)
	params.suppress_blank = C.bool(true)
	params.suppress_nst = C.bool(true)
	params.temperature = C.float(opts.Temperature)
	params.temperature_inc = C.float(0)
	params.max_initial_ts = C.float(opts.MaxInitialTS)
	params.entropy_thold = C.float(opts.EntropyThold)
	params.logprob_thold = C.float(opts.LogprobThold)
	params.greedy.best_of = C.int(1)

	lang := strings.TrimSpace(opts.Language)
	if lang == "" {
		lang = "auto"
	}
	cLang := C.CString(lang)
	defer C.free(unsafe.Pointer(cLang))
	params.language = cLang
	params.detect_language = C.bool(false)

	handle := cgo.NewHandle(ctx)
	defer handle.Delete()
	userData := C.malloc(C.size_t(unsafe.Sizeof(handle)))
	defer C.free(userData)
	*(*cgo.Handle)(userData) = handle
	params.abort_callback = (C.ggml_abort_callback)(C.roseWhisperAbort)
	params.abort_callback_user_data = userData

	cSamples := (*C.float)(unsafe.Pointer(&samples[0]))
	if ret := C.whisper_full_with_state(s.engine.ctx, s.state, params, cSamples, C.int(len(samples))); ret != 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("transcribe: whisper_full failed with code %d", int(ret))
	}
	return collectSegments(s.state), nil
}

func (s *nativeState) Close() error {
	if s.state == nil {
		return nil
	}
	C.whisper_free_state(s.state)
	s.state = nil
	s.engine.mu.RUnlock()
	return nil
}

func collectSegments(state *C.struct_whisper_state) []Segment {
	count := int(C.whisper_full_n_segments_from_state(state))
	segments := make([]Segment, 0, count)
	for i := 0; i < count; i++ {
		seg := Segment{
			Text:         C.GoString(C.whisper_full_get_segment_text_from_state(state, C.int(i))),
			NoSpeechProb: float64(C.whisper_full_get_segment_no_speech_prob_from_state(state, C.int(i))),
		}
		n := int(C.whisper_full_n_tokens_from_state(state, C.int(i)))
		seg.TokenProbs = make([]float32, n)
		for j := 0; j < n; j++ {
			seg.TokenProbs[j] = float32(C.whisper_full_get_token_p_from_state(state, C.int(i), C.int(j)))
		}
		segments = append(segments, seg)
	}
	return segments
}

//export roseWhisperAbort
func roseWhisperAbort(userData unsafe.Pointer) C.bool {
	return C.bool(shouldAbort(userData))
}
