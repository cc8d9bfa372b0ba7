//go:build !cgo

package transcriber

// newLocalModel runs the whisper.cpp CLI since the bindings need cgo.
func newLocalModel(opts LocalOptions, modelPath string) (BatchModel, error) {
	return newWhisperRunner(opts.BinaryPath, modelPath, opts.Language, opts.Threads, opts.Runner)
}
