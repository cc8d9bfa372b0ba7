//go:build cgo

package transcriber

// newLocalModel loads whisper.cpp in process.
func newLocalModel(opts LocalOptions, modelPath string) (BatchModel, error) {
	return newWhisperModel(modelPath, opts.Language, opts.Threads)
}
