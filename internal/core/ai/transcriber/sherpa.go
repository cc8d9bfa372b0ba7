//go:build cgo

package transcriber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// sherpaModel is a streaming transducer loaded through sherpa-onnx.
type sherpaModel struct {
	recognizer *sherpa.OnlineRecognizer
}

// detectProvider returns "cuda" if NVIDIA GPU is available, otherwise "cpu".
func detectProvider() string {
	return executionProvider(os.Getenv, func() bool {
		return hasNvidiaGPU(context.Background(), nil)
	})
}

// findModelFile returns the first file in dir matching pattern.
func findModelFile(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no %s in %s", pattern, dir)
	}
	return matches[0], nil
}

// NewStreamModel loads a streaming zipformer transducer from modelDir,
// which holds encoder*.onnx, decoder*.onnx, joiner*.onnx and tokens.txt.
func NewStreamModel(modelDir string, threads int) (StreamModel, error) {
	if _, err := os.Stat(modelDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("streaming model directory not found: %s", modelDir)
	}

	config := sherpa.OnlineRecognizerConfig{}
	config.FeatConfig.SampleRate = SampleRate
	config.FeatConfig.FeatureDim = 80
	config.ModelConfig.NumThreads = max(threads, 1)
	config.ModelConfig.Provider = detectProvider()
	config.DecodingMethod = "greedy_search"
	config.EnableEndpoint = 1
	config.Rule1MinTrailingSilence = 2.4
	config.Rule2MinTrailingSilence = 1.2
	config.Rule3MinUtteranceLength = 20

	var err error
	if config.ModelConfig.Transducer.Encoder, err = findModelFile(modelDir, "encoder*.onnx"); err != nil {
		return nil, err
	}
	if config.ModelConfig.Transducer.Decoder, err = findModelFile(modelDir, "decoder*.onnx"); err != nil {
		return nil, err
	}
	if config.ModelConfig.Transducer.Joiner, err = findModelFile(modelDir, "joiner*.onnx"); err != nil {
		return nil, err
	}
	config.ModelConfig.Tokens = filepath.Join(modelDir, "tokens.txt")

	recognizer := sherpa.NewOnlineRecognizer(&config)
	if recognizer == nil {
		return nil, fmt.Errorf("failed to create streaming recognizer from %s", modelDir)
	}
	return &sherpaModel{recognizer: recognizer}, nil
}

func (m *sherpaModel) NewStream() (StreamRecognizer, error) {
	stream := sherpa.NewOnlineStream(m.recognizer)
	if stream == nil {
		return nil, fmt.Errorf("failed to create online stream")
	}
	return &sherpaStream{recognizer: m.recognizer, stream: stream}, nil
}

func (m *sherpaModel) Close() error {
	if m.recognizer != nil {
		sherpa.DeleteOnlineRecognizer(m.recognizer)
		m.recognizer = nil
	}
	return nil
}

type sherpaStream struct {
	recognizer *sherpa.OnlineRecognizer
	stream     *sherpa.OnlineStream
}

func (s *sherpaStream) decode() {
	for s.recognizer.IsReady(s.stream) {
		s.recognizer.Decode(s.stream)
	}
}

func (s *sherpaStream) AcceptWaveform(samples []float32) bool {
	s.stream.AcceptWaveform(SampleRate, samples)
	s.decode()
	return s.recognizer.IsEndpoint(s.stream)
}

func (s *sherpaStream) Result() string {
	text := s.recognizer.GetResult(s.stream).Text
	s.recognizer.Reset(s.stream)
	return text
}

func (s *sherpaStream) FinalResult() string {
	// trailing silence lets the model emit the last tokens
	s.stream.AcceptWaveform(SampleRate, make([]float32, SampleRate*3/10))
	s.stream.InputFinished()
	s.decode()
	return s.recognizer.GetResult(s.stream).Text
}

func (s *sherpaStream) Close() {
	sherpa.DeleteOnlineStream(s.stream)
}
