//go:build !cgo

package transcriber

import "fmt"

// NewStreamModel needs the sherpa-onnx native library, which requires cgo.
func NewStreamModel(modelDir string, threads int) (StreamModel, error) {
	return nil, fmt.Errorf("%w: streaming recognition requires a cgo build (CGO_ENABLED=1)", ErrUnavailable)
}
