package transcriber

import (
	"context"
	"time"

	"github.com/guiyumin/textube/internal/core/proc"
)

// Onnxruntime execution providers.
const (
	ProviderCPU  = "cpu"
	ProviderCUDA = "cuda"
)

// hasNvidiaGPU checks if an NVIDIA GPU is available by running nvidia-smi.
func hasNvidiaGPU(ctx context.Context, runner proc.Runner) bool {
	if runner == nil {
		if !proc.Available("nvidia-smi") {
			return false
		}
		runner = proc.ExecRunner{}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := runner.Run(ctx, "nvidia-smi", "-L")
	return err == nil
}

// executionProvider picks cuda when the container exposes NVIDIA devices
// and the driver answers, cpu otherwise.
func executionProvider(getenv func(string) string, gpu func() bool) string {
	devices := getenv("NVIDIA_VISIBLE_DEVICES")
	if devices == "" || devices == "void" || devices == "none" {
		return ProviderCPU
	}
	if gpu() {
		return ProviderCUDA
	}
	return ProviderCPU
}
