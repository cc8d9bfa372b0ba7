package transcriber

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Model describes a downloadable recognition model.
type Model struct {
	Name        string // Tier name, or "streaming"
	FileName    string // ggml file, or directory for archives
	Size        string // Human-readable size
	Description string
	URL         string // Download URL
	IsArchive   bool   // tar.bz2 extracted into FileName
}

// StreamingModelName names the streaming model in the catalog.
const StreamingModelName = "streaming"

// Models lists the whisper.cpp model behind each tier, then the default
// streaming model.
var Models = []Model{
	{
		Name:        string(TierBase),
		FileName:    "ggml-base.bin",
		Size:        "148MB",
		Description: "Fastest, good for quick drafts",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
	},
	{
		Name:        string(TierSmall),
		FileName:    "ggml-small.bin",
		Size:        "488MB",
		Description: "Balanced for most uses",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
	},
	{
		Name:        string(TierMedium),
		FileName:    "ggml-medium.bin",
		Size:        "1.5GB",
		Description: "Higher accuracy",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
	},
	{
		Name:        string(TierLarge),
		FileName:    "ggml-large-v3.bin",
		Size:        "3.1GB",
		Description: "Highest accuracy, slowest",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
	},
	{
		Name:        StreamingModelName,
		FileName:    "sherpa-onnx-streaming-zipformer-en",
		Size:        "296MB",
		Description: "Streaming zipformer transducer (English)",
		URL:         "https://github.com/k2-fsa/sherpa-onnx/releases/download/asr-models/sherpa-onnx-streaming-zipformer-en-2023-06-26.tar.bz2",
		IsArchive:   true,
	},
}

// GetModel returns a model by name.
func GetModel(name string) *Model {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, m := range Models {
		if m.Name == name {
			return &m
		}
	}
	return nil
}

// ModelInfo contains model info with download status.
type ModelInfo struct {
	Name        string `json:"name"`
	Size        string `json:"size"`
	Description string `json:"description"`
	Advisory    string `json:"advisory,omitempty"`
	Downloaded  bool   `json:"downloaded"`
}

// ProgressFunc reports download progress. total is -1 when unknown.
type ProgressFunc func(current, total int64)

// ModelManager handles model downloads and caching.
type ModelManager struct {
	modelsDir string
	client    *http.Client
}

// NewModelManager creates a new model manager.
func NewModelManager(modelsDir string) *ModelManager {
	return &ModelManager{modelsDir: modelsDir, client: http.DefaultClient}
}

// ModelsDir returns the directory models are stored in.
func (m *ModelManager) ModelsDir() string {
	return m.modelsDir
}

// ModelPath returns the path of a model by name. Absolute paths and
// unknown names are resolved against the models directory as files.
func (m *ModelManager) ModelPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if model := GetModel(name); model != nil {
		return filepath.Join(m.modelsDir, model.FileName)
	}
	return filepath.Join(m.modelsDir, name)
}

// TierPath returns the ggml file for a batch tier.
func (m *ModelManager) TierPath(tier Tier) string {
	return m.ModelPath(string(tier))
}

// IsModelDownloaded checks if a model is already downloaded.
func (m *ModelManager) IsModelDownloaded(name string) bool {
	info, err := os.Stat(m.ModelPath(name))
	if err != nil {
		return false
	}
	if model := GetModel(name); model != nil && model.IsArchive {
		return info.IsDir()
	}
	return !info.IsDir() && info.Size() > 0
}

// ListAvailableModels returns info about all catalog models.
func (m *ModelManager) ListAvailableModels() []ModelInfo {
	result := make([]ModelInfo, 0, len(Models))
	for _, model := range Models {
		result = append(result, ModelInfo{
			Name:        model.Name,
			Size:        model.Size,
			Description: model.Description,
			Advisory:    Tier(model.Name).Advisory(),
			Downloaded:  m.IsModelDownloaded(model.Name),
		})
	}
	return result
}

// EnsureModel downloads a model if not already present and returns its path.
func (m *ModelManager) EnsureModel(ctx context.Context, name string, progress ProgressFunc) (string, error) {
	path := m.ModelPath(name)
	if m.IsModelDownloaded(name) {
		return path, nil
	}

	model := GetModel(name)
	if model == nil {
		return "", fmt.Errorf("unknown model: %s", name)
	}
	if err := m.Download(ctx, model, progress); err != nil {
		return "", err
	}
	return path, nil
}

// Download fetches a model into the models directory. Single files are
// written to a temp name and renamed into place.
func (m *ModelManager) Download(ctx context.Context, model *Model, progress ProgressFunc) error {
	if err := os.MkdirAll(m.modelsDir, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, model.URL, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download model: HTTP %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if progress != nil {
		body = &progressReader{r: resp.Body, total: resp.ContentLength, report: progress}
	}

	if model.IsArchive {
		return m.extractTarBz2(body, model.FileName)
	}

	destPath := filepath.Join(m.modelsDir, model.FileName)
	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename model file: %w", err)
	}
	return nil
}

type progressReader struct {
	r       io.Reader
	current int64
	total   int64
	report  ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.current += int64(n)
		p.report(p.current, p.total)
	}
	return n, err
}

// extractTarBz2 extracts a tar.bz2 archive, renaming the root directory to targetDir.
func (m *ModelManager) extractTarBz2(r io.Reader, targetDir string) error {
	tarReader := tar.NewReader(bzip2.NewReader(r))

	target := filepath.Join(m.modelsDir, targetDir)
	staging := target + ".tmp"
	os.RemoveAll(staging)
	var rootDir string

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			os.RemoveAll(staging)
			return fmt.Errorf("failed to read tar: %w", err)
		}

		// Detect root directory from first entry
		if rootDir == "" {
			rootDir = strings.SplitN(header.Name, "/", 2)[0]
		}

		// Replace root directory name with our target name
		relPath := strings.TrimPrefix(strings.TrimPrefix(header.Name, rootDir), "/")
		destPath := filepath.Join(staging, relPath)
		if !strings.HasPrefix(destPath, staging) {
			os.RemoveAll(staging)
			return fmt.Errorf("archive entry escapes target: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0755); err != nil {
				os.RemoveAll(staging)
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeArchiveFile(destPath, tarReader); err != nil {
				os.RemoveAll(staging)
				return err
			}
		}
	}

	os.RemoveAll(target)
	return os.Rename(staging, target)
}

func writeArchiveFile(destPath string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	return file.Close()
}

// FormatBytes formats bytes to human readable string
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
