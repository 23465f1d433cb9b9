package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FileSource reads the service-account key from a local file. The file must
// not be readable by group or world.
type FileSource struct {
	filePath string
}

// Compile-time check to ensure FileSource implements Source
var _ Source = (*FileSource)(nil)

// NewFileSource creates a FileSource for the given path.
func NewFileSource(filePath string) (*FileSource, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	return &FileSource{
		filePath: filePath,
	}, nil
}

// Read returns the key file contents after trimming whitespace. Returns
// error if the file doesn't exist, is empty, or has insecure permissions.
func (f *FileSource) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Check file permissions before reading
	info, err := os.Stat(f.filePath)
	if err != nil {
		return "", err
	}
	if info.Mode().Perm()&0o077 != 0 {
		return "", fmt.Errorf("insecure permissions on %s: %04o (must not be group/world accessible)", f.filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return "", err
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("empty key file %s", f.filePath)
	}
	return key, nil
}
