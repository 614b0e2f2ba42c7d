package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

const MaxImageSize = 10 << 20 // 10 MB

var (
	ErrFileTooLarge       = errors.New("file exceeds the 10MB size limit")
	ErrUnsupportedFormat  = errors.New("unsupported image format, use jpg, jpeg, png or webp")
	ErrEmptyFile          = errors.New("uploaded file is empty")
	allowedExtensions     = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}
	allowedContentPrefix  = "image/"
	allowedContentTypes   = map[string]bool{"image/jpeg": true, "image/png": true, "image/webp": true}
)

// Store saves uploaded plant photos under a per-user directory and hands
// back relative paths suitable for persisting in the database.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) BaseDir() string {
	return s.baseDir
}

// ValidateImage checks size, extension and sniffed content type.
func ValidateImage(header *multipart.FileHeader) error {
	if header.Size == 0 {
		return ErrEmptyFile
	}
	if header.Size > MaxImageSize {
		return ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		return ErrUnsupportedFormat
	}

	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read uploaded file: %w", err)
	}

	contentType := http.DetectContentType(buf[:n])
	if !strings.HasPrefix(contentType, allowedContentPrefix) || !allowedContentTypes[contentType] {
		return ErrUnsupportedFormat
	}

	return nil
}

// Save writes the file under <base>/<userID>/ with a unique name and
// returns the path relative to the base directory.
func (s *Store) Save(userID uuid.UUID, header *multipart.FileHeader) (string, error) {
	if err := ValidateImage(header); err != nil {
		return "", err
	}

	userDir := filepath.Join(s.baseDir, userID.String())
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create user directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	name := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.Must(uuid.NewV4()).String()[:8], ext)
	dst := filepath.Join(userDir, name)

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return filepath.Join(userID.String(), name), nil
}

// Delete removes a stored file. Missing files are not an error, deletion
// is idempotent.
func (s *Store) Delete(relPath string) error {
	// Reject anything trying to escape the base directory.
	clean := filepath.Clean(relPath)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("invalid file path: %s", relPath)
	}

	err := os.Remove(filepath.Join(s.baseDir, clean))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Open returns the absolute path of a stored file if it exists.
func (s *Store) Open(relPath string) (string, error) {
	clean := filepath.Clean(relPath)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid file path: %s", relPath)
	}

	abs := filepath.Join(s.baseDir, clean)
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}
