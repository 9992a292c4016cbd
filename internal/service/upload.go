package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedFileType = errors.New("file type not allowed")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUploadNotFound      = errors.New("upload not found")
)

// AllowedImageExtensions are the accepted upload extensions (lower case, no dot).
var AllowedImageExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}

// UploadURLPrefix is where stored uploads are served from.
const UploadURLPrefix = "/static/uploads/"

// Upload describes a stored image.
type Upload struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// UploadService stores overlay images on local disk.
type UploadService struct {
	log      *zap.Logger
	dir      string
	maxBytes int64
	newID    func() string
}

func NewUploadService(log *zap.Logger, dir string, maxBytes int64) *UploadService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UploadService{
		log:      log.Named("upload_service"),
		dir:      dir,
		maxBytes: maxBytes,
		newID:    uuid.NewString,
	}
}

// MaxBytes is the per-file size limit.
func (s *UploadService) MaxBytes() int64 { return s.maxBytes }

// EnsureDir creates the upload directory.
func (s *UploadService) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir %q: %w", s.dir, err)
	}
	return nil
}

// Save stores r under "<uuid>_<sanitized name>". The extension must be an
// allowed image type and the content must sniff as an image.
func (s *UploadService) Save(filename string, r io.Reader) (Upload, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !allowedExt(ext) {
		return Upload{}, fmt.Errorf("%w: %q", ErrUnsupportedFileType, filename)
	}

	// Peek for content sniffing, then stream the rest.
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Upload{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 || !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return Upload{}, fmt.Errorf("%w: content is not an image", ErrUnsupportedFileType)
	}

	name := s.newID() + "_" + SecureFilename(filename)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return Upload{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after rename

	src := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxBytes+1)
	written, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Upload{}, fmt.Errorf("write upload: %w", err)
	}
	if written > s.maxBytes {
		return Upload{}, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.maxBytes)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return Upload{}, fmt.Errorf("store upload: %w", err)
	}

	s.log.Info("image uploaded", zap.String("filename", name), zap.Int64("bytes", written))
	return Upload{URL: UploadURLPrefix + name, Filename: name}, nil
}

// Open resolves a stored upload by name for serving.
func (s *UploadService) Open(name string) (*os.File, fs.FileInfo, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, nil, ErrUploadNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrUploadNotFound
		}
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil || !fi.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrUploadNotFound
	}
	return f, fi, nil
}

func allowedExt(ext string) bool {
	for _, a := range AllowedImageExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	whitespaceRun       = regexp.MustCompile(`\s+`)
)

// SecureFilename reduces a client file name to a safe ASCII base name:
// separators become spaces, whitespace runs become "_", anything outside
// [A-Za-z0-9_.-] is dropped, and leading/trailing "._" are trimmed.
func SecureFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return "image"
	}
	return name
}
