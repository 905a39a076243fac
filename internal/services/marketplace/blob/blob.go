// Package blob stores uploaded listing images under owner-scoped paths.
package blob

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/Kingl1tz/shoppal/internal/platform/id"
)

// MaxImageBytes bounds one uploaded image.
const MaxImageBytes = 5 << 20

// sniffBytes is how much of a body http.DetectContentType considers.
const sniffBytes = 512

var (
	// ErrNotFound indicates no object exists at the path.
	ErrNotFound = errors.New("blob not found")
	// ErrTooLarge indicates the body exceeded MaxImageBytes.
	ErrTooLarge = errors.New("blob too large")
	// ErrUnsupportedType indicates the content type is not an accepted image.
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrInvalidPath indicates a path that escapes its owner prefix.
	ErrInvalidPath = errors.New("invalid blob path")
)

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

var extensionTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Object is an open stored object.
type Object struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// Store persists objects and returns their public URL.
type Store interface {
	Put(ctx context.Context, objectPath string, contentType string, body io.Reader) (string, error)
	Open(ctx context.Context, objectPath string) (Object, error)
}

// ImageContentType resolves the accepted image type from the declared
// content type, falling back to the filename extension.
func ImageContentType(contentType, filename string) (string, error) {
	if mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(contentType)); err == nil {
		if _, ok := imageExtensions[mediaType]; ok {
			return mediaType, nil
		}
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.TrimSpace(filename)), "."))
	if resolved, ok := extensionTypes[ext]; ok {
		return resolved, nil
	}
	return "", ErrUnsupportedType
}

// SniffImage checks that body starts with the signature of imageType. The
// returned reader yields the full body, including the inspected prefix.
func SniffImage(body io.Reader, imageType string) (io.Reader, error) {
	buffered := bufio.NewReaderSize(body, sniffBytes)
	head, err := buffered.Peek(sniffBytes)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read image header: %w", err)
	}
	detected, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	if detected != imageType {
		return nil, fmt.Errorf("%w: body looks like %s", ErrUnsupportedType, detected)
	}
	return buffered, nil
}

// ImagePath returns a fresh owner-scoped object path for contentType.
func ImagePath(ownerID, contentType string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" || strings.ContainsAny(ownerID, `/\`) || ownerID == "." || ownerID == ".." {
		return "", ErrInvalidPath
	}
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	objectID, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate blob id: %w", err)
	}
	return ownerID + "/" + objectID + "." + ext, nil
}

// CleanPath validates a relative object path.
func CleanPath(objectPath string) (string, error) {
	objectPath = strings.TrimSpace(objectPath)
	if objectPath == "" || strings.HasPrefix(objectPath, "/") || strings.Contains(objectPath, `\`) {
		return "", ErrInvalidPath
	}
	for _, segment := range strings.Split(objectPath, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", ErrInvalidPath
		}
	}
	return objectPath, nil
}

// ContentTypeForPath infers the stored type from the object extension.
func ContentTypeForPath(objectPath string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(objectPath), "."))
	if contentType, ok := extensionTypes[ext]; ok {
		return contentType
	}
	return "application/octet-stream"
}

// PublicURL joins the serving base URL with an object path.
func PublicURL(baseURL, objectPath string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/blobs/" + objectPath
}

// LimitBody wraps body so reads past MaxImageBytes fail with ErrTooLarge.
func LimitBody(body io.Reader, limit int64) io.Reader {
	if limit <= 0 {
		limit = MaxImageBytes
	}
	return &limitedReader{r: io.LimitReader(body, limit+1), remaining: limit}
}

type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	return n, err
}
