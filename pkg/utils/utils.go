package utils

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
)

var (
	ErrNoFile       = errors.New("no file uploaded")
	ErrFileTooLarge = errors.New("file size exceeds limit")
	ErrNotImage     = errors.New("uploaded file is not an image")
	ErrEmptyImage   = errors.New("image has no pixels")
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	ValidateImageBytes(data []byte) error
	ReadFile(file multipart.File) ([]byte, error)
	DecodeBase64Image(encoded string) ([]byte, error)
	PrepareFrame(data []byte, opts FrameOptions) (*Frame, error)
}

// FrameOptions controls how an upload is shaped before landmark extraction.
// Images whose larger side exceeds MaxDimension are resized to exactly
// TargetWidth x TargetHeight.
type FrameOptions struct {
	MaxDimension int
	TargetWidth  int
	TargetHeight int
	JPEGQuality  int
}

func DefaultFrameOptions() FrameOptions {
	return FrameOptions{
		MaxDimension: 1000,
		TargetWidth:  640,
		TargetHeight: 480,
		JPEGQuality:  90,
	}
}

type Frame struct {
	Image   image.Image
	Format  string
	Width   int
	Height  int
	Resized bool
	JPEG    []byte
}

type utils struct {
	maxFileSize int64
}

func New(maxFileSize int64) IUtils {
	if maxFileSize <= 0 {
		maxFileSize = 5 * 1024 * 1024
	}
	return &utils{
		maxFileSize: maxFileSize,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	if file.Size > u.maxFileSize {
		return ErrFileTooLarge
	}

	contentType := file.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" && !strings.HasPrefix(contentType, "image/") {
		return ErrNotImage
	}

	return nil
}

// ValidateImageBytes checks size and sniffs the content rather than
// trusting a client supplied content type.
func (u *utils) ValidateImageBytes(data []byte) error {
	if len(data) == 0 {
		return ErrNoFile
	}
	if int64(len(data)) > u.maxFileSize {
		return ErrFileTooLarge
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return ErrNotImage
	}
	return nil
}

func (u *utils) ReadFile(file multipart.File) ([]byte, error) {
	return io.ReadAll(io.LimitReader(file, u.maxFileSize+1))
}

func (u *utils) DecodeBase64Image(encoded string) ([]byte, error) {
	// Accept data URLs as sent by browsers.
	if i := strings.Index(encoded, ","); i != -1 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+1:]
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	return data, nil
}

func (u *utils) PrepareFrame(data []byte, opts FrameOptions) (*Frame, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, ErrEmptyImage
	}

	frame := &Frame{Format: format}
	if opts.MaxDimension > 0 && max(bounds.Dx(), bounds.Dy()) > opts.MaxDimension {
		img = imaging.Resize(img, opts.TargetWidth, opts.TargetHeight, imaging.Linear)
		frame.Resized = true
	}

	frame.Image = img
	frame.Width = img.Bounds().Dx()
	frame.Height = img.Bounds().Dy()

	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = 90
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	frame.JPEG = buf.Bytes()

	return frame, nil
}
