package mjpeg

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

// maxFrameBytes bounds a single JPEG part.
const maxFrameBytes = 8 << 20

// ErrNotMultipart is returned when the upstream response is not a multipart stream.
var ErrNotMultipart = errors.New("not a multipart stream")

// ReadFrames splits a multipart/x-mixed-replace body into JPEG frames and calls fn for each.
// It returns when the body ends or a part cannot be read; io.EOF is reported as nil.
func ReadFrames(body io.Reader, contentType string, fn func(jpg []byte)) error {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("content-type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return fmt.Errorf("%w: %s", ErrNotMultipart, mediaType)
	}
	b := strings.TrimPrefix(params["boundary"], "--")
	if b == "" {
		return fmt.Errorf("%w: missing boundary", ErrNotMultipart)
	}

	mr := multipart.NewReader(body, b)
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		data, err := io.ReadAll(io.LimitReader(part, maxFrameBytes+1))
		_ = part.Close()
		if err != nil {
			return err
		}
		if len(data) > maxFrameBytes {
			return fmt.Errorf("frame exceeds %d bytes", maxFrameBytes)
		}
		if ct := part.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
			continue
		}
		if len(data) == 0 {
			continue
		}
		fn(data)
	}
}
