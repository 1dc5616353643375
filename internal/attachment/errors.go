package attachment

import (
	"errors"
	"fmt"
)

// ErrUnsupportedMediaType is wrapped by AttachmentReadError when a file is
// neither an image, a PDF nor a Word document.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// AttachmentReadError indicates a user-supplied file could not be read or
// converted.
type AttachmentReadError struct {
	Name string
	Err  error
}

func (e *AttachmentReadError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("read attachment: %v", e.Err)
	}
	return fmt.Sprintf("read attachment %q: %v", e.Name, e.Err)
}

func (e *AttachmentReadError) Unwrap() error { return e.Err }
