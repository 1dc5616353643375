package session

import (
	"errors"

	"github.com/abhisek/chemgen/internal/attachment"
	"github.com/abhisek/chemgen/internal/llm"
	"github.com/abhisek/chemgen/internal/questiongen"
)

var (
	// ErrBusy is returned when Generate, Regenerate or Critique is called
	// while another of them is in flight.
	ErrBusy = errors.New("another AI request is in flight")

	// ErrTransformInFlight is returned when the item already has a
	// Transform outstanding.
	ErrTransformInFlight = errors.New("transform already in flight for this item")

	// ErrNotFound is returned for an unknown item ID.
	ErrNotFound = errors.New("item not found")

	// ErrItemRemoved is returned when the item was removed while its
	// request was in flight. The response is discarded.
	ErrItemRemoved = errors.New("item removed before the response arrived")

	// ErrItemChanged is returned when the item's question was replaced
	// while a request computed from the old one was in flight. The
	// response is discarded.
	ErrItemChanged = errors.New("item changed before the response arrived")
)

// User-visible messages.
const (
	MsgAuthentication = "Missing or invalid API key. Check the environment configuration."
	MsgCommunication  = "Communication error with the AI service. Please try again."
	MsgMalformed      = "Could not process the AI data. Try again with clearer input."
	MsgAttachment     = "Could not read the attached file."
	MsgInvalid        = "This action is not available for the current state."
	MsgBusy           = "Another request is already running."
	MsgRemoved        = "The question was removed before the response arrived."
	MsgChanged        = "The question changed before the response arrived. Please try again."
	MsgNoResults      = "No questions were found in the input."
)

// UserMessage converts an operation error into the text shown to users.
// Raw model output and internal details never reach it.
func UserMessage(err error) string {
	var (
		attachErr    *attachment.AttachmentReadError
		unsupported  *llm.ErrUnsupportedAttachment
		malformedErr *questiongen.MalformedResponseError
		invalidErr   *questiongen.InvalidOperationError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &attachErr), errors.As(err, &unsupported):
		return MsgAttachment
	case llm.IsAuthentication(err):
		return MsgAuthentication
	case errors.As(err, &malformedErr):
		return MsgMalformed
	case errors.As(err, &invalidErr), errors.Is(err, ErrNotFound):
		return MsgInvalid
	case errors.Is(err, ErrBusy), errors.Is(err, ErrTransformInFlight):
		return MsgBusy
	case errors.Is(err, ErrItemRemoved):
		return MsgRemoved
	case errors.Is(err, ErrItemChanged):
		return MsgChanged
	default:
		return MsgCommunication
	}
}
