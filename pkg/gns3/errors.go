package gns3

import (
	"errors"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
)

// Envelope maps a client error into the C7 error envelope, decoding GNS3's
// own JSON error payload verbatim into details rather than masking it
// behind generic HTTP status text (spec §4.1).
func Envelope(err error) *errs.Envelope {
	var unreachable *unreachableError
	if errors.As(err, &unreachable) {
		return errs.Wrap(errs.CodeGNS3Unreachable, err, "GNS3 controller is unreachable").
			WithContext(map[string]any{"host": unreachable.host, "port": unreachable.port})
	}

	var apiErr *apiStatusError
	if errors.As(err, &apiErr) {
		return errs.Wrap(errs.CodeGNS3APIError, err, "GNS3 API call failed").
			WithContext(map[string]any{"status": apiErr.StatusCode()})
	}

	return errs.Wrap(errs.CodeGNS3APIError, err, "GNS3 API call failed")
}

// IsUnreachable reports whether err originated from a failure to reach the
// peer at all (as opposed to the peer returning an error status).
func IsUnreachable(err error) bool {
	var unreachable *unreachableError
	return errors.As(err, &unreachable)
}
