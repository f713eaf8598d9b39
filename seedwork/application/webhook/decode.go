// Package webhook holds the shared request-decoding glue every
// webhook handler uses: read the body, run it through the
// Message Envelope Decoder, and map decode failures onto the
// propagation policy (4xx so the broker redelivers a message
// the system never durably processed).
package webhook

import (
	"io"
	"net/http"

	"teammate/server/seedwork/domain"
	"teammate/server/seedwork/infrastructure/events"

	"github.com/gin-gonic/gin"
)

// ReadEnvelope reads the raw request body and decodes it via
// events.Decode. On failure it writes the appropriate error response
// itself and returns ok=false; callers should return immediately.
func ReadEnvelope(c *gin.Context) (body []byte, env events.DecodedEnvelope, ok bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return nil, events.DecodedEnvelope{}, false
	}

	env, err = events.Decode(body)
	if err != nil {
		RespondDecodeError(c, err)
		return nil, events.DecodedEnvelope{}, false
	}

	return body, env, true
}

// RespondDecodeError maps a decode/validation error onto an HTTP status.
// MalformedEnvelope and MissingField are boundary failures the broker
// should redeliver (the system never durably recorded the message), so
// they get 4xx. Anything else is an unrecoverable internal error and
// gets 500.
func RespondDecodeError(c *gin.Context, err error) {
	if de, ok := err.(*domain.DomainError); ok {
		switch de.Code {
		case domain.CodeMalformedEnvelope, domain.CodeMissingField:
			c.JSON(http.StatusBadRequest, gin.H{"error": de.Message})
			return
		case domain.CodeNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": de.Message})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
