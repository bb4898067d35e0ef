package cast

import (
	"encoding/json"
	"fmt"

	"castplayd/internal/models"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const headerSchemaURL = "https://castplayd.local/schemas/header.schema.json"

const headerSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "width", "height"],
  "properties": {
    "version":   {"type": "integer", "minimum": 1},
    "width":     {"type": "integer", "minimum": 0},
    "height":    {"type": "integer", "minimum": 0},
    "timestamp": {"type": "integer"},
    "title":     {"type": "string"},
    "env": {
      "type": "object",
      "additionalProperties": {"type": ["string", "null"]}
    }
  }
}`

var compiledHeaderSchema = jsonschema.MustCompileString(headerSchemaURL, headerSchema)

// knownHeaderFields are decoded into models.RecordingHeader; everything else is carried in extra.
var knownHeaderFields = []string{"version", "width", "height", "timestamp", "title", "env"}

// Header is the recording header plus any fields this package does not interpret
// (duration, theme, idle_time_limit, ...), kept so that export does not lose them.
type Header struct {
	models.RecordingHeader
	extra map[string]json.RawMessage
}

// EmptyHeader is the header reported for recordings that failed to parse.
func EmptyHeader() Header {
	return Header{RecordingHeader: models.RecordingHeader{Version: 2}}
}

// UnmarshalJSON decodes the header, keeping unknown fields.
func (h *Header) UnmarshalJSON(b []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	var base models.RecordingHeader
	if err := json.Unmarshal(b, &base); err != nil {
		return err
	}
	for _, k := range knownHeaderFields {
		delete(all, k)
	}
	h.RecordingHeader = base
	h.extra = nil
	if len(all) > 0 {
		h.extra = all
	}
	return nil
}

// MarshalJSON encodes the header including preserved unknown fields.
func (h Header) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(h.RecordingHeader)
	if err != nil || len(h.extra) == 0 {
		return base, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(base, &all); err != nil {
		return nil, err
	}
	for k, v := range h.extra {
		all[k] = v
	}
	return json.Marshal(all)
}

// Extra returns a preserved header field that this package does not interpret.
func (h Header) Extra(name string) (json.RawMessage, bool) {
	v, ok := h.extra[name]
	return v, ok
}

// decodeHeader validates the header line against the header schema and decodes it.
func decodeHeader(line []byte) (Header, error) {
	var doc interface{}
	if err := json.Unmarshal(line, &doc); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if err := compiledHeaderSchema.Validate(doc); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	return h, nil
}
