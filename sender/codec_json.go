package sender

import "encoding/json"

// JSONCodec encodes delivery envelopes as JSON.
type JSONCodec struct{}

func (c *JSONCodec) Encode(d *Delivery) ([]byte, error) {
	return json.Marshal(d)
}

func (c *JSONCodec) ContentType() string { return "application/json" }

func (c *JSONCodec) Name() string { return CodecNameJSON }
