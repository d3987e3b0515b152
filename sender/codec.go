package sender

// Codec defines the serialization contract for delivery envelopes.
type Codec interface {
	// Encode serializes a delivery envelope to bytes.
	Encode(d *Delivery) ([]byte, error)

	// ContentType returns the MIME type advertised on the wire.
	ContentType() string

	// Name returns the codec identifier (e.g., "json", "msgpack").
	Name() string
}

// CodecName constants for configuration.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to JSON.
func GetCodec(name string) Codec {
	switch name {
	case CodecNameMsgpack:
		return &MsgpackCodec{}
	case CodecNameJSON, "":
		return &JSONCodec{}
	default:
		return &JSONCodec{}
	}
}
