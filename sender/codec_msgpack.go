package sender

import "github.com/vmihailenco/msgpack/v5"

// MsgpackCodec encodes delivery envelopes as MessagePack.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(d *Delivery) ([]byte, error) {
	return msgpack.Marshal(d)
}

func (c *MsgpackCodec) ContentType() string { return "application/msgpack" }

func (c *MsgpackCodec) Name() string { return CodecNameMsgpack }
