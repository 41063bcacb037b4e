package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name is the content subtype the channel service is invoked with. The wire
// format is field-tagged JSON end to end, so the transport frames envelopes
// with JSON as well instead of pulling in generated protos.
const Name = "json"

func init() { encoding.RegisterCodec(codec{}) }

type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (codec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (codec) Name() string { return Name }
