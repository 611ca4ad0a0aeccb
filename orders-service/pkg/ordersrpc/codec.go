// Package ordersrpc is the public contract of the orders service: the gRPC service descriptor,
// its request and response messages, a typed client and the events published to Kafka.
//
// Messages travel as JSON through a codec registered under the "json" content subtype, so no
// generated protobuf code is needed on either side. orders.proto documents the same contract.
package ordersrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Codec is the content subtype both ends negotiate.
const Codec = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return Codec
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
