// Package codec serializes journal records for byte-oriented backends.
//
// Backends never call a JSON library directly: they encode through a Codec so that
// middlewares (encryption at rest) apply uniformly to every backend.
package codec

import (
	"github.com/aretw0/wflow/internal/xjson"
)

// Codec turns journal records into bytes and back.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// Middleware decorates a Codec.
type Middleware func(Codec) Codec

// Chain applies middlewares so that the first one is the outermost layer.
func Chain(base Codec, mws ...Middleware) Codec {
	c := base
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

type jsonCodec struct{}

// JSON returns the default codec.
func JSON() Codec {
	return jsonCodec{}
}

func (jsonCodec) Encode(v any) ([]byte, error) {
	return xjson.Marshal(v)
}

func (jsonCodec) Decode(data []byte, v any) error {
	return xjson.Unmarshal(data, v)
}
