/*
 * Copyright 2026 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package v1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// CodecName is the content subtype of the messages of the service.
const CodecName = "livesync"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec encodes the messages of api/types as protobuf frames. A message is
// encoded as JSON and carried in a google.protobuf.BytesValue, which keeps
// the raw event arguments and the 64-bit numbers intact. Protobuf messages
// are encoded as they are.
type Codec struct{}

// Marshal returns the wire encoding of v.
func (Codec) Marshal(v interface{}) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		b, err := proto.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("marshal %T: %w", v, err)
		}
		return b, nil
	}

	doc, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	b, err := proto.Marshal(wrapperspb.Bytes(doc))
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return b, nil
}

// Unmarshal parses the wire encoded data into v.
func (Codec) Unmarshal(data []byte, v interface{}) error {
	if m, ok := v.(proto.Message); ok {
		if err := proto.Unmarshal(data, m); err != nil {
			return fmt.Errorf("unmarshal %T: %w", v, err)
		}
		return nil
	}

	frame := &wrapperspb.BytesValue{}
	if err := proto.Unmarshal(data, frame); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	if err := json.Unmarshal(frame.GetValue(), v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

// Name returns the name of the codec.
func (Codec) Name() string {
	return CodecName
}
