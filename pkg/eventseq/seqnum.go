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

// Package eventseq provides the sequence numbers that identify events and
// give them a total order.
package eventseq

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// InitialGlobal is the global sequence of the root.
	InitialGlobal = 0

	// InitialClient is the client sequence of every globally ordered event.
	InitialClient = 0

	// InitialRebaseGeneration is the rebase generation of an event that has
	// never been rewritten.
	InitialRebaseGeneration = 0
)

var (
	// ErrInvalidSeqNum is returned when a string is not a valid sequence
	// number.
	ErrInvalidSeqNum = errors.New("invalid sequence number")
)

// Root is the universal ancestor of every event.
var Root = SeqNum{}

// SeqNum identifies an event. Global increments once per canonically ordered
// event, Client increments per client-only event nested under the same global
// parent, and RebaseGeneration increments each time the event is rewritten
// during a rebase.
type SeqNum struct {
	Global           uint64 `json:"global" bson:"global"`
	Client           uint32 `json:"client" bson:"client"`
	RebaseGeneration uint32 `json:"rebaseGeneration" bson:"rebase_generation"`
}

// New creates a new instance of SeqNum.
func New(global uint64, client uint32, rebaseGeneration uint32) SeqNum {
	return SeqNum{
		Global:           global,
		Client:           client,
		RebaseGeneration: rebaseGeneration,
	}
}

// Compare returns -1, 0 or 1 when a is smaller than, equal to or greater than
// b. Numbers are compared by global, then client, then rebase generation.
func Compare(a, b SeqNum) int {
	switch {
	case a.Global < b.Global:
		return -1
	case a.Global > b.Global:
		return 1
	case a.Client < b.Client:
		return -1
	case a.Client > b.Client:
		return 1
	case a.RebaseGeneration < b.RebaseGeneration:
		return -1
	case a.RebaseGeneration > b.RebaseGeneration:
		return 1
	}
	return 0
}

// IsGreaterThan returns whether a is strictly greater than b.
func IsGreaterThan(a, b SeqNum) bool {
	return Compare(a, b) > 0
}

// IsEqual returns whether a and b are the same sequence number.
func IsEqual(a, b SeqNum) bool {
	return a == b
}

// Max returns the greatest of the given numbers, or Root if none are given.
func Max(seqs ...SeqNum) SeqNum {
	max := Root
	for _, seq := range seqs {
		if IsGreaterThan(seq, max) {
			max = seq
		}
	}
	return max
}

// Pair is a sequence number together with the number of its parent.
type Pair struct {
	Seq    SeqNum
	Parent SeqNum
}

// NextPair returns the number of the event that follows base, together with
// its parent. A globally ordered event always points at the client-zero
// position of its base so that client-only siblings never become ancestors
// of a global event. If rebaseGeneration is nil, a global event starts at
// generation zero and a client-only event inherits the generation of base.
func NextPair(base SeqNum, clientOnly bool, rebaseGeneration *uint32) Pair {
	if clientOnly {
		gen := base.RebaseGeneration
		if rebaseGeneration != nil {
			gen = *rebaseGeneration
		}
		return Pair{
			Seq:    New(base.Global, base.Client+1, gen),
			Parent: base,
		}
	}

	gen := uint32(InitialRebaseGeneration)
	if rebaseGeneration != nil {
		gen = *rebaseGeneration
	}
	return Pair{
		Seq:    New(base.Global+1, InitialClient, gen),
		Parent: New(base.Global, InitialClient, base.RebaseGeneration),
	}
}

// IsGlobal returns whether the number belongs to a globally ordered event.
func (s SeqNum) IsGlobal() bool {
	return s.Client == InitialClient
}

// SamePosition returns whether s and other point at the same (global, client)
// position, regardless of their rebase generations.
func (s SeqNum) SamePosition(other SeqNum) bool {
	return s.Global == other.Global && s.Client == other.Client
}

// String returns the string form `e<global>[+<client>][r<generation>]`.
func (s SeqNum) String() string {
	var sb strings.Builder
	sb.WriteString("e")
	sb.WriteString(strconv.FormatUint(s.Global, 10))
	if s.Client != InitialClient {
		sb.WriteString("+")
		sb.WriteString(strconv.FormatUint(uint64(s.Client), 10))
	}
	if s.RebaseGeneration != InitialRebaseGeneration {
		sb.WriteString("r")
		sb.WriteString(strconv.FormatUint(uint64(s.RebaseGeneration), 10))
	}
	return sb.String()
}

// FromString parses the string form produced by String.
func FromString(str string) (SeqNum, error) {
	if !strings.HasPrefix(str, "e") {
		return Root, fmt.Errorf("parse %q: %w", str, ErrInvalidSeqNum)
	}
	rest := str[1:]

	var genPart string
	if idx := strings.IndexByte(rest, 'r'); idx >= 0 {
		genPart = rest[idx+1:]
		rest = rest[:idx]
		if genPart == "" {
			return Root, fmt.Errorf("parse %q: %w", str, ErrInvalidSeqNum)
		}
	}

	var clientPart string
	if idx := strings.IndexByte(rest, '+'); idx >= 0 {
		clientPart = rest[idx+1:]
		rest = rest[:idx]
		if clientPart == "" {
			return Root, fmt.Errorf("parse %q: %w", str, ErrInvalidSeqNum)
		}
	}

	global, err := parseDigits(rest, 64)
	if err != nil {
		return Root, fmt.Errorf("parse %q: %w", str, ErrInvalidSeqNum)
	}

	var client, gen uint64
	if clientPart != "" {
		if client, err = parseDigits(clientPart, 32); err != nil || client == InitialClient {
			return Root, fmt.Errorf("parse %q: %w", str, ErrInvalidSeqNum)
		}
	}
	if genPart != "" {
		if gen, err = parseDigits(genPart, 32); err != nil || gen == InitialRebaseGeneration {
			return Root, fmt.Errorf("parse %q: %w", str, ErrInvalidSeqNum)
		}
	}

	return New(global, uint32(client), uint32(gen)), nil
}

// MustFromString is like FromString but panics on invalid input. It is meant
// for tests and constants.
func MustFromString(str string) SeqNum {
	seq, err := FromString(str)
	if err != nil {
		panic(err)
	}
	return seq
}

// parseDigits parses a canonical decimal: no sign, no leading zeros.
func parseDigits(str string, bitSize int) (uint64, error) {
	if str == "" || (len(str) > 1 && str[0] == '0') {
		return 0, ErrInvalidSeqNum
	}
	for _, c := range str {
		if c < '0' || c > '9' {
			return 0, ErrInvalidSeqNum
		}
	}
	return strconv.ParseUint(str, 10, bitSize)
}
