// Package cos provides common low-level types and utilities shared by the
// controller's packages.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/teris-io/shortid"
)

const (
	// WriterIDSize is the wire-fixed size of an overlay peer identity (§3, §6).
	WriterIDSize = 16
)

// 64-character alphabet for shortid, mirroring the upstream default shape.
const shortIDABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var sid *shortid.Shortid

func InitShortID(seed uint64) {
	sid = shortid.MustNew(1 /*worker*/, shortIDABC, seed)
}

// GenShortID returns a short, locally-unique string - used for pull-protocol
// transaction ids and coordinator request correlation, never for anything
// requiring global uniqueness guarantees.
func GenShortID() string {
	if sid == nil {
		InitShortID(1)
	}
	id, err := sid.Generate()
	if err != nil {
		// shortid's generator never errors on this set of inputs; fall back
		// to a random hex string rather than panic.
		var b [6]byte
		rand.Read(b[:])
		return hex.EncodeToString(b[:])
	}
	return id
}

// WriterID is the overlay's 16-byte opaque peer identity (§3: "Peer
// record").
type WriterID [WriterIDSize]byte

func NewWriterID() WriterID {
	var w WriterID
	if _, err := rand.Read(w[:]); err != nil {
		panic(fmt.Sprintf("cos: cannot seed writer id: %v", err))
	}
	return w
}

func (w WriterID) String() string { return hex.EncodeToString(w[:]) }

func (w WriterID) IsZero() bool { return w == WriterID{} }
