// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package bsoncore provides zero-copy access to raw BSON documents read off
// the wire, plus low-level Append* builders for assembling command bodies
// without an intermediate struct. This is the wire-level raw document type
// described in spec.md §4.5: downstream access to a cursor batch is by path
// into a single contiguous buffer, never by per-document allocation.
package bsoncore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformed indicates a document's length prefix or element encoding is
// internally inconsistent.
var ErrMalformed = errors.New("bsoncore: malformed document")

// Document is a raw, unparsed BSON document: the bytes are owned by whoever
// produced them (usually a wire-message read buffer) and are walked lazily.
type Document []byte

// NewDocumentBuilder starts building a new document, returning the index at
// which the document began (for AppendDocumentEnd/UpdateLength) and the
// buffer to append elements to.
func NewDocumentBuilder() (int32, []byte) {
	return AppendDocumentStart(nil)
}

// AppendDocumentStart reserves space for a document's length prefix and
// returns the index it starts at along with the extended buffer.
func AppendDocumentStart(dst []byte) (int32, []byte) {
	idx := int32(len(dst))
	return idx, append(dst, 0x00, 0x00, 0x00, 0x00)
}

// AppendDocumentEnd appends the trailing null byte and backfills the length
// prefix reserved by AppendDocumentStart.
func AppendDocumentEnd(dst []byte, idx int32) ([]byte, error) {
	if int(idx) < 0 || int(idx)+4 > len(dst) {
		return dst, fmt.Errorf("bsoncore: invalid document start index %d", idx)
	}
	dst = append(dst, 0x00)
	return UpdateLength(dst, idx, int32(len(dst))-idx), nil
}

// UpdateLength backfills a 4-byte little-endian length prefix at idx with
// length.
func UpdateLength(dst []byte, idx, length int32) []byte {
	binary.LittleEndian.PutUint32(dst[idx:], uint32(length))
	return dst
}

// BuildDocument appends elements (already-encoded, key-prefixed bytes) and
// closes the document.
func BuildDocument(dst []byte, elements []byte) []byte {
	idx, dst := AppendDocumentStart(dst)
	dst = append(dst, elements...)
	dst, _ = AppendDocumentEnd(dst, idx)
	return dst
}

// AppendHeader appends a BSON element header: the type byte followed by the
// NUL-terminated key.
func AppendHeader(dst []byte, t byte, key string) []byte {
	dst = append(dst, t)
	dst = append(dst, key...)
	return append(dst, 0x00)
}

func appendCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0x00)
}

// AppendDoubleElement appends a double element.
func AppendDoubleElement(dst []byte, key string, f float64) []byte {
	dst = AppendHeader(dst, byte(typeDouble), key)
	return appendDouble(dst, f)
}

func appendDouble(dst []byte, f float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(f))
	return append(dst, b...)
}

// AppendStringElement appends a string element.
func AppendStringElement(dst []byte, key, value string) []byte {
	dst = AppendHeader(dst, byte(typeString), key)
	return appendString(dst, value)
}

func appendString(dst []byte, s string) []byte {
	dst = appendInt32(dst, int32(len(s)+1))
	dst = append(dst, s...)
	return append(dst, 0x00)
}

// AppendDocumentElement appends a pre-built document as an element.
func AppendDocumentElement(dst []byte, key string, value []byte) []byte {
	dst = AppendHeader(dst, byte(typeEmbeddedDocument), key)
	return append(dst, value...)
}

// AppendDocumentElementStart starts a document element, returning the index
// for AppendDocumentEnd.
func AppendDocumentElementStart(dst []byte, key string) (int32, []byte) {
	dst = AppendHeader(dst, byte(typeEmbeddedDocument), key)
	return AppendDocumentStart(dst)
}

// AppendArrayElement appends a pre-built array as an element.
func AppendArrayElement(dst []byte, key string, value []byte) []byte {
	dst = AppendHeader(dst, byte(typeArray), key)
	return append(dst, value...)
}

// AppendArrayElementStart starts an array element, returning the index for
// AppendArrayEnd.
func AppendArrayElementStart(dst []byte, key string) (int32, []byte) {
	dst = AppendHeader(dst, byte(typeArray), key)
	return AppendDocumentStart(dst)
}

// AppendArrayEnd closes an array started with AppendArrayElementStart.
func AppendArrayEnd(dst []byte, idx int32) ([]byte, error) {
	return AppendDocumentEnd(dst, idx)
}

// AppendBinaryElement appends a binary element.
func AppendBinaryElement(dst []byte, key string, subtype byte, data []byte) []byte {
	dst = AppendHeader(dst, byte(typeBinary), key)
	dst = appendInt32(dst, int32(len(data)))
	dst = append(dst, subtype)
	return append(dst, data...)
}

// AppendObjectIDElement appends an ObjectID element.
func AppendObjectIDElement(dst []byte, key string, id [12]byte) []byte {
	dst = AppendHeader(dst, byte(typeObjectID), key)
	return append(dst, id[:]...)
}

// AppendBooleanElement appends a boolean element.
func AppendBooleanElement(dst []byte, key string, b bool) []byte {
	dst = AppendHeader(dst, byte(typeBoolean), key)
	if b {
		return append(dst, 0x01)
	}
	return append(dst, 0x00)
}

// AppendDateTimeElement appends a UTC datetime element (ms since epoch).
func AppendDateTimeElement(dst []byte, key string, dt int64) []byte {
	dst = AppendHeader(dst, byte(typeDateTime), key)
	return appendInt64(dst, dt)
}

// AppendNullElement appends a null element.
func AppendNullElement(dst []byte, key string) []byte {
	return AppendHeader(dst, byte(typeNull), key)
}

// AppendRegexElement appends a regex element.
func AppendRegexElement(dst []byte, key, pattern, options []byte) []byte {
	dst = AppendHeader(dst, byte(typeRegex), string(key))
	dst = appendCString(dst, string(pattern))
	return appendCString(dst, string(options))
}

// AppendInt32Element appends an int32 element.
func AppendInt32Element(dst []byte, key string, i int32) []byte {
	dst = AppendHeader(dst, byte(typeInt32), key)
	return appendInt32(dst, i)
}

func appendInt32(dst []byte, i int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(i))
	return append(dst, b...)
}

// AppendTimestampElement appends a timestamp element: a uint32 increment
// followed by a uint32 seconds-since-epoch value, per the BSON wire format.
func AppendTimestampElement(dst []byte, key string, t, i uint32) []byte {
	dst = AppendHeader(dst, byte(typeTimestamp), key)
	dst = appendUint32(dst, i)
	return appendUint32(dst, t)
}

func appendUint32(dst []byte, i uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, i)
	return append(dst, b...)
}

// AppendInt64Element appends an int64 element.
func AppendInt64Element(dst []byte, key string, i int64) []byte {
	dst = AppendHeader(dst, byte(typeInt64), key)
	return appendInt64(dst, i)
}

func appendInt64(dst []byte, i int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(i))
	return append(dst, b...)
}

// AppendDecimal128Element appends a decimal128 element from its raw words.
func AppendDecimal128Element(dst []byte, key string, h, l uint64) []byte {
	dst = AppendHeader(dst, byte(typeDecimal128), key)
	dst = appendUint64(dst, l)
	return appendUint64(dst, h)
}

func appendUint64(dst []byte, i uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, i)
	return append(dst, b...)
}

// AppendMinKeyElement appends a min-key element.
func AppendMinKeyElement(dst []byte, key string) []byte { return AppendHeader(dst, 0xFF, key) }

// AppendMaxKeyElement appends a max-key element.
func AppendMaxKeyElement(dst []byte, key string) []byte { return AppendHeader(dst, 0x7F, key) }

// ReadLength reads a 4-byte little-endian length prefix from the front of
// src, returning the remaining bytes.
func ReadLength(src []byte) (int32, []byte, bool) {
	if len(src) < 4 {
		return 0, src, false
	}
	return int32(binary.LittleEndian.Uint32(src)), src[4:], true
}
