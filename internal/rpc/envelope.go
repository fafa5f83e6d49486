package rpc

import (
	"encoding/binary"
	"errors"
)

const (
	tagResponse byte = 0
	tagRequest  byte = 1

	requestHeaderLen  = 17 // tag(1) + request_id(8) + call_id(4) + deadline_millis(4)
	responseHeaderLen = 10 // tag(1) + request_id(8) + status_code(1)
)

// ErrMalformedFrame is returned by Decode* when a frame is too short, a
// length prefix would overrun the buffer, or a status code falls outside
// the enumerated range. Non-fatal: the offending frame is dropped by the
// caller.
var ErrMalformedFrame = errors.New("rpc: malformed frame")

// ErrWrongTag is returned when DecodeRequest/DecodeResponse is called on a
// buffer whose tag byte identifies the other envelope type.
var ErrWrongTag = errors.New("rpc: tag does not match expected envelope type")

// RequestHeader is the decoded form of the request envelope.
type RequestHeader struct {
	RequestID      uint64
	CallID         uint32
	DeadlineMillis uint32
	Payload        []byte
}

// ResponseHeader is the decoded form of the response envelope.
type ResponseHeader struct {
	RequestID    uint64
	Status       StatusCode
	ErrorMessage string
	ErrorDetails string
	Payload      []byte
}

// IsRequest reports whether raw's tag byte identifies a request envelope.
// The tag disambiguates request vs response without any other state.
func IsRequest(raw []byte) bool { return len(raw) > 0 && raw[0] == tagRequest }

// EncodeRequest serializes a request envelope, big-endian, bit-exact.
func EncodeRequest(requestID uint64, callID, deadlineMillis uint32, payload []byte) []byte {
	buf := make([]byte, requestHeaderLen+len(payload))
	buf[0] = tagRequest
	binary.BigEndian.PutUint64(buf[1:9], requestID)
	binary.BigEndian.PutUint32(buf[9:13], callID)
	binary.BigEndian.PutUint32(buf[13:17], deadlineMillis)
	copy(buf[requestHeaderLen:], payload)
	return buf
}

// DecodeRequest parses a request envelope. Payload aliases raw.
func DecodeRequest(raw []byte) (RequestHeader, error) {
	if len(raw) < requestHeaderLen {
		return RequestHeader{}, ErrMalformedFrame
	}
	if raw[0] != tagRequest {
		return RequestHeader{}, ErrWrongTag
	}
	return RequestHeader{
		RequestID:      binary.BigEndian.Uint64(raw[1:9]),
		CallID:         binary.BigEndian.Uint32(raw[9:13]),
		DeadlineMillis: binary.BigEndian.Uint32(raw[13:17]),
		Payload:        raw[requestHeaderLen:],
	}, nil
}

// EncodeResponse serializes a response envelope, big-endian, bit-exact.
// Fails if status is outside the enumerated range.
func EncodeResponse(requestID uint64, status StatusCode, errMessage, errDetails string, payload []byte) ([]byte, error) {
	if !status.valid() {
		return nil, ErrMalformedFrame
	}
	total := responseHeaderLen + 4 + len(errMessage) + 4 + len(errDetails) + len(payload)
	buf := make([]byte, total)
	buf[0] = tagResponse
	binary.BigEndian.PutUint64(buf[1:9], requestID)
	buf[9] = byte(status)

	off := responseHeaderLen
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(errMessage)))
	off += 4
	off += copy(buf[off:], errMessage)
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(errDetails)))
	off += 4
	off += copy(buf[off:], errDetails)
	copy(buf[off:], payload)
	return buf, nil
}

// DecodeResponse parses a response envelope. ErrorMessage/ErrorDetails are
// copied out of raw (so the caller may discard raw); Payload aliases raw.
func DecodeResponse(raw []byte) (ResponseHeader, error) {
	if len(raw) < responseHeaderLen {
		return ResponseHeader{}, ErrMalformedFrame
	}
	if raw[0] != tagResponse {
		return ResponseHeader{}, ErrWrongTag
	}
	status := StatusCode(int8(raw[9]))
	if !status.valid() {
		return ResponseHeader{}, ErrMalformedFrame
	}

	off := responseHeaderLen
	msg, off, err := readLenPrefixed(raw, off)
	if err != nil {
		return ResponseHeader{}, err
	}
	details, off, err := readLenPrefixed(raw, off)
	if err != nil {
		return ResponseHeader{}, err
	}
	return ResponseHeader{
		RequestID:    binary.BigEndian.Uint64(raw[1:9]),
		Status:       status,
		ErrorMessage: msg,
		ErrorDetails: details,
		Payload:      raw[off:],
	}, nil
}

func readLenPrefixed(raw []byte, off int) (string, int, error) {
	if off+4 > len(raw) {
		return "", 0, ErrMalformedFrame
	}
	n := binary.BigEndian.Uint32(raw[off : off+4])
	off += 4
	if uint64(off)+uint64(n) > uint64(len(raw)) {
		return "", 0, ErrMalformedFrame
	}
	s := string(raw[off : off+int(n)])
	return s, off + int(n), nil
}
