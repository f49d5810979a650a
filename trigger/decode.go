// Package trigger turns inbound request bodies and queue payloads into jobs.
package trigger

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"vidproc/models"
)

// ErrMalformed is wrapped by every decode failure. It always maps to a bad
// request, never to a processing failure.
var ErrMalformed = errors.New("malformed trigger")

// ErrMissingPath is returned for a direct request without both file paths.
var ErrMissingPath = fmt.Errorf("%w: missing file path", ErrMalformed)

// Kind tells the two request forms apart.
type Kind int

const (
	// KindJob runs the full storage pipeline for a source key.
	KindJob Kind = iota
	// KindDirect transcodes between two local paths.
	KindDirect
)

func (k Kind) String() string {
	if k == KindDirect {
		return "direct"
	}
	return "job"
}

// DirectRequest is the legacy body naming local input and output files.
type DirectRequest struct {
	InputPath  string
	OutputPath string
}

// Request is a decoded trigger.
type Request struct {
	Kind       Kind
	Descriptor models.JobDescriptor // KindJob
	Direct     DirectRequest        // KindDirect
}

// pushMessage is the payload object of a push notification.
type pushMessage struct {
	Data      string `json:"data"`
	MessageID string `json:"messageId,omitempty"`
}

type body struct {
	Message        *pushMessage `json:"message"`
	Data           *string      `json:"data"`
	Name           *string      `json:"name"`
	InputFilePath  *string      `json:"inputFilePath"`
	OutputFilePath *string      `json:"outputFilePath"`
}

// objectNotice is the JSON carried, base64 encoded, inside message.data.
type objectNotice struct {
	Name   string `json:"name"`
	Bucket string `json:"bucket,omitempty"`
}

// Decode parses a POST /process-video body. It accepts a push envelope
// {"message":{"data":"<base64 JSON>"}}, a bare {"name": "<key>"}, or the
// direct form {"inputFilePath": ..., "outputFilePath": ...}.
func Decode(raw []byte) (Request, error) {
	var b body
	if err := json.Unmarshal(raw, &b); err != nil {
		return Request{}, fmt.Errorf("%w: invalid JSON body: %v", ErrMalformed, err)
	}

	switch {
	case b.Message != nil:
		desc, err := DecodeMessageData(b.Message.Data)
		if err != nil {
			return Request{}, err
		}
		return Request{Kind: KindJob, Descriptor: desc}, nil

	case b.InputFilePath != nil || b.OutputFilePath != nil:
		in, out := deref(b.InputFilePath), deref(b.OutputFilePath)
		if in == "" || out == "" {
			return Request{}, ErrMissingPath
		}
		return Request{Kind: KindDirect, Direct: DirectRequest{InputPath: in, OutputPath: out}}, nil

	case b.Name != nil:
		return jobRequest(*b.Name)

	default:
		return Request{}, fmt.Errorf("%w: no message received", ErrMalformed)
	}
}

// DecodeMessageData decodes the base64 data field of a notification and
// extracts the object name.
func DecodeMessageData(data string) (models.JobDescriptor, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return models.JobDescriptor{}, fmt.Errorf("%w: message has no data", ErrMalformed)
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		// Some publishers drop the padding.
		decoded, err = base64.RawStdEncoding.DecodeString(data)
		if err != nil {
			return models.JobDescriptor{}, fmt.Errorf("%w: message data is not base64: %v", ErrMalformed, err)
		}
	}

	var notice objectNotice
	if err := json.Unmarshal(decoded, &notice); err != nil {
		return models.JobDescriptor{}, fmt.Errorf("%w: message data is not JSON: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(notice.Name) == "" {
		return models.JobDescriptor{}, fmt.Errorf("%w: missing filename", ErrMalformed)
	}
	return models.JobDescriptor{SourceKey: notice.Name}, nil
}

// DecodeQueueMessage accepts what a producer may push onto the job list: a
// full push envelope, a bare {"data": ...} message, a bare {"name": ...}
// notice, or just the base64 data string.
func DecodeQueueMessage(raw []byte) (models.JobDescriptor, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return models.JobDescriptor{}, fmt.Errorf("%w: empty queue message", ErrMalformed)
	}
	if trimmed[0] != '{' {
		return DecodeMessageData(string(trimmed))
	}

	var b body
	if err := json.Unmarshal(trimmed, &b); err != nil {
		return models.JobDescriptor{}, fmt.Errorf("%w: invalid queue message: %v", ErrMalformed, err)
	}
	switch {
	case b.Message != nil:
		return DecodeMessageData(b.Message.Data)
	case b.Data != nil:
		return DecodeMessageData(*b.Data)
	case b.Name != nil:
		req, err := jobRequest(*b.Name)
		return req.Descriptor, err
	default:
		return models.JobDescriptor{}, fmt.Errorf("%w: queue message carries no job", ErrMalformed)
	}
}

func jobRequest(name string) (Request, error) {
	if strings.TrimSpace(name) == "" {
		return Request{}, fmt.Errorf("%w: missing filename", ErrMalformed)
	}
	return Request{Kind: KindJob, Descriptor: models.JobDescriptor{SourceKey: name}}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
