/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package capability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Op identifies a capability operation in a transcript.
type Op string

const (
	// OpGeneratePlan records a GeneratePlan call.
	OpGeneratePlan Op = "generate_plan"
	// OpClassifyFailure records a ClassifyFailure call.
	OpClassifyFailure Op = "classify_failure"
)

// Call is one recorded capability invocation.
type Call struct {
	Op Op `json:"op"`
	// Key is the digest of the request; replay is keyed on it, so call
	// order does not matter.
	Key string `json:"key"`
	// Request is the raw request, kept for audit and debugging.
	Request json.RawMessage `json:"request"`
	// Response is the raw response when the call succeeded.
	Response json.RawMessage `json:"response,omitempty"`
	// Error is the error string when the call failed.
	Error string `json:"error,omitempty"`
}

// Transcript is an append-only record of capability calls for one session.
// Tests replay transcripts instead of invoking the live capability.
type Transcript struct {
	Calls []Call `json:"calls"`
}

// Save writes the transcript as JSON.
func (t *Transcript) Save(path string) error {
	raw, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("writing transcript %s: %w", path, err)
	}
	return nil
}

// LoadTranscript reads a transcript saved by Save.
func LoadTranscript(path string) (*Transcript, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transcript %s: %w", path, err)
	}
	var t Transcript
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parsing transcript %s: %w", path, err)
	}
	return &t, nil
}

// digest computes the replay key for an operation and its request payload.
func digest(op Op, request []byte) string {
	h := sha256.New()
	h.Write([]byte(op))
	h.Write([]byte{0})
	h.Write(request)
	return hex.EncodeToString(h.Sum(nil))
}

type classifyRequest struct {
	CheckName string `json:"check_name"`
	Evidence  string `json:"evidence"`
}

// Recorder wraps a live capability and records every call into a transcript.
type Recorder struct {
	inner Generative

	mu         sync.Mutex
	transcript Transcript
}

// NewRecorder wraps the given capability.
func NewRecorder(inner Generative) *Recorder {
	return &Recorder{inner: inner}
}

// GeneratePlan implements Generative.
func (r *Recorder) GeneratePlan(ctx context.Context, req PlanRequest) (json.RawMessage, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding plan request: %w", err)
	}
	resp, callErr := r.inner.GeneratePlan(ctx, req)
	r.record(OpGeneratePlan, raw, resp, callErr)
	return resp, callErr
}

// ClassifyFailure implements Generative.
func (r *Recorder) ClassifyFailure(ctx context.Context, checkName, evidence string) (string, error) {
	raw, err := json.Marshal(classifyRequest{CheckName: checkName, Evidence: evidence})
	if err != nil {
		return "", fmt.Errorf("encoding classify request: %w", err)
	}
	class, callErr := r.inner.ClassifyFailure(ctx, checkName, evidence)
	var resp json.RawMessage
	if callErr == nil {
		resp, _ = json.Marshal(class)
	}
	r.record(OpClassifyFailure, raw, resp, callErr)
	if callErr != nil {
		return "", callErr
	}
	return class, nil
}

func (r *Recorder) record(op Op, request []byte, response json.RawMessage, callErr error) {
	call := Call{Op: op, Key: digest(op, request), Request: request, Response: response}
	if callErr != nil {
		call.Error = callErr.Error()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript.Calls = append(r.transcript.Calls, call)
}

// Transcript returns a copy of the recorded transcript.
func (r *Recorder) Transcript() *Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := &Transcript{Calls: make([]Call, len(r.transcript.Calls))}
	copy(out.Calls, r.transcript.Calls)
	return out
}

// ErrNotRecorded is returned by a Replayer when the transcript contains no
// call matching the request.
var ErrNotRecorded = errors.New("no recorded response for request")

// Replayer is a Generative that answers from a recorded transcript. Replay
// is keyed on the request digest, so identical inputs always produce the
// identical recorded response regardless of call order.
type Replayer struct {
	byKey map[string]Call
}

// NewReplayer indexes a transcript for replay. When the transcript contains
// multiple calls with the same key, the last one wins.
func NewReplayer(t *Transcript) *Replayer {
	byKey := make(map[string]Call, len(t.Calls))
	for _, call := range t.Calls {
		byKey[call.Key] = call
	}
	return &Replayer{byKey: byKey}
}

// GeneratePlan implements Generative.
func (r *Replayer) GeneratePlan(_ context.Context, req PlanRequest) (json.RawMessage, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding plan request: %w", err)
	}
	return r.lookup(OpGeneratePlan, raw)
}

// ClassifyFailure implements Generative.
func (r *Replayer) ClassifyFailure(_ context.Context, checkName, evidence string) (string, error) {
	raw, err := json.Marshal(classifyRequest{CheckName: checkName, Evidence: evidence})
	if err != nil {
		return "", fmt.Errorf("encoding classify request: %w", err)
	}
	resp, err := r.lookup(OpClassifyFailure, raw)
	if err != nil {
		return "", err
	}
	var class string
	if err := json.Unmarshal(resp, &class); err != nil {
		return "", fmt.Errorf("decoding recorded class: %w", err)
	}
	return class, nil
}

func (r *Replayer) lookup(op Op, request []byte) (json.RawMessage, error) {
	call, ok := r.byKey[digest(op, request)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrNotRecorded)
	}
	if call.Error != "" {
		return nil, errors.New(call.Error)
	}
	return call.Response, nil
}
