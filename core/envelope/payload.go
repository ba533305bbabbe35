package envelope

import (
	"encoding/json"
	"fmt"
)

// Payload type discriminators carried in the "type" field.
const (
	TypeComment        = "comment"
	TypeRequestHistory = "request-history"
	TypeHistory        = "history"
)

// CommentPayload is a chat comment authored by a peer.
type CommentPayload struct {
	Type     string `json:"type"`
	UserName string `json:"userName"`
	Comment  string `json:"comment"`
}

// RequestHistoryPayload asks peers to replay comments newer than
// StartTimestamp.
type RequestHistoryPayload struct {
	Type           string `json:"type"`
	StartTimestamp int64  `json:"startTimestamp"`
}

// HistoryPayload carries a batch of replayed comment envelopes in
// response to a request-history.
type HistoryPayload struct {
	Type     string       `json:"type"`
	Comments []RawMessage `json:"comments"`
}

// PayloadType extracts the "type" discriminator from an envelope's
// payload without decoding the rest.
func PayloadType(raw *RawMessage) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(raw.PayloadJSON), &head); err != nil {
		return "", fmt.Errorf("decode payload type: %w", err)
	}
	return head.Type, nil
}

// DecodeComment decodes a comment payload.
func DecodeComment(raw *RawMessage) (*CommentPayload, error) {
	var p CommentPayload
	if err := json.Unmarshal([]byte(raw.PayloadJSON), &p); err != nil {
		return nil, fmt.Errorf("decode comment payload: %w", err)
	}
	if p.Type != TypeComment {
		return nil, fmt.Errorf("decode comment payload: unexpected type %q", p.Type)
	}
	return &p, nil
}

// DecodeRequestHistory decodes a request-history payload.
func DecodeRequestHistory(raw *RawMessage) (*RequestHistoryPayload, error) {
	var p RequestHistoryPayload
	if err := json.Unmarshal([]byte(raw.PayloadJSON), &p); err != nil {
		return nil, fmt.Errorf("decode request-history payload: %w", err)
	}
	if p.Type != TypeRequestHistory {
		return nil, fmt.Errorf("decode request-history payload: unexpected type %q", p.Type)
	}
	return &p, nil
}

// DecodeHistory decodes a history payload.
func DecodeHistory(raw *RawMessage) (*HistoryPayload, error) {
	var p HistoryPayload
	if err := json.Unmarshal([]byte(raw.PayloadJSON), &p); err != nil {
		return nil, fmt.Errorf("decode history payload: %w", err)
	}
	if p.Type != TypeHistory {
		return nil, fmt.Errorf("decode history payload: unexpected type %q", p.Type)
	}
	return &p, nil
}

// EncodeCommentPayload builds the JSON payload for a comment.
func EncodeCommentPayload(userName, text string) (string, error) {
	return encodePayload(CommentPayload{Type: TypeComment, UserName: userName, Comment: text})
}

// EncodeRequestHistoryPayload builds the JSON payload for a
// request-history.
func EncodeRequestHistoryPayload(startTimestamp int64) (string, error) {
	return encodePayload(RequestHistoryPayload{Type: TypeRequestHistory, StartTimestamp: startTimestamp})
}

// EncodeHistoryPayload builds the JSON payload for a history batch.
func EncodeHistoryPayload(comments []RawMessage) (string, error) {
	return encodePayload(HistoryPayload{Type: TypeHistory, Comments: comments})
}

func encodePayload(p any) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

// EncodedSize returns the serialized size of an envelope in bytes, as it
// would appear inside a history batch. Used for batch size accounting.
func EncodedSize(raw *RawMessage) int {
	data, err := json.Marshal(raw)
	if err != nil {
		return 0
	}
	return len(data)
}
