package sender

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Header names attached to every delivery request.
const (
	headerDeliveryID = "X-Hookrelay-Delivery"
	headerAttempt    = "X-Hookrelay-Attempt"
	headerSignature  = "X-Hookrelay-Signature"
)

// defaultUserAgent identifies the relay on the wire.
const defaultUserAgent = "hookrelay/1.0"

// HTTPOption configures the HTTP sender.
type HTTPOption func(*HTTP)

// WithHTTPClient sets a custom http.Client. The client's Timeout is left
// untouched; per-delivery deadlines come from the caller's context.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTP) { s.client = c }
}

// WithCodec sets the envelope codec. Defaults to JSON.
func WithCodec(c Codec) HTTPOption {
	return func(s *HTTP) { s.codec = c }
}

// WithSecret enables HMAC-SHA256 signing of the request body. Receivers
// verify the hex digest in the signature header.
func WithSecret(secret []byte) HTTPOption {
	return func(s *HTTP) { s.secret = secret }
}

// HTTP delivers callbacks as POST requests. A non-2xx response is a
// failure; so is any transport error or context deadline.
type HTTP struct {
	client *http.Client
	codec  Codec
	secret []byte
}

// NewHTTP creates an HTTP sender.
func NewHTTP(opts ...HTTPOption) *HTTP {
	s := &HTTP{
		client: &http.Client{},
		codec:  &JSONCodec{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send posts the delivery envelope to its target.
func (s *HTTP) Send(ctx context.Context, d *Delivery) error {
	body, err := s.codec.Encode(d)
	if err != nil {
		return fmt.Errorf("hookrelay/sender: encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("hookrelay/sender: build request: %w", err)
	}
	req.Header.Set("Content-Type", s.codec.ContentType())
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set(headerDeliveryID, d.ID.String())
	req.Header.Set(headerAttempt, strconv.Itoa(d.Attempt))
	if len(s.secret) > 0 {
		req.Header.Set(headerSignature, sign(s.secret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("hookrelay/sender: post %s: %w", d.Target, err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body close failure is immaterial here

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best-effort drain

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("hookrelay/sender: %s responded %d", d.Target, resp.StatusCode)
	}
	return nil
}

// sign computes the hex HMAC-SHA256 digest of body.
func sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
