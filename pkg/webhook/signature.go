package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the delivery signature
const SignatureHeader = "X-Knock-Signature"

var (
	// ErrMissingSignature is returned when a secret is configured but the header is absent
	ErrMissingSignature = errors.New("missing webhook signature")

	// ErrMalformedSignature is returned when the header is not "t=<timestamp>,s=<signature>"
	ErrMalformedSignature = errors.New("malformed webhook signature")

	// ErrInvalidSignature is returned when the signature does not match the body
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrSignatureExpired is returned when the signed timestamp is outside the tolerance
	ErrSignatureExpired = errors.New("webhook signature expired")
)

// Sign produces a header value for body signed at ts
func Sign(secret string, body []byte, ts time.Time) string {
	t := strconv.FormatInt(ts.UnixMilli(), 10)
	return fmt.Sprintf("t=%s,s=%s", t, computeSignature(secret, t, body))
}

// computeSignature is base64(HMAC-SHA256(secret, "<t>.<body>"))
func computeSignature(secret, timestamp string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp))
	h.Write([]byte("."))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// parseSignatureHeader splits "t=<timestamp>,s=<signature>"
func parseSignatureHeader(header string) (timestamp, signature string, err error) {
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "s":
			signature = value
		}
	}
	if timestamp == "" || signature == "" {
		return "", "", ErrMalformedSignature
	}
	return timestamp, signature, nil
}

// parseTimestamp accepts unix seconds or milliseconds
func parseTimestamp(value string) (time.Time, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, ErrMalformedSignature
	}
	if n > 1e12 {
		return time.UnixMilli(n), nil
	}
	return time.Unix(n, 0), nil
}

// verifySignature checks header against body at now
func verifySignature(header string, body []byte, secret string, now time.Time, tolerance time.Duration) error {
	if header == "" {
		return ErrMissingSignature
	}

	timestamp, signature, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	signedAt, err := parseTimestamp(timestamp)
	if err != nil {
		return err
	}
	if tolerance > 0 {
		skew := now.Sub(signedAt)
		if skew < 0 {
			skew = -skew
		}
		if skew > tolerance {
			return ErrSignatureExpired
		}
	}

	expected := computeSignature(secret, timestamp, body)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}
