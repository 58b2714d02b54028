package users

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/divitutor/backend/internal/apperr"
)

// timestampTolerance bounds webhook replay: deliveries stamped outside
// this window in either direction are rejected.
const timestampTolerance = 5 * time.Minute

// secretPrefix is stripped from the configured webhook secret before
// base64 decoding, matching the Svix key format.
const secretPrefix = "whsec_"

// VerifySignature checks a Svix delivery against the shared secret. The
// signed content is "{id}.{timestamp}.{body}" and the signature header
// carries one or more space-separated "v1,<base64>" entries; any match
// passes.
func VerifySignature(secret, msgID, timestamp, signatures string, body []byte, now time.Time) error {
	if msgID == "" || timestamp == "" || signatures == "" {
		return &apperr.Validation{Field: "headers", Reason: "missing svix-id, svix-timestamp, or svix-signature"}
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return &apperr.Validation{Field: "svix-timestamp", Reason: "not a unix timestamp"}
	}
	stamped := time.Unix(ts, 0)
	if d := now.Sub(stamped); d > timestampTolerance || d < -timestampTolerance {
		return &apperr.Validation{Field: "svix-timestamp", Reason: "outside tolerance window"}
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil {
		return fmt.Errorf("decode webhook secret: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", msgID, timestamp)
	mac.Write(body)
	want := mac.Sum(nil)

	for _, sig := range strings.Fields(signatures) {
		version, encoded, found := strings.Cut(sig, ",")
		if !found || version != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		if hmac.Equal(got, want) {
			return nil
		}
	}
	return &apperr.Validation{Field: "svix-signature", Reason: "no signature matched"}
}

// Sign computes the v1 signature for a delivery. Test helper and the
// inverse of VerifySignature.
func Sign(secret, msgID, timestamp string, body []byte) (string, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", msgID, timestamp)
	mac.Write(body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
