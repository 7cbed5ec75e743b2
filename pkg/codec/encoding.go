package codec

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeBasicAuth encodes a username and password into the payload of an
// HTTP Basic Authorization header as defined in RFC 7617. The returned
// string does not include the "Basic " scheme prefix.
func EncodeBasicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

// DecodeBasicAuth decodes the payload of an HTTP Basic Authorization header
// into a username and password. It returns an error if the payload is not
// valid base64 or does not contain a colon separator.
func DecodeBasicAuth(encoded string) (username, password string, err error) {
	raw, err := DecodeBase64(encoded)
	if err != nil {
		return "", "", err
	}

	username, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", fmt.Errorf("malformed basic auth payload")
	}

	return username, password, nil
}

// DecodeBase64 decodes a base64-encoded string to bytes.
// It uses the standard base64 encoding as defined in RFC 4648.
func DecodeBase64(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}
