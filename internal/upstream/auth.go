package upstream

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Credentials holds the API key material for signed CLOB endpoints.
type Credentials struct {
	APIKey     string
	Secret     string // URL-safe base64
	Passphrase string
	Address    string
}

// Sign computes the request signature over timestamp, method, and path. The
// query string is excluded from the signed message.
func (c *Credentials) Sign(timestamp int64, method, path string) (string, error) {
	key, err := base64.URLEncoding.DecodeString(c.Secret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte(method))
	mac.Write([]byte(path))

	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// SignRequest attaches the authentication headers to req.
func (c *Credentials) SignRequest(req *http.Request, now time.Time) error {
	timestamp := now.Unix()
	sig, err := c.Sign(timestamp, req.Method, req.URL.Path)
	if err != nil {
		return err
	}

	req.Header.Set("POLY_ADDRESS", c.Address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_API_KEY", c.APIKey)
	req.Header.Set("POLY_PASSPHRASE", c.Passphrase)
	return nil
}
