package upstream

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignMatchesKnownVector(t *testing.T) {
	secret := base64.URLEncoding.EncodeToString([]byte("test-secret"))
	creds := &Credentials{APIKey: "key", Secret: secret, Passphrase: "phrase", Address: "0xabc"}

	sig, err := creds.Sign(1700000000, http.MethodGet, "/trades")
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte("1700000000GET/trades"))
	assert.Equal(t, base64.URLEncoding.EncodeToString(mac.Sum(nil)), sig)
}

func TestSignExcludesQuery(t *testing.T) {
	secret := base64.URLEncoding.EncodeToString([]byte("test-secret"))
	creds := &Credentials{Secret: secret}

	req, err := http.NewRequest(http.MethodGet, "http://clob.invalid/trades?limit=1000&offset=0", nil)
	require.NoError(t, err)
	now := time.Unix(1700000000, 0)
	require.NoError(t, creds.SignRequest(req, now))

	bare, err := creds.Sign(1700000000, http.MethodGet, "/trades")
	require.NoError(t, err)
	assert.Equal(t, bare, req.Header.Get("POLY_SIGNATURE"))
	assert.Equal(t, "1700000000", req.Header.Get("POLY_TIMESTAMP"))
}

func TestSignRejectsBadSecret(t *testing.T) {
	creds := &Credentials{Secret: "not base64!!"}
	_, err := creds.Sign(1700000000, http.MethodGet, "/trades")
	assert.Error(t, err)
}

func TestSignVariesWithInputs(t *testing.T) {
	secret := base64.URLEncoding.EncodeToString([]byte("test-secret"))
	creds := &Credentials{Secret: secret}

	a, err := creds.Sign(1700000000, http.MethodGet, "/trades")
	require.NoError(t, err)
	b, err := creds.Sign(1700000001, http.MethodGet, "/trades")
	require.NoError(t, err)
	c, err := creds.Sign(1700000000, http.MethodGet, "/book")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}
