package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/teal-finance/hakanai/internal/crypto"
	"github.com/teal-finance/hakanai/internal/payload"
)

// Restrictions mirrors the optional create-time restriction set. It is
// opaque to this package beyond JSON framing; evaluation happens server-side.
type Restrictions struct {
	AllowedIPs       []string `json:"allowed_ips,omitempty"`
	AllowedCountries []string `json:"allowed_countries,omitempty"`
	AllowedASNs      []uint32 `json:"allowed_asns,omitempty"`
	PassphraseHash   string   `json:"passphrase_hash,omitempty"`
}

// SendOptions configures one Send call.
type SendOptions struct {
	Origin       string // e.g. "https://hakanai.example"
	Token        string // bearer token, empty for anonymous creates
	ExpiresIn    time.Duration
	Restrictions *Restrictions
	OnProgress   func(sentBytes, totalBytes int64) // optional upload progress hook
}

// ReceiveOptions configures one Receive call.
type ReceiveOptions struct {
	Passphrase string // raw passphrase; hashed before being sent
}

// Sender drives the create-secret half of the protocol. It owns only an
// *http.Client; callers provide I/O (reading files) and own the Payload.
type Sender struct {
	HTTPClient *http.Client
}

// NewSender returns a Sender using http.DefaultClient when client is nil.
func NewSender(client *http.Client) Sender {
	if client == nil {
		client = http.DefaultClient
	}
	return Sender{HTTPClient: client}
}

type createRequest struct {
	Data         string        `json:"data"`
	ExpiresIn    int64         `json:"expires_in"`
	Restrictions *Restrictions `json:"restrictions,omitempty"`
}

type createResponse struct {
	ID string `json:"id"`
}

// Send serialises p, hashes and encrypts it, POSTs it to origin, and returns
// the share URL built from the server-assigned id, the fresh key and the
// integrity hash.
func (s Sender) Send(ctx context.Context, p payload.Payload, opts SendOptions) (ShareURL, error) {
	serialized, err := json.Marshal(p)
	if err != nil {
		return ShareURL{}, newErr(CodeSendFailed, "cannot serialise payload: "+err.Error())
	}

	hash := crypto.TruncatedHashHex(serialized)

	key, err := crypto.GenerateKey()
	if err != nil {
		return ShareURL{}, newErr(CodeSendFailed, "cannot generate key: "+err.Error())
	}
	defer key.Zero()

	ciphertext, err := crypto.Encrypt(serialized, key)
	if err != nil {
		return ShareURL{}, newErr(CodeSendFailed, "cannot encrypt payload: "+err.Error())
	}

	body, err := json.Marshal(createRequest{
		Data:         ciphertext,
		ExpiresIn:    int64(opts.ExpiresIn.Seconds()),
		Restrictions: opts.Restrictions,
	})
	if err != nil {
		return ShareURL{}, newErr(CodeSendFailed, "cannot build request body: "+err.Error())
	}

	var reqBody io.Reader = bytes.NewReader(body)
	if opts.OnProgress != nil {
		reqBody = &progressReader{r: bytes.NewReader(body), total: int64(len(body)), onProgress: opts.OnProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.Origin+"/api/v1/secret", reqBody)
	if err != nil {
		return ShareURL{}, newErr(CodeSendFailed, err.Error())
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", "application/json")
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return ShareURL{}, newErr(CodeSendFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return ShareURL{}, errorFromStatus(resp, CodeSendFailed)
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return ShareURL{}, newErr(CodeSendFailed, "cannot decode server response: "+err.Error())
	}

	return ShareURL{ID: created.ID, Key: append([]byte{}, key.Bytes()...), Hash: hash}, nil
}

// Receiver drives the retrieve half of the protocol.
type Receiver struct {
	HTTPClient *http.Client
}

// NewReceiver returns a Receiver using http.DefaultClient when client is nil.
func NewReceiver(client *http.Client) Receiver {
	if client == nil {
		client = http.DefaultClient
	}
	return Receiver{HTTPClient: client}
}

// Receive fetches, decrypts, integrity-checks and deserialises the secret
// named by url against origin.
func (r Receiver) Receive(ctx context.Context, origin string, url ShareURL, opts ReceiveOptions) (payload.Payload, error) {
	if len(url.Key) != crypto.KeySize {
		return payload.Payload{}, newErr(CodeInvalidKey, fmt.Sprintf("key must be %d bytes", crypto.KeySize))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/api/v1/secret/"+url.ID, nil)
	if err != nil {
		return payload.Payload{}, newErr(CodeRetrieveFailed, err.Error())
	}

	if opts.Passphrase != "" {
		sum := crypto.HashPayload([]byte(opts.Passphrase))
		req.Header.Set("X-Passphrase", hexEncode(sum[:]))
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return payload.Payload{}, newErr(CodeRetrieveFailed, err.Error())
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through
	case http.StatusNotFound:
		return payload.Payload{}, newErr(CodeSecretNotFound, "")
	case http.StatusGone:
		return payload.Payload{}, newErr(CodeSecretAlreadyAccessed, "")
	case http.StatusUnauthorized, http.StatusForbidden:
		return payload.Payload{}, errorFromStatus(resp, CodeAuthenticationRequired)
	default:
		return payload.Payload{}, errorFromStatus(resp, CodeRetrieveFailed)
	}

	ciphertext, err := io.ReadAll(resp.Body)
	if err != nil {
		return payload.Payload{}, newErr(CodeRetrieveFailed, err.Error())
	}

	key := crypto.NewBytes(url.Key)
	defer key.Zero()

	plaintext, err := crypto.Decrypt(string(ciphertext), key)
	if err != nil {
		return payload.Payload{}, newErr(CodeDecryptFailed, "")
	}
	defer plaintext.Zero()

	if url.Hash != "" {
		if crypto.TruncatedHashHex(plaintext.Bytes()) != url.Hash {
			return payload.Payload{}, newErr(CodeHashMismatch, "")
		}
	}

	var p payload.Payload
	if err := json.Unmarshal(plaintext.Bytes(), &p); err != nil {
		return payload.Payload{}, newErr(CodeRetrieveFailed, "cannot deserialise payload: "+err.Error())
	}

	return p, nil
}

// progressReader reports cumulative bytes read to OnProgress as the HTTP
// client streams the request body, so a CLI can render an upload progress
// bar without this package knowing anything about terminals.
type progressReader struct {
	r          io.Reader
	read       int64
	total      int64
	onProgress func(sent, total int64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.onProgress(p.read, p.total)
	}
	return n, err
}

func errorFromStatus(resp *http.Response, fallback Code) *Error {
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	code := fallback
	if body.Code != "" {
		code = Code(body.Code)
	}
	return newErr(code, body.Error)
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
