package maksekeskus

import (
	"bytes"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// Delivery modes of an inbound notification.
const (
	DeliveryForm  = "form"
	DeliveryJSON  = "json"
	DeliveryQuery = "query"
)

var (
	ErrEmptyNotification = errors.New("notification carries no signed payload or mac")
	ErrMalformedPayload  = errors.New("malformed notification payload")
)

// SignedPayload is the exact byte sequence the gateway signed together with
// the MAC it sent.
type SignedPayload struct {
	JSON []byte
	MAC  string
	Mode string
}

// Notification is the part of a verified payload the webhook acts on.
type Notification struct {
	TransactionID string `json:"transaction"`
	Status        string `json:"status"`
	Reference     string `json:"reference,omitempty"`
	MessageType   string `json:"message_type,omitempty"`
}

// ComputeMAC returns uppercase hex SHA-512 of body followed by secret.
func ComputeMAC(body []byte, secret string) string {
	h := sha512.New()
	h.Write(body)
	h.Write([]byte(secret))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// VerifyMAC compares received against ComputeMAC(body, secret). The
// comparison is exact: a lowercase hex MAC does not verify.
func VerifyMAC(body []byte, received, secret string) bool {
	expected := ComputeMAC(body, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

// ExtractSignedPayload pulls the signed JSON and MAC out of a notification
// request. Form bodies carry json and mac fields; a JSON body carries mac as
// a top-level member which is cut out of the raw bytes; an empty body falls
// back to the query string. The signed bytes are never re-encoded.
func ExtractSignedPayload(contentType string, body []byte, query url.Values) (*SignedPayload, error) {
	body = bytes.TrimSpace(body)

	switch {
	case strings.Contains(contentType, "application/x-www-form-urlencoded") && len(body) > 0:
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, ErrMalformedPayload
		}
		return newSignedPayload([]byte(form.Get("json")), form.Get("mac"), DeliveryForm)

	case len(body) > 0 && body[0] == '{':
		signed, mac, err := stripMAC(body)
		if err != nil {
			return nil, err
		}
		return newSignedPayload(signed, mac, DeliveryJSON)

	case len(body) == 0 && query != nil:
		return newSignedPayload([]byte(query.Get("json")), query.Get("mac"), DeliveryQuery)
	}

	return nil, ErrMalformedPayload
}

func newSignedPayload(signed []byte, mac, mode string) (*SignedPayload, error) {
	if len(signed) == 0 || mac == "" {
		return nil, ErrEmptyNotification
	}
	return &SignedPayload{JSON: signed, MAC: mac, Mode: mode}, nil
}

// ParseNotification decodes a verified payload.
func ParseNotification(signed []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(signed, &n); err != nil {
		return nil, ErrMalformedPayload
	}
	if n.TransactionID == "" || n.Status == "" {
		return nil, ErrMalformedPayload
	}
	return &n, nil
}

// stripMAC removes the top-level "mac" member from a JSON object and
// returns the remaining bytes untouched, plus the mac value.
func stripMAC(body []byte) ([]byte, string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, "", ErrMalformedPayload
	}

	prevEnd := int(dec.InputOffset())
	first := true
	for dec.More() {
		keyStart := skipSeparators(body, prevEnd)

		tok, err := dec.Token()
		if err != nil {
			return nil, "", ErrMalformedPayload
		}
		key, ok := tok.(string)
		if !ok {
			return nil, "", ErrMalformedPayload
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, "", ErrMalformedPayload
		}
		valueEnd := int(dec.InputOffset())

		if key == "mac" {
			var mac string
			if err := json.Unmarshal(value, &mac); err != nil {
				return nil, "", ErrMalformedPayload
			}

			cutFrom, cutTo := prevEnd, valueEnd
			if first {
				// No preceding comma: take the one that follows, if any.
				cutFrom = keyStart
				if next := skipSeparators(body, valueEnd); next < len(body) && body[next] != '}' {
					cutTo = next
				}
			}

			out := make([]byte, 0, len(body)-(cutTo-cutFrom))
			out = append(out, body[:cutFrom]...)
			out = append(out, body[cutTo:]...)
			return out, mac, nil
		}

		prevEnd = valueEnd
		first = false
	}

	return nil, "", ErrEmptyNotification
}

func skipSeparators(body []byte, i int) int {
	for i < len(body) {
		switch body[i] {
		case ' ', '\t', '\r', '\n', ',':
			i++
		default:
			return i
		}
	}
	return i
}
