package walletconnect

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PairingURI is the parsed form of a "wc:" pairing URI presented by a dApp:
//
//	wc:<topic>@<version>?relay-protocol=irn&symKey=<hex>[&expiryTimestamp=<unix>]
type PairingURI struct {
	Topic         string
	Version       int
	RelayProtocol string
	SymKey        []byte
	Expiry        time.Time
}

// IsPairingURI reports whether text looks like a pairing URI.
func IsPairingURI(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "wc:")
}

// ParsePairingURI validates and decodes a pairing URI.
func ParsePairingURI(raw string) (*PairingURI, error) {
	raw = strings.TrimSpace(raw)

	rest, found := strings.CutPrefix(raw, "wc:")
	if !found {
		return nil, fmt.Errorf("not a WalletConnect URI: missing wc: prefix")
	}

	head, query, _ := strings.Cut(rest, "?")
	topic, versionStr, ok := strings.Cut(head, "@")
	if !ok || topic == "" {
		return nil, fmt.Errorf("invalid pairing URI: missing topic or version")
	}

	version, err := strconv.Atoi(versionStr)
	if err != nil {
		return nil, fmt.Errorf("invalid pairing URI version %q: %w", versionStr, err)
	}
	if version != 2 {
		return nil, fmt.Errorf("unsupported WalletConnect protocol version %d", version)
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("invalid pairing URI query: %w", err)
	}

	symKeyHex := values.Get("symKey")
	if symKeyHex == "" {
		return nil, fmt.Errorf("invalid pairing URI: missing symKey")
	}
	symKey, err := hex.DecodeString(symKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid pairing URI symKey: %w", err)
	}
	if len(symKey) != 32 {
		return nil, fmt.Errorf("invalid pairing URI symKey: expected 32 bytes, got %d", len(symKey))
	}

	uri := &PairingURI{
		Topic:         topic,
		Version:       version,
		RelayProtocol: values.Get("relay-protocol"),
		SymKey:        symKey,
	}

	if expiryStr := values.Get("expiryTimestamp"); expiryStr != "" {
		unix, err := strconv.ParseInt(expiryStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid pairing URI expiry: %w", err)
		}
		uri.Expiry = time.Unix(unix, 0)
	}

	return uri, nil
}

// Expired reports whether the URI carries an expiry in the past.
func (u *PairingURI) Expired(now time.Time) bool {
	return !u.Expiry.IsZero() && now.After(u.Expiry)
}
