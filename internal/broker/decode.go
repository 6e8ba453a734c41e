package broker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hazard-House/openclaw/pkg/models"
	"github.com/rs/zerolog/log"
)

// fields is a decoded JSON object whose members are converted lazily by
// typed accessors. An absent or wrong-typed member yields the zero default.
type fields map[string]json.RawMessage

func parseObject(data []byte) (fields, error) {
	var obj fields
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decode broker response: %w", err)
	}
	if obj == nil {
		return nil, errors.New("decode broker response: expected object")
	}
	return obj, nil
}

// str returns the first key that holds a non-empty JSON string.
func (f fields) str(keys ...string) string {
	for _, k := range keys {
		raw, ok := f[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// object returns the nested object at key, or nil.
func (f fields) object(key string) fields {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	var nested fields
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	return nested
}

// timestamp returns the first key that holds an RFC 3339 string.
func (f fields) timestamp(keys ...string) *time.Time {
	s := f.str(keys...)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

func decodeAccount(f fields) (*models.ConnectedAccount, error) {
	id := f.str("id", "connectedAccountId", "nanoid")
	if id == "" {
		return nil, errors.New("malformed account record: missing id")
	}

	appName := f.str("appName", "appUniqueId")
	if appName == "" {
		appName = f.object("toolkit").str("slug")
	}

	// Unknown states are passed through; callers decide what they mean.
	status := models.AccountStatus(f.str("status", "connectionStatus"))
	if !status.Known() {
		log.Warn().Str("connected_account", id).Str("status", string(status)).Msg("Unrecognized account status from broker")
	}

	return &models.ConnectedAccount{
		ID:        id,
		AppName:   appName,
		Status:    status,
		CreatedAt: f.timestamp("createdAt", "created_at"),
		UpdatedAt: f.timestamp("updatedAt", "updated_at"),
	}, nil
}

func decodeInitiate(data []byte) (*models.InitiateResult, error) {
	f, err := parseObject(data)
	if err != nil {
		return nil, err
	}
	id := f.str("connectedAccountId", "id")
	if id == "" {
		return nil, errors.New("malformed initiate response: missing connectedAccountId")
	}
	return &models.InitiateResult{
		ConnectedAccountID: id,
		RedirectURL:        f.str("redirectUrl", "redirect_url"),
	}, nil
}

func decodeAccountList(data []byte) ([]models.ConnectedAccount, error) {
	var items []json.RawMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode account list: %w", err)
		}
	} else {
		var page struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("decode account list: %w", err)
		}
		items = page.Items
	}

	accounts := make([]models.ConnectedAccount, 0, len(items))
	for i, raw := range items {
		f, err := parseObject(raw)
		if err != nil {
			return nil, fmt.Errorf("account list item %d: %w", i, err)
		}
		acc, err := decodeAccount(f)
		if err != nil {
			return nil, fmt.Errorf("account list item %d: %w", i, err)
		}
		accounts = append(accounts, *acc)
	}
	return accounts, nil
}

func decodeResult(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode action result: %w", err)
	}
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}

// errorMessage extracts a human-readable message from a failed response body.
func errorMessage(body []byte) string {
	if f, err := parseObject(body); err == nil {
		if msg := f.str("message", "error", "detail"); msg != "" {
			return msg
		}
		if msg := f.object("error").str("message"); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(string(body))
}
