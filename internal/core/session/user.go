package session

import (
	"bytes"
	"encoding/json"
)

// User is the profile returned by /auth/me.
type User struct {
	ID          FlexID   `json:"id"`
	Username    string   `json:"username"`
	Nickname    string   `json:"nickname,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Avatar      string   `json:"avatar,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// DisplayName prefers the nickname over the username.
func (u User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

// FlexID accepts ids encoded as JSON strings or numbers.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexID(n.String())
	return nil
}
