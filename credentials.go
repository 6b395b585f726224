package authflow

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Credentials is a username/password pair pulled from a request
type Credentials struct {
	Username string
	Password string
}

// Missing reports whether either field is empty
func (c *Credentials) Missing() bool {
	return c.Username == "" || c.Password == ""
}

// isJSONRequest reports whether the client posted JSON and should get JSON back
func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// parseCredentials reads the configured fields from a form or JSON body
func parseCredentials(r *http.Request, usernameField, passwordField string) (*Credentials, error) {
	creds := &Credentials{}
	if isJSONRequest(r) {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return nil, fmt.Errorf("invalid post body")
		}
		if u, ok := data[usernameField].(string); ok {
			creds.Username = u
		}
		if p, ok := data[passwordField].(string); ok {
			creds.Password = p
		}
		return creds, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("error parsing form")
	}
	creds.Username = r.FormValue(usernameField)
	creds.Password = r.FormValue(passwordField)
	return creds, nil
}
