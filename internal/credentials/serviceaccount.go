package credentials

import (
	"encoding/json"
	"fmt"
)

// ServiceAccount is the subset of a Google service-account key file the
// token exchange needs.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// ParseServiceAccount decodes and validates a service-account key JSON.
// Error messages never echo any part of the key material.
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("service account key is not valid JSON")
	}

	if sa.Type != "service_account" {
		return nil, fmt.Errorf("service account key has type %q, expected %q", sa.Type, "service_account")
	}
	if sa.ClientEmail == "" {
		return nil, fmt.Errorf("service account key is missing client_email")
	}
	if sa.PrivateKey == "" {
		return nil, fmt.Errorf("service account key is missing private_key")
	}
	if sa.TokenURI == "" {
		return nil, fmt.Errorf("service account key is missing token_uri")
	}

	return &sa, nil
}
