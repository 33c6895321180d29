// Package identity checks the platform identity header attached to uploads.
package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Validator reports whether the holder of an encoded identity may submit
// compliance reports. An error means the check itself could not run.
type Validator interface {
	Entitled(ctx context.Context, b64Identity string) (bool, error)
}

// Identity is the decoded x-rh-identity document.
type Identity struct {
	Identity struct {
		AccountNumber string `json:"account_number"`
		OrgID         string `json:"org_id"`
		Type          string `json:"type"`
		Internal      struct {
			OrgID string `json:"org_id"`
		} `json:"internal"`
	} `json:"identity"`
	Entitlements map[string]Entitlement `json:"entitlements"`
}

type Entitlement struct {
	IsEntitled bool `json:"is_entitled"`
	IsTrial    bool `json:"is_trial"`
}

func (i *Identity) OrgID() string {
	if i.Identity.OrgID != "" {
		return i.Identity.OrgID
	}
	return i.Identity.Internal.OrgID
}

// Decode parses a base64 encoded identity document. Both standard and
// unpadded encodings are accepted.
func Decode(b64Identity string) (*Identity, error) {
	trimmed := strings.TrimSpace(b64Identity)
	raw, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(trimmed, "="))
		if err != nil {
			return nil, err
		}
	}

	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// HeaderValidator grants access when the identity names an org and carries
// the required entitlement.
type HeaderValidator struct {
	entitlement string
}

func NewHeaderValidator(entitlement string) *HeaderValidator {
	if entitlement == "" {
		entitlement = "insights"
	}
	return &HeaderValidator{entitlement: entitlement}
}

func (v *HeaderValidator) Entitled(_ context.Context, b64Identity string) (bool, error) {
	if b64Identity == "" {
		return false, nil
	}

	id, err := Decode(b64Identity)
	if err != nil {
		return false, nil
	}

	if id.OrgID() == "" {
		return false, nil
	}

	return id.Entitlements[v.entitlement].IsEntitled, nil
}
