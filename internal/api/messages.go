// Package api defines the wire contract of the tokenkeeper session service:
// request/response messages, a JSON gRPC codec, the service descriptor and a
// client stub.
//
// The messages are plain Go structs carried by a JSON codec instead of
// protobuf types generated from a .proto file. This is an interim wire format:
// the build has no protoc step yet, and once one exists the service should
// move to generated messages and the default proto codec. Clients must not
// rely on the JSON encoding.
package api

import "time"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenPairResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

type RevokeRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RevokeResponse struct {
	Revoked bool `json:"revoked"`
}

type ListSessionsRequest struct{}

// Session describes one active refresh token without disclosing it.
type Session struct {
	TokenHint   string    `json:"token_hint"`
	CreatedOn   time.Time `json:"created_on"`
	ExpiresOn   time.Time `json:"expires_on"`
	CreatedByIP string    `json:"created_by_ip"`
}

type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type RevokeAllRequest struct{}

type RevokeAllResponse struct {
	Revoked int `json:"revoked"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
