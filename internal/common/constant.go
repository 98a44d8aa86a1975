// Package common contains shared constants and sentinel errors used across
// tokenkeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// ForwardedForHeaderName is the metadata key a fronting proxy uses to pass
// the original client address.
const ForwardedForHeaderName = "x-forwarded-for"
