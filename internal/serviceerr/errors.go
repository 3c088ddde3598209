package serviceerr

import "errors"

var ErrNotFound = errors.New("not found")
var ErrInvalidTTL = errors.New("invalid ttl")

// Refresh failures. Callers of the gateway never see these directly.
var ErrNoRefreshCredential = errors.New("no refresh credential")
var ErrNetworkFailure = errors.New("network failure")
var ErrRefreshRejected = errors.New("refresh rejected")

// Login flow.
var ErrInvalidPhoneNumber = errors.New("invalid phone number")
var ErrInvalidOTP = errors.New("invalid otp code")
var ErrNoPendingLogin = errors.New("no pending login")
var ErrLoginRejected = errors.New("login rejected")
