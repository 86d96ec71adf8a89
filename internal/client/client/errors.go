package client

import "errors"

var (
	ErrUnavailable = errors.New("server unavailable")
	ErrNoToken     = errors.New("no access token configured")
)
