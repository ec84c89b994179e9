package adapter

import "errors"

var errNotConnected = errors.New("marketdata: adapter not connected")
