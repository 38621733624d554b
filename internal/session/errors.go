package session

import "errors"

// ErrNoSession is returned when an operator has no open filter session.
var ErrNoSession = errors.New("no open session for operator")
