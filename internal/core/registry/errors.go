package registry

import "errors"

var (
	// ErrInvalidRule ACL 规则无效
	ErrInvalidRule = errors.New("registry: invalid rule")
)
