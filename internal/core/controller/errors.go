package controller

import "errors"

var (
	// ErrMissingDependency 缺少依赖组件
	ErrMissingDependency = errors.New("controller: missing dependency")
)
