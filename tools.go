//go:build tools
// +build tools

// Package tools pins the binaries used to lint and test beacon, so that
// `go run` uses the versions in go.mod.
// https://github.com/golang/go/wiki/Modules#how-can-i-track-tool-dependencies-for-a-module
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "github.com/onsi/ginkgo/ginkgo"
)
