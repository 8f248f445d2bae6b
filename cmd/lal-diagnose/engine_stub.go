//go:build !(cgo && libadalang)

package main

import (
	"errors"

	"github.com/lal-go/lal/abi"
)

var errNoEngine = errors.New("built without libadalang; rebuild with -tags libadalang")

func defaultEngine() (abi.Engine, error) { return nil, errNoEngine }
