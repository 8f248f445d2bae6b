//go:build cgo && libadalang

package main

import (
	"github.com/lal-go/lal/abi"
	"github.com/lal-go/lal/cabi"
)

func defaultEngine() (abi.Engine, error) { return cabi.New(), nil }
