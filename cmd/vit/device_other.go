//go:build !windows

package main

import (
	"log"

	"github.com/born-ml/born/backend/cpu"
)

// dispatch runs j on the CPU backend. WebGPU is only built on Windows.
func dispatch(j job) error {
	if j.device == "webgpu" {
		log.Printf("WebGPU backend is not available on this platform, using CPU")
	}
	return execute(cpu.New(), j)
}
