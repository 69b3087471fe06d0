//go:build windows

package main

import (
	"log"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/backend/webgpu"
)

// dispatch runs j on the requested device, falling back to CPU when the
// WebGPU adapter cannot be acquired.
func dispatch(j job) error {
	if j.device == "webgpu" {
		if !webgpu.IsAvailable() {
			log.Printf("WebGPU is not available, using CPU")
			return execute(cpu.New(), j)
		}
		gpu, err := webgpu.New()
		if err != nil {
			log.Printf("Failed to create WebGPU backend: %v, using CPU", err)
			return execute(cpu.New(), j)
		}
		defer gpu.Release()

		log.Printf("Using WebGPU backend")
		return execute(gpu, j)
	}
	return execute(cpu.New(), j)
}
