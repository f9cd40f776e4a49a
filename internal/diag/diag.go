// Package diag collects best-effort runtime and accelerator diagnostics
// for the /about endpoint. Nothing in here may fail the endpoint: missing
// tools degrade to placeholder values.
package diag

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/llamad-dev/llamad/internal/version"
)

const (
	nvidiaSMIBinary  = "nvidia-smi"
	nvidiaDriverProc = "/proc/driver/nvidia/version"
	toolTimeout      = 5 * time.Second
	toolUnavailable  = "nvidia-smi not available"
)

// Report is the diagnostic payload returned by /about.
type Report struct {
	GoVersion     string `json:"go_version"`
	ServerVersion string `json:"server_version"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	NumCPU        int    `json:"num_cpu"`
	TotalMemory   uint64 `json:"total_memory_bytes"`
	CUDAAvailable bool   `json:"cuda_available"`
	DriverVersion string `json:"cuda_driver_version,omitempty"`
	CUDAVersion   string `json:"cuda_version,omitempty"`
	NvidiaSMI     string `json:"nvidia_smi"`
}

// Collect gathers the report. The accelerator fields reflect whatever the
// host exposes at call time; the raw tool output is returned verbatim.
func Collect(ctx context.Context) Report {
	r := Report{
		GoVersion:     runtime.Version(),
		ServerVersion: version.String(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		NumCPU:        runtime.NumCPU(),
		TotalMemory:   totalMemory(),
		CUDAAvailable: CUDAAvailable(),
	}

	out, err := runNvidiaSMI(ctx)
	if err != nil {
		r.NvidiaSMI = toolUnavailable
		return r
	}
	r.NvidiaSMI = out
	r.DriverVersion, r.CUDAVersion = parseNvidiaSMI(out)
	return r
}

// CUDAAvailable reports whether an NVIDIA driver is present on this host.
func CUDAAvailable() bool {
	if _, err := os.Stat(nvidiaDriverProc); err == nil {
		return true
	}
	_, err := exec.LookPath(nvidiaSMIBinary)
	return err == nil
}

func runNvidiaSMI(ctx context.Context) (string, error) {
	if _, err := exec.LookPath(nvidiaSMIBinary); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, nvidiaSMIBinary).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// parseNvidiaSMI pulls the driver and CUDA versions out of the nvidia-smi
// banner line, e.g.
//
//	| NVIDIA-SMI 535.104.05  Driver Version: 535.104.05  CUDA Version: 12.2 |
func parseNvidiaSMI(out string) (driver, cuda string) {
	for line := range strings.Lines(out) {
		if !strings.Contains(line, "Driver Version") {
			continue
		}
		driver = fieldAfter(line, "Driver Version:")
		cuda = fieldAfter(line, "CUDA Version:")
		return driver, cuda
	}
	return "", ""
}

func fieldAfter(line, label string) string {
	_, rest, ok := strings.Cut(line, label)
	if !ok {
		return ""
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
