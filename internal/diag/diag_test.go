package diag

import (
	"context"
	"testing"
)

const sampleBanner = `Wed Aug 20 10:15:03 2025
+---------------------------------------------------------------------------------------+
| NVIDIA-SMI 535.104.05             Driver Version: 535.104.05   CUDA Version: 12.2     |
|-----------------------------------------+----------------------+----------------------+
`

func TestParseNvidiaSMI(t *testing.T) {
	t.Parallel()
	driver, cuda := parseNvidiaSMI(sampleBanner)
	if driver != "535.104.05" {
		t.Errorf("driver = %q, want 535.104.05", driver)
	}
	if cuda != "12.2" {
		t.Errorf("cuda = %q, want 12.2", cuda)
	}
}

func TestParseNvidiaSMINoBanner(t *testing.T) {
	t.Parallel()
	driver, cuda := parseNvidiaSMI("command output without the banner\n")
	if driver != "" || cuda != "" {
		t.Errorf("expected empty versions, got %q / %q", driver, cuda)
	}
}

func TestCollectNeverFails(t *testing.T) {
	t.Parallel()
	r := Collect(context.Background())
	if r.GoVersion == "" {
		t.Error("missing go version")
	}
	if r.NumCPU <= 0 {
		t.Error("missing cpu count")
	}
	if r.NvidiaSMI == "" {
		t.Error("nvidia_smi must carry output or a placeholder")
	}
	// Availability must be consistent for a given host within one run.
	if r.CUDAAvailable != CUDAAvailable() {
		t.Error("cuda availability not deterministic")
	}
}
