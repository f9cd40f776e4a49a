package inference

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/llamad-dev/llamad/internal/logger"
)

const (
	defaultStartupTimeout = 2 * time.Minute
	healthPollInterval    = 250 * time.Millisecond

	// GPU layer counts handed to the runtime per device selection.
	gpuLayersAll  = "999"
	gpuLayersNone = "0"
)

// Loader produces the process-lifetime model/tokenizer pair. It is invoked
// exactly once, before the HTTP listener opens; any failure here aborts
// startup.
type Loader struct {
	// RuntimeURL attaches to an already-running runtime. When set, no
	// process is spawned and ModelPath is ignored.
	RuntimeURL string
	// RuntimeBin is the llama-server binary to spawn.
	RuntimeBin string
	// Device is the resolved compute device (cpu or cuda).
	Device string
	// StartupTimeout bounds how long Load waits for the runtime to report
	// the model as loaded. Zero means defaultStartupTimeout.
	StartupTimeout time.Duration

	Log logger.Logger
}

// Load initializes the pair: it brings up (or attaches to) the runtime with
// the given checkpoint and blocks until the model is loaded and ready.
func (l Loader) Load(ctx context.Context, modelPath string) (*Pipeline, error) {
	log := l.Log
	if log == nil {
		log = logger.Default()
	}

	if l.RuntimeURL != "" {
		client := NewClient(l.RuntimeURL)
		log.Info("attaching to inference runtime", "url", l.RuntimeURL)
		if err := l.waitReady(ctx, client, nil); err != nil {
			return nil, fmt.Errorf("attach runtime %s: %w", l.RuntimeURL, err)
		}
		return newPipeline(client, nil, nil), nil
	}

	if modelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model checkpoint: %w", err)
	}

	bin := l.RuntimeBin
	if bin == "" {
		bin = "llama-server"
	}
	binPath, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("inference runtime binary %q: %w", bin, err)
	}

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("allocate runtime port: %w", err)
	}

	gpuLayers := gpuLayersNone
	if l.Device == "cuda" {
		gpuLayers = gpuLayersAll
	}

	cmd := exec.Command(binPath,
		"-m", modelPath,
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(port),
		"--n-gpu-layers", gpuLayers,
	)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	log.Info("starting inference runtime",
		"bin", binPath, "model", modelPath, "port", port, "gpu_layers", gpuLayers)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start runtime: %w", err)
	}

	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	client := NewClient("http://127.0.0.1:" + strconv.Itoa(port))
	if err := l.waitReady(ctx, client, waited); err != nil {
		_ = cmd.Process.Kill()
		<-waited
		return nil, fmt.Errorf("runtime did not become ready: %w", err)
	}
	log.Info("model loaded", "url", client.BaseURL())

	return newPipeline(client, cmd, waited), nil
}

func newPipeline(client *Client, proc *exec.Cmd, waited chan error) *Pipeline {
	return &Pipeline{
		Model:     &Model{client: client},
		Tokenizer: &Tokenizer{client: client},
		client:    client,
		proc:      proc,
		waited:    waited,
	}
}

// waitReady polls the runtime health endpoint until the model is loaded,
// the deadline passes, or a spawned runtime exits early.
func (l Loader) waitReady(ctx context.Context, client *Client, exited chan error) error {
	timeout := l.StartupTimeout
	if timeout <= 0 {
		timeout = defaultStartupTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()
	for {
		err := client.Health(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%w (last health check: %v)", ctx.Err(), lastErr)
			}
			return ctx.Err()
		case err := <-exited:
			// Leave the exit status for whoever reaps the process.
			exited <- err
			return fmt.Errorf("runtime exited during startup: %v", err)
		case <-ticker.C:
		}
	}
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
