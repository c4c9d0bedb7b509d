// Package runspec validates container image references and produces
// normalized run configurations for provider agents. It is pure: no docker
// client, no network calls, value objects only.
package runspec

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"

	"github.com/heliogrid/heliogrid/internal/core/domain"
)

const (
	// DefaultMemoryBytes caps a job at 4 GiB unless the caller overrides.
	DefaultMemoryBytes = int64(4) << 30
	// DefaultCPUCores caps a job at 2 cores.
	DefaultCPUCores = 2.0
)

// imageRefPattern accepts [registry/]repository[:tag]: each path segment is
// lowercase alphanumeric with '.', '_' or '-' separators, the tag is up to
// 128 chars of [A-Za-z0-9_.-].
var imageRefPattern = regexp.MustCompile(
	`^[a-z0-9]+(?:[._-][a-z0-9]+)*(?:/[a-z0-9]+(?:[._-][a-z0-9]+)*)*(?::[A-Za-z0-9_.-]{1,128})?$`)

// ValidateImageRef reports whether ref is a well-formed container image
// reference. Empty strings are rejected.
func ValidateImageRef(ref string) bool {
	if ref == "" {
		return false
	}
	return imageRefPattern.MatchString(ref)
}

// Options are the caller-tunable parts of a run configuration. The zero
// value requests a GPU with default limits and no command override.
type Options struct {
	Command string
	Env     map[string]string
	Volumes map[string]string // host path -> container path
	NoGPU   bool
}

// Config is a normalized, validated execution descriptor.
type Config struct {
	Image       string            `json:"image"`
	Command     string            `json:"command,omitempty"`
	Env         map[string]string `json:"env"`
	Volumes     map[string]string `json:"volumes"`
	MemoryBytes int64             `json:"memory_bytes"`
	CPUCores    float64           `json:"cpu_cores"`
	GPU         bool              `json:"gpu"`
}

// Build validates the image reference and applies defaults.
func Build(image string, opts Options) (Config, error) {
	if !ValidateImageRef(image) {
		return Config{}, fmt.Errorf("%w: bad image reference %q", domain.ErrInvalidInput, image)
	}

	env := opts.Env
	if env == nil {
		env = map[string]string{}
	}
	volumes := opts.Volumes
	if volumes == nil {
		volumes = map[string]string{}
	}

	return Config{
		Image:       image,
		Command:     opts.Command,
		Env:         env,
		Volumes:     volumes,
		MemoryBytes: DefaultMemoryBytes,
		CPUCores:    DefaultCPUCores,
		GPU:         !opts.NoGPU,
	}, nil
}

// DockerSpec converts the config into the Docker API structures a provider
// agent hands to its local daemon. Types only; nothing is executed here.
func (c Config) DockerSpec() (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image: c.Image,
		Env:   c.envSlice(),
		Tty:   false,
	}
	if c.Command != "" {
		cfg.Cmd = []string{"sh", "-c", c.Command}
	}

	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   c.MemoryBytes,
			NanoCPUs: int64(c.CPUCores * 1e9),
		},
	}
	if c.GPU {
		hostCfg.Resources.DeviceRequests = []container.DeviceRequest{{
			Driver:       "nvidia",
			Count:        -1, // all visible devices
			Capabilities: [][]string{{"gpu"}},
		}}
	}
	for _, host := range sortedKeys(c.Volumes) {
		hostCfg.Mounts = append(hostCfg.Mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: host,
			Target: c.Volumes[host],
		})
	}
	return cfg, hostCfg
}

// RenderRunCommand returns a deterministic, human-readable docker-run
// equivalent of the config. Diagnostics only; never executed by the engine.
func (c Config) RenderRunCommand() string {
	var b strings.Builder
	b.WriteString("docker run --rm")
	fmt.Fprintf(&b, " --memory %d", c.MemoryBytes)
	fmt.Fprintf(&b, " --cpus %.2f", c.CPUCores)
	if c.GPU {
		b.WriteString(" --gpus all")
	}
	for _, k := range sortedKeys(c.Env) {
		fmt.Fprintf(&b, " -e %s=%s", k, c.Env[k])
	}
	for _, host := range sortedKeys(c.Volumes) {
		fmt.Fprintf(&b, " -v %s:%s", host, c.Volumes[host])
	}
	b.WriteString(" " + c.Image)
	if c.Command != "" {
		fmt.Fprintf(&b, " sh -c %q", c.Command)
	}
	return b.String()
}

func (c Config) envSlice() []string {
	out := make([]string, 0, len(c.Env))
	for _, k := range sortedKeys(c.Env) {
		out = append(out, k+"="+c.Env[k])
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
