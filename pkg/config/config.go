package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable consulted when no path is passed to Load
const EnvConfigPath = "SENTINEL_CONFIG"

// ErrNoTargets is returned by Validate when the priority list is empty
var ErrNoTargets = errors.New("priority list is empty")

// Config is the full process configuration. It is loaded once at startup.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
	Notify     NotifyConfig     `yaml:"notify"`
	Storage    StorageConfig    `yaml:"storage"`
	Failover   FailoverConfig   `yaml:"failover"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ServerConfig controls the status listeners. Empty addresses disable them.
type ServerConfig struct {
	HTTPAddress     string        `yaml:"httpAddress"`
	GRPCAddress     string        `yaml:"grpcAddress"`
	AllowedNetworks []string      `yaml:"allowedNetworks"` // empty allows every client
	RateLimit       float64       `yaml:"rateLimit"`       // requests per second per client, 0 disables
	RateBurst       int           `yaml:"rateBurst"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// RuntimeConfig selects and configures the container runtime driver.
type RuntimeConfig struct {
	Driver     string `yaml:"driver"` // docker or containerd
	DockerHost string `yaml:"dockerHost"`
	Socket     string `yaml:"socket"`
	Namespace  string `yaml:"namespace"`
	LogDir     string `yaml:"logDir"`
}

// NotifyConfig configures alert delivery.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhookURL"`
	Timeout    time.Duration `yaml:"timeout"`
	QueueSize  int           `yaml:"queueSize"`
}

// StorageConfig configures persistence. An empty DataDir keeps state in memory.
type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
}

// FailoverConfig configures resolver selection.
type FailoverConfig struct {
	Interval     time.Duration  `yaml:"interval"`
	ProbeTimeout time.Duration  `yaml:"probeTimeout"`
	Targets      []types.Target `yaml:"targets"`
}

// ReconcilerConfig configures container and network convergence.
type ReconcilerConfig struct {
	Interval           time.Duration           `yaml:"interval"`
	ProbeTimeout       time.Duration           `yaml:"probeTimeout"`
	ManageNetwork      bool                    `yaml:"manageNetwork"`
	Network            types.NetworkDescriptor `yaml:"network"`
	Containers         []string                `yaml:"containers"`
	MaxRestartsPerHour int                     `yaml:"maxRestartsPerHour"`
	DegradedAfter      int                     `yaml:"degradedAfter"`
	OperationTimeout   time.Duration           `yaml:"operationTimeout"` // each runtime call except restart
	RestartTimeout     time.Duration           `yaml:"restartTimeout"`
}

// AnalyzerConfig configures log signal analysis.
type AnalyzerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Containers       []string      `yaml:"containers"`
	WarningRate      float64       `yaml:"warningRate"`
	CriticalRate     float64       `yaml:"criticalRate"`
	Window           time.Duration `yaml:"window"`
	BurstWindow      time.Duration `yaml:"burstWindow"`
	Cooldown         time.Duration `yaml:"cooldown"`
	HistoryCapacity  int           `yaml:"historyCapacity"`
	ReconnectBackoff time.Duration `yaml:"reconnectBackoff"`
	IdleTimeout      time.Duration `yaml:"idleTimeout"`
	OpenTimeout      time.Duration `yaml:"openTimeout"`
	DegradedAfter    int           `yaml:"degradedAfter"` // consecutive stream open failures
}

// Load initialises Config from a YAML file and optional environment overrides.
// It does not validate; callers run Validate before starting any loop.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Default returns the configuration of the reference DNS HA stack.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Server: ServerConfig{
			HTTPAddress:     ":8080",
			GRPCAddress:     "",
			RateLimit:       10,
			RateBurst:       20,
			GracefulTimeout: 10 * time.Second,
		},
		Runtime: RuntimeConfig{
			Driver:    "docker",
			Socket:    "/run/containerd/containerd.sock",
			Namespace: "sentinel",
			LogDir:    "/var/log/sentinel/containers",
		},
		Notify: NotifyConfig{
			Timeout:   5 * time.Second,
			QueueSize: 100,
		},
		Failover: FailoverConfig{
			Interval:     30 * time.Second,
			ProbeTimeout: 5 * time.Second,
			Targets: []types.Target{
				{Name: "primary", Address: "192.168.8.251", Kind: types.TargetKindDNS, Priority: 1},
				{Name: "secondary", Address: "192.168.8.252", Kind: types.TargetKindDNS, Priority: 2},
				{Name: "backup1", Address: "127.0.0.1:5380", Kind: types.TargetKindDNS, Priority: 3},
				{Name: "backup2", Address: "127.0.0.1:5381", Kind: types.TargetKindDNS, Priority: 4},
				{Name: "cloud1", Address: "8.8.8.8", Kind: types.TargetKindDNS, Priority: 5},
				{Name: "cloud2", Address: "1.1.1.1", Kind: types.TargetKindDNS, Priority: 6},
			},
		},
		Reconciler: ReconcilerConfig{
			Interval:      60 * time.Second,
			ProbeTimeout:  5 * time.Second,
			ManageNetwork: true,
			Network: types.NetworkDescriptor{
				Name:            "dns_net",
				Driver:          "macvlan",
				Subnet:          "192.168.8.0/24",
				Gateway:         "192.168.8.1",
				ParentInterface: "eth0",
			},
			Containers: []string{
				"pihole_primary",
				"pihole_secondary",
				"unbound_primary",
				"unbound_secondary",
				"keepalived",
			},
			MaxRestartsPerHour: 3,
			DegradedAfter:      3,
			OperationTimeout:   30 * time.Second,
			RestartTimeout:     60 * time.Second,
		},
		Analyzer: AnalyzerConfig{
			Enabled:          true,
			WarningRate:      5,
			CriticalRate:     10,
			Window:           5 * time.Minute,
			BurstWindow:      60 * time.Second,
			Cooldown:         5 * time.Minute,
			HistoryCapacity:  1000,
			ReconnectBackoff: 15 * time.Second,
			IdleTimeout:      10 * time.Minute,
			OpenTimeout:      30 * time.Second,
			DegradedAfter:    3,
		},
	}
}

// Validate reports every problem found, aggregated into one error.
func (c *Config) Validate() error {
	var result *multierror.Error

	if len(c.Failover.Targets) == 0 {
		result = multierror.Append(result, ErrNoTargets)
	}

	seen := make(map[string]bool, len(c.Failover.Targets))
	for i, t := range c.Failover.Targets {
		if t.Name == "" {
			result = multierror.Append(result, fmt.Errorf("target %d: name is required", i))
		} else if seen[t.Name] {
			result = multierror.Append(result, fmt.Errorf("target %s: duplicate name", t.Name))
		}
		seen[t.Name] = true

		if t.Address == "" {
			result = multierror.Append(result, fmt.Errorf("target %s: address is required", t.Name))
		}
		if !t.Kind.Valid() {
			result = multierror.Append(result, fmt.Errorf("target %s: unknown kind %q", t.Name, t.Kind))
		}
	}

	if c.Failover.Interval <= 0 {
		result = multierror.Append(result, errors.New("failover.interval must be positive"))
	}
	if c.Failover.ProbeTimeout <= 0 {
		result = multierror.Append(result, errors.New("failover.probeTimeout must be positive"))
	}
	if c.Reconciler.Interval <= 0 {
		result = multierror.Append(result, errors.New("reconciler.interval must be positive"))
	}
	if c.Reconciler.MaxRestartsPerHour < 1 {
		result = multierror.Append(result, errors.New("reconciler.maxRestartsPerHour must be at least 1"))
	}
	if c.Reconciler.OperationTimeout <= 0 || c.Reconciler.RestartTimeout <= 0 {
		result = multierror.Append(result, errors.New("reconciler: operationTimeout and restartTimeout must be positive"))
	}

	if c.Reconciler.ManageNetwork {
		n := c.Reconciler.Network
		if n.Name == "" {
			result = multierror.Append(result, errors.New("reconciler.network.name is required"))
		}
		if _, _, err := net.ParseCIDR(n.Subnet); err != nil {
			result = multierror.Append(result, fmt.Errorf("reconciler.network.subnet: %w", err))
		}
		if net.ParseIP(n.Gateway) == nil {
			result = multierror.Append(result, fmt.Errorf("reconciler.network.gateway: invalid address %q", n.Gateway))
		}
	}

	a := c.Analyzer
	if a.Enabled {
		if a.WarningRate <= 0 || a.CriticalRate < a.WarningRate {
			result = multierror.Append(result, errors.New("analyzer: need 0 < warningRate <= criticalRate"))
		}
		if a.Window <= 0 || a.BurstWindow <= 0 || a.Cooldown < 0 {
			result = multierror.Append(result, errors.New("analyzer: windows must be positive"))
		}
		if a.HistoryCapacity < 1 {
			result = multierror.Append(result, errors.New("analyzer.historyCapacity must be at least 1"))
		}
		if a.OpenTimeout <= 0 {
			result = multierror.Append(result, errors.New("analyzer.openTimeout must be positive"))
		}
	}

	for _, cidr := range c.Server.AllowedNetworks {
		if net.ParseIP(cidr) == nil {
			if _, _, err := net.ParseCIDR(cidr); err != nil {
				result = multierror.Append(result, fmt.Errorf("server.allowedNetworks: invalid entry %q", cidr))
			}
		}
	}
	if c.Server.RateLimit < 0 {
		result = multierror.Append(result, errors.New("server.rateLimit must not be negative"))
	}

	switch c.Runtime.Driver {
	case "docker", "containerd":
	default:
		result = multierror.Append(result, fmt.Errorf("runtime.driver: unknown driver %q", c.Runtime.Driver))
	}

	return result.ErrorOrNil()
}

// PriorityList returns the targets ordered by precedence. Equal priorities
// keep their configured order so the ordering is total.
func (c *Config) PriorityList() []types.Target {
	targets := make([]types.Target, len(c.Failover.Targets))
	copy(targets, c.Failover.Targets)
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Priority < targets[j].Priority
	})
	return targets
}

// AnalyzedContainers returns the containers whose logs are analyzed,
// defaulting to the reconciler's monitored set.
func (c *Config) AnalyzedContainers() []string {
	if len(c.Analyzer.Containers) > 0 {
		return c.Analyzer.Containers
	}
	return c.Reconciler.Containers
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENTINEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SENTINEL_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SENTINEL_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("SENTINEL_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("SENTINEL_RUNTIME_DRIVER"); v != "" {
		cfg.Runtime.Driver = v
	}
	if v := os.Getenv("SENTINEL_DOCKER_HOST"); v != "" {
		cfg.Runtime.DockerHost = v
	}
	if v := os.Getenv("SENTINEL_CONTAINERD_SOCKET"); v != "" {
		cfg.Runtime.Socket = v
	}
	if v := firstEnv("SENTINEL_WEBHOOK_URL", "SIGNAL_BRIDGE_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("SENTINEL_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SENTINEL_CHECK_INTERVAL"); v != "" {
		if d, ok := parseInterval(v); ok {
			cfg.Failover.Interval = d
		}
	}
	if v := os.Getenv("SENTINEL_RECONCILE_INTERVAL"); v != "" {
		if d, ok := parseInterval(v); ok {
			cfg.Reconciler.Interval = d
		}
	}
	if v := os.Getenv("SENTINEL_SUBNET"); v != "" {
		cfg.Reconciler.Network.Subnet = v
	}
	if v := os.Getenv("SENTINEL_GATEWAY"); v != "" {
		cfg.Reconciler.Network.Gateway = v
	}
	if v := os.Getenv("SENTINEL_NETWORK_INTERFACE"); v != "" {
		cfg.Reconciler.Network.ParentInterface = v
	}
	if v := os.Getenv("SENTINEL_MAX_RESTARTS_PER_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reconciler.MaxRestartsPerHour = n
		}
	}

	// SENTINEL_TARGET_<NAME>_ADDRESS replaces the address of a configured target.
	for i := range cfg.Failover.Targets {
		key := "SENTINEL_TARGET_" + envName(cfg.Failover.Targets[i].Name) + "_ADDRESS"
		if v := os.Getenv(key); v != "" {
			cfg.Failover.Targets[i].Address = v
		}
	}
}

// parseInterval accepts Go durations and bare seconds.
func parseInterval(v string) (time.Duration, bool) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}

func envName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
