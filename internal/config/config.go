package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/grid"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

// ErrUnsupportedVersion is returned for any grid.yaml version but 1.
var ErrUnsupportedVersion = errors.New("unsupported grid.yaml version")

const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var gridIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

type GridConfig struct {
	Version int `yaml:"version"`
	Grid    struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"grid"`
	Network NetworkConfig `yaml:"network"`
	Storage StorageConfig `yaml:"storage"`
	Engine  EngineConfig  `yaml:"engine"`
	Policy  PolicyConfig  `yaml:"policy"`
	World   WorldConfig   `yaml:"world"`
	Nodes   []NodeConfig  `yaml:"nodes"`
	Bridge  BridgeConfig  `yaml:"bridge"`
}

type NetworkConfig struct {
	HTTPPort     int    `yaml:"http_port"`
	MQTTURL      string `yaml:"mqtt_url"`
	MQTTOptional bool   `yaml:"mqtt_optional"`
}

type StorageConfig struct {
	Driver             string `yaml:"driver"`
	SQLitePath         string `yaml:"sqlite_path"`
	FlushIntervalTicks int    `yaml:"flush_interval_ticks"`
}

type EngineConfig struct {
	TickMS   int    `yaml:"tick_ms"`
	LogLevel string `yaml:"log_level"`
}

// PolicyConfig is the hot-reloadable part of the file.
type PolicyConfig struct {
	WithoutSwitchLinking     bool `yaml:"without_switch_linking"`
	WithoutSwitchNoOutput    bool `yaml:"without_switch_nooutput"`
	WithoutPulseTimeConfig   bool `yaml:"without_pulsetime_config"`
	MaxLinkDistance          *int `yaml:"max_link_distance"`
	ConfigClickTimeoutMS     int  `yaml:"config_click_timeout_ms"`
	VolumetricUpdateInterval int  `yaml:"volumetric_update_interval"`
	LinearUpdateInterval     int  `yaml:"linear_update_interval"`
}

type WorldConfig struct {
	DayTime    int64 `yaml:"day_time"`
	Raining    bool  `yaml:"raining"`
	Thundering bool  `yaml:"thundering"`
	SkyLight   *int  `yaml:"sky_light"`
	Frozen     bool  `yaml:"frozen"`
}

type NodeConfig struct {
	Type   string       `yaml:"type"`
	Pos    Position     `yaml:"pos"`
	Facing string       `yaml:"facing"`
	Params node.Params  `yaml:"params"`
	Links  []LinkConfig `yaml:"links"`
}

type LinkConfig struct {
	Target Position `yaml:"target"`
	Mode   string   `yaml:"mode"`
}

type BridgeConfig struct {
	Bindings map[string]string `yaml:"bindings"`
}

// Position accepts either a [x, y, z] sequence or an "x,y,z" string.
type Position geom.Pos

func (p *Position) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var xyz []int
		if err := n.Decode(&xyz); err != nil {
			return err
		}
		if len(xyz) != 3 {
			return fmt.Errorf("line %d: position needs 3 coordinates, got %d", n.Line, len(xyz))
		}
		*p = Position{X: xyz[0], Y: xyz[1], Z: xyz[2]}
		return nil
	case yaml.ScalarNode:
		v, err := geom.ParsePos(n.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		*p = Position(v)
		return nil
	}
	return fmt.Errorf("line %d: invalid position", n.Line)
}

// Load reads, defaults and validates a grid.yaml.
func Load(path string) (*GridConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a grid.yaml document.
func Parse(b []byte) (*GridConfig, error) {
	var cfg GridConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if cfg.Version != 1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, cfg.Version)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *GridConfig) applyDefaults() {
	if c.Network.HTTPPort == 0 {
		c.Network.HTTPPort = 8080
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverNone
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "signalgrid.db"
	}
	if c.Storage.FlushIntervalTicks == 0 {
		c.Storage.FlushIntervalTicks = 100
	}
	if c.Engine.TickMS == 0 {
		c.Engine.TickMS = 50
	}
	if c.Engine.LogLevel == "" {
		c.Engine.LogLevel = "info"
	}
	if c.Policy.MaxLinkDistance == nil {
		d := 48
		c.Policy.MaxLinkDistance = &d
	}
	if c.Policy.ConfigClickTimeoutMS == 0 {
		c.Policy.ConfigClickTimeoutMS = 700
	}
	if c.Policy.VolumetricUpdateInterval == 0 {
		c.Policy.VolumetricUpdateInterval = 10
	}
	if c.Policy.LinearUpdateInterval == 0 {
		c.Policy.LinearUpdateInterval = 4
	}
	if c.World.SkyLight == nil {
		s := 15
		c.World.SkyLight = &s
	}
}

// Validate checks every section. Node and link errors name the offending
// list index.
func (c *GridConfig) Validate() error {
	if err := validation.ValidateStruct(&c.Grid,
		validation.Field(&c.Grid.ID, validation.Required, validation.Match(gridIDPattern)),
	); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	if err := validation.ValidateStruct(&c.Network,
		validation.Field(&c.Network.HTTPPort, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return fmt.Errorf("network: %w", err)
	}
	if err := validation.ValidateStruct(&c.Storage,
		validation.Field(&c.Storage.Driver, validation.In(DriverNone, DriverPostgres, DriverSQLite)),
		validation.Field(&c.Storage.FlushIntervalTicks, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := validation.ValidateStruct(&c.Engine,
		validation.Field(&c.Engine.TickMS, validation.Min(1), validation.Max(1000)),
		validation.Field(&c.Engine.LogLevel, validation.In("debug", "info", "warn", "error")),
	); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if err := validation.ValidateStruct(&c.World,
		validation.Field(&c.World.DayTime, validation.Min(int64(0))),
		validation.Field(&c.World.SkyLight, validation.Min(0), validation.Max(15)),
	); err != nil {
		return fmt.Errorf("world: %w", err)
	}
	for i := range c.Nodes {
		if err := c.Nodes[i].Validate(); err != nil {
			return fmt.Errorf("nodes[%d]: %w", i, err)
		}
	}
	for alias, pos := range c.Bridge.Bindings {
		if _, err := geom.ParsePos(pos); err != nil {
			return fmt.Errorf("bridge.bindings[%s]: %w", alias, err)
		}
	}
	return nil
}

func (p PolicyConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MaxLinkDistance, validation.Min(0)),
		validation.Field(&p.ConfigClickTimeoutMS, validation.Min(500), validation.Max(1200)),
		validation.Field(&p.VolumetricUpdateInterval, validation.Min(5), validation.Max(50)),
		validation.Field(&p.LinearUpdateInterval, validation.Min(1), validation.Max(50)),
	)
}

func (n NodeConfig) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Type, validation.Required, validation.By(knownType)),
		validation.Field(&n.Facing, validation.By(validFacing)),
		validation.Field(&n.Links),
	)
}

func (l LinkConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Mode, validation.By(validMode)),
	)
}

func knownType(v interface{}) error {
	s, _ := v.(string)
	if _, ok := node.Lookup(s); !ok {
		return fmt.Errorf("unknown node type %q", s)
	}
	return nil
}

func validFacing(v interface{}) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	_, err := geom.ParseDirection(s)
	return err
}

func validMode(v interface{}) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	var m node.LinkMode
	return m.UnmarshalText([]byte(s))
}

// Addr is the HTTP listen address.
func (c *GridConfig) Addr() string {
	return ":" + strconv.Itoa(c.Network.HTTPPort)
}

func (c *GridConfig) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickMS) * time.Millisecond
}

// LogLevel maps engine.log_level onto slog.
func (c *GridConfig) LogLevel() slog.Level {
	switch strings.ToLower(c.Engine.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Options builds the node policy. Clock and hooks are left to the grid.
func (p PolicyConfig) Options() node.Options {
	o := node.DefaultOptions()
	o.WithoutLinking = p.WithoutSwitchLinking
	o.WithoutNoOutput = p.WithoutSwitchNoOutput
	o.WithoutPulseTimeConfig = p.WithoutPulseTimeConfig
	if p.MaxLinkDistance != nil {
		o.MaxLinkDistance = *p.MaxLinkDistance
	}
	if p.ConfigClickTimeoutMS > 0 {
		o.ClickTimeout = time.Duration(p.ConfigClickTimeoutMS) * time.Millisecond
	}
	if p.VolumetricUpdateInterval > 0 {
		o.VolumetricInterval = p.VolumetricUpdateInterval
	}
	if p.LinearUpdateInterval > 0 {
		o.LinearInterval = p.LinearUpdateInterval
	}
	return o
}

func (w WorldConfig) Environment() grid.Environment {
	e := grid.DefaultEnvironment()
	e.DayTime = w.DayTime
	e.Raining = w.Raining
	e.Thundering = w.Thundering
	e.Frozen = w.Frozen
	if w.SkyLight != nil {
		e.SkyLight = *w.SkyLight
	}
	return e
}

// Placements converts the nodes section into a grid layout. Facing
// defaults to north and link mode to toggle.
func (c *GridConfig) Placements() ([]grid.Placement, error) {
	out := make([]grid.Placement, 0, len(c.Nodes))
	for i, n := range c.Nodes {
		facing := geom.North
		if n.Facing != "" {
			d, err := geom.ParseDirection(n.Facing)
			if err != nil {
				return nil, fmt.Errorf("nodes[%d]: %w", i, err)
			}
			facing = d
		}
		pl := grid.Placement{Type: n.Type, Pos: geom.Pos(n.Pos), Facing: facing, Params: n.Params}
		for _, l := range n.Links {
			mode := node.ModeToggle
			if l.Mode != "" {
				if err := mode.UnmarshalText([]byte(l.Mode)); err != nil {
					return nil, fmt.Errorf("nodes[%d]: %w", i, err)
				}
			}
			pl.Links = append(pl.Links, grid.LinkSpec{Target: geom.Pos(l.Target), Mode: mode})
		}
		out = append(out, pl)
	}
	return out, nil
}
