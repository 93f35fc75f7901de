package polysynth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/polysynth-go/internal/audio"
	"github.com/cbegin/polysynth-go/internal/channel"
	"github.com/cbegin/polysynth-go/internal/effects"
	"github.com/cbegin/polysynth-go/internal/envelope"
	"github.com/cbegin/polysynth-go/internal/filter"
	"github.com/cbegin/polysynth-go/internal/lfo"
	"github.com/cbegin/polysynth-go/internal/osc"
	"github.com/cbegin/polysynth-go/internal/pattern"
	"github.com/cbegin/polysynth-go/internal/voice"
)

const (
	DefaultSampleRate       = 44100
	DefaultBufferFrames     = 1024
	DefaultChannels         = 8
	DefaultVoicesPerChannel = channel.DefaultMaxVoices
	DefaultBPM              = 120
	DefaultBeatsPerPattern  = 16
	DefaultStopTimeout      = time.Second
	DefaultErrorBackoff     = 10 * time.Millisecond
)

// Config is the YAML-loadable description of an engine, its channels,
// effects and pattern library.
type Config struct {
	Engine      EngineConfig       `yaml:"engine"`
	Channels    []ChannelConfig    `yaml:"channels,omitempty"`
	Effects     effects.Params     `yaml:"effects"`
	Patterns    []PatternConfig    `yaml:"patterns,omitempty"`
	Assignments []AssignmentConfig `yaml:"assignments,omitempty"`
}

type EngineConfig struct {
	SampleRate       int           `yaml:"sample_rate"`
	BufferFrames     int           `yaml:"buffer_frames"`
	Channels         int           `yaml:"channels"`
	VoicesPerChannel int           `yaml:"voices_per_channel"`
	BPM              int           `yaml:"bpm"`
	BeatsPerPattern  int           `yaml:"beats_per_pattern"`
	Backend          string        `yaml:"backend"`
	Output           string        `yaml:"output,omitempty"` // wav backend path
	Realtime         bool          `yaml:"realtime"`         // pace the discard backend
	StopTimeout      time.Duration `yaml:"stop_timeout"`
	ErrorBackoff     time.Duration `yaml:"error_backoff"`
}

// ChannelConfig overrides one channel. Unset fields keep the channel
// defaults.
type ChannelConfig struct {
	Index    int             `yaml:"index"`
	Enabled  *bool           `yaml:"enabled,omitempty"`
	Volume   *float64        `yaml:"volume,omitempty"`
	Pan      *float64        `yaml:"pan,omitempty"`
	Waveform string          `yaml:"waveform,omitempty"`
	Envelope *EnvelopeConfig `yaml:"envelope,omitempty"`
	Filter   *FilterConfig   `yaml:"filter,omitempty"`
	PitchLFO *LFOConfig      `yaml:"pitch_lfo,omitempty"`
	AmpLFO   *LFOConfig      `yaml:"amp_lfo,omitempty"`
}

// EnvelopeConfig overrides envelope fields one by one; nil keeps the
// template's value.
type EnvelopeConfig struct {
	Attack  *float64 `yaml:"attack,omitempty"`
	Decay   *float64 `yaml:"decay,omitempty"`
	Sustain *float64 `yaml:"sustain,omitempty"`
	Release *float64 `yaml:"release,omitempty"`
}

func (c *EnvelopeConfig) apply(p envelope.Params) envelope.Params {
	if c == nil {
		return p
	}
	overlay(&p.AttackSec, c.Attack)
	overlay(&p.DecaySec, c.Decay)
	overlay(&p.SustainLvl, c.Sustain)
	overlay(&p.ReleaseSec, c.Release)
	return p
}

type FilterConfig struct {
	Type      string  `yaml:"type"`
	Cutoff    float64 `yaml:"cutoff"`
	Resonance float64 `yaml:"resonance"`
}

type LFOConfig struct {
	Waveform  string   `yaml:"waveform"`
	Frequency float64  `yaml:"frequency"`
	Depth     *float64 `yaml:"depth,omitempty"`
}

// PatternConfig adds or replaces a named pattern in the library.
type PatternConfig struct {
	Name   string         `yaml:"name"`
	Length int            `yaml:"length"`
	Notes  []pattern.Note `yaml:"notes"`
}

// AssignmentConfig routes a pattern onto a channel. Layer adds the pattern
// on top of earlier assignments instead of replacing them.
type AssignmentConfig struct {
	Channel   int     `yaml:"channel"`
	Pattern   string  `yaml:"pattern"`
	Volume    float64 `yaml:"volume"`
	Transpose int     `yaml:"transpose"`
	Layer     bool    `yaml:"layer"`
	Muted     bool    `yaml:"muted"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SampleRate:       DefaultSampleRate,
		BufferFrames:     DefaultBufferFrames,
		Channels:         DefaultChannels,
		VoicesPerChannel: DefaultVoicesPerChannel,
		BPM:              DefaultBPM,
		BeatsPerPattern:  DefaultBeatsPerPattern,
		Backend:          audio.BackendEbiten,
		StopTimeout:      DefaultStopTimeout,
		ErrorBackoff:     DefaultErrorBackoff,
	}
}

// DefaultConfig returns the stock engine with the built-in drum, bass and
// melody patterns routed onto the first five channels.
func DefaultConfig() Config {
	return Config{
		Engine:  DefaultEngineConfig(),
		Effects: effects.DefaultParams(),
		Channels: []ChannelConfig{
			{Index: 0, Waveform: "sine"},
			{Index: 1, Waveform: "noise"},
			{Index: 2, Waveform: "noise", Volume: ptr(0.4)},
			{Index: 3, Waveform: "sawtooth", Filter: &FilterConfig{Type: "lowpass", Cutoff: 1200, Resonance: 2}},
			{Index: 4, Waveform: "square", Pan: ptr(0.2)},
			{Index: 5, Waveform: "triangle"},
		},
		Assignments: []AssignmentConfig{
			{Channel: 0, Pattern: "Kick", Volume: 1},
			{Channel: 1, Pattern: "Snare", Volume: 1},
			{Channel: 2, Pattern: "Hi-Hat", Volume: 1},
			{Channel: 3, Pattern: "Bass", Volume: 1},
			{Channel: 4, Pattern: "Melody", Volume: 0.8},
		},
	}
}

// LoadConfig reads a YAML config from path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML on top of the engine and effect defaults. Lists
// (channels, patterns, assignments) replace the defaults wholesale when
// present.
func ParseConfig(data []byte) (Config, error) {
	cfg := Config{
		Engine:  DefaultEngineConfig(),
		Effects: effects.DefaultParams(),
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate reports the first structural problem in c. Numeric parameters
// are not checked here; the engine clamps them.
func (c Config) Validate() error {
	e := c.Engine.withDefaults()
	if c.Engine.SampleRate < 0 {
		return errors.New("sampleRate must be positive")
	}
	for _, ch := range c.Channels {
		if ch.Index < 0 || ch.Index >= e.Channels {
			return fmt.Errorf("channel config %d: %w", ch.Index, pattern.ErrChannelRange)
		}
		if _, err := ch.settings(channelTemplate()); err != nil {
			return fmt.Errorf("channel config %d: %w", ch.Index, err)
		}
	}
	for _, p := range c.Patterns {
		if p.Name == "" {
			return errors.New("pattern without a name")
		}
	}
	for _, a := range c.Assignments {
		if a.Channel < 0 || a.Channel >= e.Channels {
			return fmt.Errorf("assignment %q: %w", a.Pattern, pattern.ErrChannelRange)
		}
		if a.Pattern == "" {
			return errors.New("assignment without a pattern")
		}
	}
	return nil
}

// withDefaults fills zero fields with the stock values.
func (e EngineConfig) withDefaults() EngineConfig {
	d := DefaultEngineConfig()
	if e.SampleRate == 0 {
		e.SampleRate = d.SampleRate
	}
	if e.BufferFrames <= 0 {
		e.BufferFrames = d.BufferFrames
	}
	if e.Channels <= 0 {
		e.Channels = d.Channels
	}
	if e.VoicesPerChannel <= 0 {
		e.VoicesPerChannel = d.VoicesPerChannel
	}
	if e.BPM <= 0 {
		e.BPM = d.BPM
	}
	if e.BeatsPerPattern <= 0 {
		e.BeatsPerPattern = d.BeatsPerPattern
	}
	if e.Backend == "" {
		e.Backend = d.Backend
	}
	if e.StopTimeout <= 0 {
		e.StopTimeout = d.StopTimeout
	}
	if e.ErrorBackoff <= 0 {
		e.ErrorBackoff = d.ErrorBackoff
	}
	return e
}

// channelTemplate matches the voice template of a freshly built channel.
func channelTemplate() voice.Settings {
	s := voice.DefaultSettings()
	s.Waveform = osc.Sine
	return s
}

// settings overlays c onto base.
func (c ChannelConfig) settings(base voice.Settings) (voice.Settings, error) {
	s := base
	if c.Waveform != "" {
		w, err := osc.ParseWaveform(c.Waveform)
		if err != nil {
			return s, fmt.Errorf("%w: %q", err, c.Waveform)
		}
		s.Waveform = w
	}
	s.Envelope = c.Envelope.apply(s.Envelope)
	if f := c.Filter; f != nil {
		if f.Type != "" {
			t, err := filter.ParseType(f.Type)
			if err != nil {
				return s, fmt.Errorf("%w: %q", err, f.Type)
			}
			s.Filter = t
		}
		if f.Cutoff != 0 {
			s.Cutoff = f.Cutoff
		}
		if f.Resonance != 0 {
			s.Resonance = f.Resonance
		}
	}
	var err error
	if s.PitchLFO, err = c.PitchLFO.apply(s.PitchLFO); err != nil {
		return s, err
	}
	if s.AmpLFO, err = c.AmpLFO.apply(s.AmpLFO); err != nil {
		return s, err
	}
	return s, nil
}

func (l *LFOConfig) apply(p lfo.Params) (lfo.Params, error) {
	if l == nil {
		return p, nil
	}
	if l.Waveform != "" {
		w, err := lfo.ParseWaveform(l.Waveform)
		if err != nil {
			return p, fmt.Errorf("%w: %q", err, l.Waveform)
		}
		p.Waveform = w
	}
	if l.Frequency != 0 {
		p.Frequency = l.Frequency
	}
	overlay(&p.Depth, l.Depth)
	return p, nil
}

func overlay[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func ptr[T any](v T) *T { return &v }
