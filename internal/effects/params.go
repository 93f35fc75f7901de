package effects

type DistortionParams struct {
	Enabled bool    `yaml:"enabled"`
	Drive   float64 `yaml:"drive"` // 1-10
	Mix     float64 `yaml:"mix"`
}

type CompressorParams struct {
	Enabled     bool    `yaml:"enabled"`
	ThresholdDB float64 `yaml:"threshold_db"` // -30..0
	Ratio       float64 `yaml:"ratio"`        // 1-20
	Attack      float64 `yaml:"attack"`       // seconds, 0.001-0.1
	Release     float64 `yaml:"release"`      // seconds, 0.01-1
}

type EQParams struct {
	Enabled bool `yaml:"enabled"`
}

type ChorusParams struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate"`  // Hz, 0.5-10
	Depth   float64 `yaml:"depth"` // 0.1-1
	Mix     float64 `yaml:"mix"`
}

type DelayParams struct {
	Enabled  bool    `yaml:"enabled"`
	Time     float64 `yaml:"time"`     // seconds, 0.1-2
	Feedback float64 `yaml:"feedback"` // 0-0.9
	Mix      float64 `yaml:"mix"`
}

type ReverbParams struct {
	Enabled bool    `yaml:"enabled"`
	Mix     float64 `yaml:"mix"`
	Decay   float64 `yaml:"decay"` // 0.1-0.9
}

// Params is the full chain configuration.
type Params struct {
	Distortion DistortionParams `yaml:"distortion"`
	Compressor CompressorParams `yaml:"compressor"`
	EQ         EQParams         `yaml:"eq"`
	Chorus     ChorusParams     `yaml:"chorus"`
	Delay      DelayParams      `yaml:"delay"`
	Reverb     ReverbParams     `yaml:"reverb"`
}

// DefaultParams returns every effect disabled with its stock settings.
func DefaultParams() Params {
	return Params{
		Distortion: DistortionParams{Drive: 2, Mix: 1},
		Compressor: CompressorParams{ThresholdDB: -12, Ratio: 4, Attack: 0.003, Release: 0.1},
		Chorus:     ChorusParams{Rate: 2, Depth: 0.5, Mix: 0.4},
		Delay:      DelayParams{Time: 0.25, Feedback: 0.4, Mix: 0.3},
		Reverb:     ReverbParams{Mix: 0.3, Decay: 0.5},
	}
}

// Clamped returns p with every value forced into its documented range.
func (p Params) Clamped() Params {
	p.Distortion.Drive = clamp(p.Distortion.Drive, 1, 10)
	p.Distortion.Mix = clamp(p.Distortion.Mix, 0, 1)
	p.Compressor.ThresholdDB = clamp(p.Compressor.ThresholdDB, -30, 0)
	p.Compressor.Ratio = clamp(p.Compressor.Ratio, 1, 20)
	p.Compressor.Attack = clamp(p.Compressor.Attack, 0.001, 0.1)
	p.Compressor.Release = clamp(p.Compressor.Release, 0.01, 1)
	p.Chorus.Rate = clamp(p.Chorus.Rate, 0.5, 10)
	p.Chorus.Depth = clamp(p.Chorus.Depth, 0.1, 1)
	p.Chorus.Mix = clamp(p.Chorus.Mix, 0, 1)
	p.Delay.Time = clamp(p.Delay.Time, 0.1, 2)
	p.Delay.Feedback = clamp(p.Delay.Feedback, 0, 0.9)
	p.Delay.Mix = clamp(p.Delay.Mix, 0, 1)
	p.Reverb.Mix = clamp(p.Reverb.Mix, 0, 1)
	p.Reverb.Decay = clamp(p.Reverb.Decay, 0.1, 0.9)
	return p
}

func (p *Params) enabled(k Kind) bool {
	switch k {
	case KindDistortion:
		return p.Distortion.Enabled
	case KindCompressor:
		return p.Compressor.Enabled
	case KindEQ:
		return p.EQ.Enabled
	case KindChorus:
		return p.Chorus.Enabled
	case KindDelay:
		return p.Delay.Enabled
	case KindReverb:
		return p.Reverb.Enabled
	}
	return false
}

func (p *Params) setEnabled(k Kind, on bool) {
	switch k {
	case KindDistortion:
		p.Distortion.Enabled = on
	case KindCompressor:
		p.Compressor.Enabled = on
	case KindEQ:
		p.EQ.Enabled = on
	case KindChorus:
		p.Chorus.Enabled = on
	case KindDelay:
		p.Delay.Enabled = on
	case KindReverb:
		p.Reverb.Enabled = on
	}
}
