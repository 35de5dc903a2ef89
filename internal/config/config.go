package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	Server   ServerConfig  `mapstructure:"server"`
	Search   SearchConfig  `mapstructure:"search"`
	VAD      VADConfig     `mapstructure:"vad"`
	CMN      CMNConfig     `mapstructure:"cmn"`
	LogLevel string        `mapstructure:"log_level"`
}

// PathsConfig locates the read-only models this engine loads at startup.
type PathsConfig struct {
	AcousticModel string `mapstructure:"acoustic_model"`
	Dictionary    string `mapstructure:"dictionary"`
	GrammarPrefix string `mapstructure:"gram"`
	GrammarList   string `mapstructure:"gramlist"`
}

type RuntimeConfig struct {
	Threads  int  `mapstructure:"threads"`
	Realtime bool `mapstructure:"realtime"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	ModuleAddr      string `mapstructure:"module_addr"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_secs"`
}

// SearchConfig carries the CLI surface table of the decoder's two search
// passes: Pass-1 frame-synchronous beam search and Pass-2 stack decoding.
type SearchConfig struct {
	Pass1BeamWidth int `mapstructure:"beam_width"`

	Pass2SentenceCount int     `mapstructure:"pass2_sentences"`
	Pass2OutputCount   int     `mapstructure:"pass2_output"`
	StackSize          int     `mapstructure:"stack_size"`
	OverflowPopLimit   int     `mapstructure:"overflow_pops"`
	ScanBeamThres      float64 `mapstructure:"scan_beam_thres"`
	LookupRange        int     `mapstructure:"lookup_range"`

	LMWeightPass1      float64 `mapstructure:"lm_weight1"`
	InsertPenaltyPass1 float64 `mapstructure:"insert_penalty1"`
	LMWeightPass2      float64 `mapstructure:"lm_weight2"`
	InsertPenaltyPass2 float64 `mapstructure:"insert_penalty2"`

	GPrune     string `mapstructure:"gprune"`
	TMixTopN   int    `mapstructure:"tmix"`
	IWCD1Mode  string `mapstructure:"iwcd1"`
	IWCD1BestN int    `mapstructure:"iwcd1_bestn"`
}

type VADConfig struct {
	LevelThreshold     int `mapstructure:"lv"`
	ZeroCrossThreshold int `mapstructure:"zc"`
	HeadMarginMS       int `mapstructure:"headmargin"`
	TailMarginMS       int `mapstructure:"tailmargin"`
	SPFrameDur         int `mapstructure:"spdur"`
}

type CMNConfig struct {
	LoadPath  string  `mapstructure:"load_path"`
	SavePath  string  `mapstructure:"save_path"`
	NoUpdate  bool    `mapstructure:"no_update"`
	MAPWeight float64 `mapstructure:"map_weight"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			AcousticModel: "models/am.bin",
			Dictionary:    "models/dict.txt",
			GrammarPrefix: "models/grammar",
		},
		Runtime: RuntimeConfig{
			Threads:  4,
			Realtime: true,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ModuleAddr:      "",
			ShutdownTimeout: 30,
		},
		Search: SearchConfig{
			Pass1BeamWidth:     -1,
			Pass2SentenceCount: 10,
			Pass2OutputCount:   1,
			StackSize:          500,
			OverflowPopLimit:   30000,
			ScanBeamThres:      80.0,
			LookupRange:        5,
			LMWeightPass1:      10.0,
			InsertPenaltyPass1: 0.0,
			LMWeightPass2:      10.0,
			InsertPenaltyPass2: 0.0,
			GPrune:             "heuristic",
			TMixTopN:           2,
			IWCD1Mode:          "max",
			IWCD1BestN:         3,
		},
		VAD: VADConfig{
			LevelThreshold:     2000,
			ZeroCrossThreshold: 60,
			HeadMarginMS:       300,
			TailMarginMS:       400,
			SPFrameDur:         10,
		},
		CMN: CMNConfig{
			MAPWeight: 100.0,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-acoustic-model", defaults.Paths.AcousticModel, "Path to binary acoustic model container")
	fs.String("paths-dictionary", defaults.Paths.Dictionary, "Path to HTK-style dictionary")
	fs.String("gram", defaults.Paths.GrammarPrefix, "Comma-separated grammar file prefixes to load")
	fs.String("gramlist", defaults.Paths.GrammarList, "File listing grammar prefixes to load")

	fs.Int("threads", defaults.Runtime.Threads, "Gaussian evaluation worker count")
	fs.Bool("realtime", defaults.Runtime.Realtime, "Pipelined (true) vs batched (false) Pass 1")

	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP health/control listen address")
	fs.String("module-addr", defaults.Server.ModuleAddr, "Module-mode TCP listen address (empty disables)")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain timeout in seconds")

	fs.Int("b", defaults.Search.Pass1BeamWidth, "Pass-1 beam width (0=full, -1=auto)")
	fs.Int("n", defaults.Search.Pass2SentenceCount, "Pass-2 sentences to find")
	fs.Int("output", defaults.Search.Pass2OutputCount, "Pass-2 sentences to output")
	fs.Int("s", defaults.Search.StackSize, "Pass-2 stack size")
	fs.Int("m", defaults.Search.OverflowPopLimit, "Pass-2 overflow pop limit")
	fs.Float64("sb", defaults.Search.ScanBeamThres, "Pass-2 score envelope threshold")
	fs.Int("lookup-range", defaults.Search.LookupRange, "Pass-2 trellis neighborhood lookup range")
	fs.Float64("lmp-alpha", defaults.Search.LMWeightPass1, "Pass-1 LM weight")
	fs.Float64("lmp-beta", defaults.Search.InsertPenaltyPass1, "Pass-1 insertion penalty")
	fs.Float64("lmp2-alpha", defaults.Search.LMWeightPass2, "Pass-2 LM weight")
	fs.Float64("lmp2-beta", defaults.Search.InsertPenaltyPass2, "Pass-2 insertion penalty")
	fs.String("gprune", defaults.Search.GPrune, "Gaussian pruning mode (none|safe|heuristic|beam)")
	fs.Int("tmix", defaults.Search.TMixTopN, "Top-N Gaussians per mixture")
	fs.String("iwcd1", defaults.Search.IWCD1Mode, "Cross-word approximation mode at Pass 1 (max|avg|best)")
	fs.Int("iwcd1-bestn", defaults.Search.IWCD1BestN, "N for iwcd1=best")

	fs.Int("lv", defaults.VAD.LevelThreshold, "VAD level threshold")
	fs.Int("zc", defaults.VAD.ZeroCrossThreshold, "VAD zero-crossing threshold")
	fs.Int("headmargin", defaults.VAD.HeadMarginMS, "VAD head margin in ms")
	fs.Int("tailmargin", defaults.VAD.TailMarginMS, "VAD tail margin in ms")
	fs.Int("spdur", defaults.VAD.SPFrameDur, "Short-pause frame count for segmentation")

	fs.String("cmnload", defaults.CMN.LoadPath, "CMN mean vector file to load at startup")
	fs.String("cmnsave", defaults.CMN.SavePath, "CMN mean vector file to save after each utterance")
	fs.Bool("cmnnoupdate", defaults.CMN.NoUpdate, "Disable CMN mean update at utterance end")
	fs.Float64("cmnmapweight", defaults.CMN.MAPWeight, "MAP smoothing weight for CMN")

	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("GORECOG")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("gorecog")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks cross-option consistency that the original engine's
// m_chkparam.c enforced at startup: pruning mode names must be recognised,
// the stack size must be usable, and at least one grammar source given.
func (c Config) Validate() error {
	switch c.Search.GPrune {
	case "none", "safe", "heuristic", "beam":
	default:
		return fmt.Errorf("invalid gprune mode %q (want none|safe|heuristic|beam)", c.Search.GPrune)
	}

	switch c.Search.IWCD1Mode {
	case "max", "avg", "best":
	default:
		return fmt.Errorf("invalid iwcd1 mode %q (want max|avg|best)", c.Search.IWCD1Mode)
	}

	if c.Search.StackSize <= 0 {
		return fmt.Errorf("stack size must be positive, got %d", c.Search.StackSize)
	}

	if c.Paths.GrammarPrefix == "" && c.Paths.GrammarList == "" {
		return fmt.Errorf("no grammar configured: set -gram or -gramlist")
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.acoustic_model", c.Paths.AcousticModel)
	v.SetDefault("paths.dictionary", c.Paths.Dictionary)
	v.SetDefault("paths.gram", c.Paths.GrammarPrefix)
	v.SetDefault("paths.gramlist", c.Paths.GrammarList)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("runtime.realtime", c.Runtime.Realtime)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.module_addr", c.Server.ModuleAddr)
	v.SetDefault("server.shutdown_timeout_secs", c.Server.ShutdownTimeout)
	v.SetDefault("search.beam_width", c.Search.Pass1BeamWidth)
	v.SetDefault("search.pass2_sentences", c.Search.Pass2SentenceCount)
	v.SetDefault("search.pass2_output", c.Search.Pass2OutputCount)
	v.SetDefault("search.stack_size", c.Search.StackSize)
	v.SetDefault("search.overflow_pops", c.Search.OverflowPopLimit)
	v.SetDefault("search.scan_beam_thres", c.Search.ScanBeamThres)
	v.SetDefault("search.lookup_range", c.Search.LookupRange)
	v.SetDefault("search.lm_weight1", c.Search.LMWeightPass1)
	v.SetDefault("search.insert_penalty1", c.Search.InsertPenaltyPass1)
	v.SetDefault("search.lm_weight2", c.Search.LMWeightPass2)
	v.SetDefault("search.insert_penalty2", c.Search.InsertPenaltyPass2)
	v.SetDefault("search.gprune", c.Search.GPrune)
	v.SetDefault("search.tmix", c.Search.TMixTopN)
	v.SetDefault("search.iwcd1", c.Search.IWCD1Mode)
	v.SetDefault("search.iwcd1_bestn", c.Search.IWCD1BestN)
	v.SetDefault("vad.lv", c.VAD.LevelThreshold)
	v.SetDefault("vad.zc", c.VAD.ZeroCrossThreshold)
	v.SetDefault("vad.headmargin", c.VAD.HeadMarginMS)
	v.SetDefault("vad.tailmargin", c.VAD.TailMarginMS)
	v.SetDefault("vad.spdur", c.VAD.SPFrameDur)
	v.SetDefault("cmn.load_path", c.CMN.LoadPath)
	v.SetDefault("cmn.save_path", c.CMN.SavePath)
	v.SetDefault("cmn.no_update", c.CMN.NoUpdate)
	v.SetDefault("cmn.map_weight", c.CMN.MAPWeight)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.acoustic_model", "paths-acoustic-model")
	v.RegisterAlias("paths.dictionary", "paths-dictionary")
	v.RegisterAlias("paths.gram", "gram")
	v.RegisterAlias("paths.gramlist", "gramlist")
	v.RegisterAlias("runtime.threads", "threads")
	v.RegisterAlias("runtime.realtime", "realtime")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.module_addr", "module-addr")
	v.RegisterAlias("server.shutdown_timeout_secs", "shutdown-timeout")
	v.RegisterAlias("search.beam_width", "b")
	v.RegisterAlias("search.pass2_sentences", "n")
	v.RegisterAlias("search.pass2_output", "output")
	v.RegisterAlias("search.stack_size", "s")
	v.RegisterAlias("search.overflow_pops", "m")
	v.RegisterAlias("search.scan_beam_thres", "sb")
	v.RegisterAlias("search.lookup_range", "lookup-range")
	v.RegisterAlias("search.lm_weight1", "lmp-alpha")
	v.RegisterAlias("search.insert_penalty1", "lmp-beta")
	v.RegisterAlias("search.lm_weight2", "lmp2-alpha")
	v.RegisterAlias("search.insert_penalty2", "lmp2-beta")
	v.RegisterAlias("search.gprune", "gprune")
	v.RegisterAlias("search.tmix", "tmix")
	v.RegisterAlias("search.iwcd1", "iwcd1")
	v.RegisterAlias("search.iwcd1_bestn", "iwcd1-bestn")
	v.RegisterAlias("vad.lv", "lv")
	v.RegisterAlias("vad.zc", "zc")
	v.RegisterAlias("vad.headmargin", "headmargin")
	v.RegisterAlias("vad.tailmargin", "tailmargin")
	v.RegisterAlias("vad.spdur", "spdur")
	v.RegisterAlias("cmn.load_path", "cmnload")
	v.RegisterAlias("cmn.save_path", "cmnsave")
	v.RegisterAlias("cmn.no_update", "cmnnoupdate")
	v.RegisterAlias("cmn.map_weight", "cmnmapweight")
	v.RegisterAlias("log_level", "log-level")
}
