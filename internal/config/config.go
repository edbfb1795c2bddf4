// Package config loads node and Echolink instance configuration using Viper,
// following the same defaults-then-file-then-env precedence the rest of the
// corpus uses for service configuration.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ToneMacro maps an incoming CTCSS code to a macro string appended to the
// node's macro buffer (§4.2 RX-radio CONTROL[KEY]).
type ToneMacro struct {
	Tone  string `mapstructure:"tone" yaml:"tone"`
	Macro string `mapstructure:"macro" yaml:"macro"`
}

// NodeConfig holds the per-node keys enumerated in spec §6.
type NodeConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Context string `mapstructure:"context" yaml:"context"`

	HangTimeMS         int `mapstructure:"hangtime" yaml:"hangtime"`
	AltHangTimeMS       int `mapstructure:"althangtime" yaml:"althangtime"`
	TotimeMS            int `mapstructure:"totime" yaml:"totime"`
	VoxTimeoutMS        int `mapstructure:"voxtimeout" yaml:"voxtimeout"`
	VoxRecoverMS        int `mapstructure:"voxrecover" yaml:"voxrecover"`
	TailMessageTimeMS   int `mapstructure:"tailmessagetime" yaml:"tailmessagetime"`
	TailSquashedTimeMS  int `mapstructure:"tailsquashedtime" yaml:"tailsquashedtime"`

	// Duplex is 0..4, see spec §4.5.
	Duplex int `mapstructure:"duplex" yaml:"duplex"`

	IDTimeMS    int    `mapstructure:"idtime" yaml:"idtime"`
	PoliteIDMS  int    `mapstructure:"politeid" yaml:"politeid"`
	IDRecording string `mapstructure:"idrecording" yaml:"idrecording"`
	Morse       string `mapstructure:"morse" yaml:"morse"`

	TailMessageList []string `mapstructure:"tailmessagelist" yaml:"tailmessagelist"`

	Macro      string      `mapstructure:"macro" yaml:"macro"`
	ToneMacros []ToneMacro `mapstructure:"tonemacro" yaml:"tonemacro"`
	StartupMacro string    `mapstructure:"startup_macro" yaml:"startup_macro"`

	FuncChar string `mapstructure:"funcchar" yaml:"funcchar"`
	EndChar  string `mapstructure:"endchar" yaml:"endchar"`

	LinkToLink bool `mapstructure:"linktolink" yaml:"linktolink"`
	Dias       bool `mapstructure:"dias" yaml:"dias"`

	Nodes         []string `mapstructure:"nodes" yaml:"nodes"`
	ExtNodes      []string `mapstructure:"extnodes" yaml:"extnodes"`
	ExtNodeFile   string   `mapstructure:"extnodefile" yaml:"extnodefile"`
	LocalLinkNodes []string `mapstructure:"locallinknodes" yaml:"locallinknodes"`

	Parrot     string `mapstructure:"parrot" yaml:"parrot"` // "off"|"once"|"always"
	ParrotTime int    `mapstructure:"parrottime" yaml:"parrottime"`

	ArchiveDir    string `mapstructure:"archivedir" yaml:"archivedir"`
	ArchiveAudio  bool   `mapstructure:"archiveaudio" yaml:"archiveaudio"`

	ERXGain float64 `mapstructure:"erxgain" yaml:"erxgain"`
	ETXGain float64 `mapstructure:"etxgain" yaml:"etxgain"`
	EAnnMode int    `mapstructure:"eannmode" yaml:"eannmode"`
	TRXGain float64 `mapstructure:"trxgain" yaml:"trxgain"`
	TTXGain float64 `mapstructure:"ttxgain" yaml:"ttxgain"`
	TAnnMode int    `mapstructure:"tannmode" yaml:"tannmode"`
	LinkMonGain float64 `mapstructure:"linkmongain" yaml:"linkmongain"`

	ConnPgm  []string `mapstructure:"connpgm" yaml:"connpgm"`
	DiscPgm  []string `mapstructure:"discpgm" yaml:"discpgm"`

	NoLocalLinkCT bool `mapstructure:"nolocallinkct" yaml:"nolocallinkct"`
	NoUnkeyCT     bool `mapstructure:"nounkeyct" yaml:"nounkeyct"`
	HoldoffTelem  bool `mapstructure:"holdofftelem" yaml:"holdofftelem"`

	RxBurstFreq      float64 `mapstructure:"rxburstfreq" yaml:"rxburstfreq"`
	RxBurstTimeMS    int     `mapstructure:"rxbursttime" yaml:"rxbursttime"`
	RxBurstThreshold float64 `mapstructure:"rxburstthreshold" yaml:"rxburstthreshold"`

	LitzTimeMS int    `mapstructure:"litztime" yaml:"litztime"`
	LitzChar   string `mapstructure:"litzchar" yaml:"litzchar"`
	LitzCmd    string `mapstructure:"litzcmd" yaml:"litzcmd"`

	InXlat  string `mapstructure:"inxlat" yaml:"inxlat"`
	OutXlat string `mapstructure:"outxlat" yaml:"outxlat"`

	SleepTimeSec int `mapstructure:"sleeptime" yaml:"sleeptime"`

	VoterType   int     `mapstructure:"votertype" yaml:"votertype"`
	VoterMargin float64 `mapstructure:"votermargin" yaml:"votermargin"`

	TelemNomDB   float64 `mapstructure:"telemnomdb" yaml:"telemnomdb"`
	TelemDuckDB  float64 `mapstructure:"telemduckdb" yaml:"telemduckdb"`

	CTGroup string `mapstructure:"ctgroup" yaml:"ctgroup"`

	Functions      string `mapstructure:"functions" yaml:"functions"`
	LinkFunctions  string `mapstructure:"link_functions" yaml:"link_functions"`
	PhoneFunctions string `mapstructure:"phone_functions" yaml:"phone_functions"`
	DPhoneFunctions string `mapstructure:"dphone_functions" yaml:"dphone_functions"`
	AltFunctions   string `mapstructure:"alt_functions" yaml:"alt_functions"`

	Scheduler []SchedEntry `mapstructure:"scheduler" yaml:"scheduler"`

	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// SchedEntry mirrors the minute-granular cron table of rpt_config.c's
// sched_sections: a macro fires when all non-wildcard fields match.
type SchedEntry struct {
	Minute     string `mapstructure:"minute" yaml:"minute"`
	Hour       string `mapstructure:"hour" yaml:"hour"`
	DayOfMonth string `mapstructure:"dom" yaml:"dom"`
	Month      string `mapstructure:"month" yaml:"month"`
	DayOfWeek  string `mapstructure:"dow" yaml:"dow"`
	Macro      string `mapstructure:"macro" yaml:"macro"`
}

// EcholinkConfig holds the per-instance keys enumerated in spec §6.
type EcholinkConfig struct {
	IPAddr    string `mapstructure:"ipaddr" yaml:"ipaddr"`
	Port      int    `mapstructure:"port" yaml:"port"`
	MaxStns   int    `mapstructure:"maxstns" yaml:"maxstns"`
	RTCPTimeout int  `mapstructure:"rtcptimeout" yaml:"rtcptimeout"`
	Node      string `mapstructure:"node" yaml:"node"`
	ASTNode   string `mapstructure:"astnode" yaml:"astnode"`
	Context   string `mapstructure:"context" yaml:"context"`
	Call      string `mapstructure:"call" yaml:"call"`
	Name      string `mapstructure:"name" yaml:"name"`
	Message   string `mapstructure:"message" yaml:"message"`
	RecFile   string `mapstructure:"recfile" yaml:"recfile"`
	Password  string `mapstructure:"pwd" yaml:"pwd"`
	QTH       string `mapstructure:"qth" yaml:"qth"`
	Email     string `mapstructure:"email" yaml:"email"`
	Servers   []string `mapstructure:"servers" yaml:"servers"`
	Deny      []string `mapstructure:"deny" yaml:"deny"`
	Permit    []string `mapstructure:"permit" yaml:"permit"`
	Lat       float64 `mapstructure:"lat" yaml:"lat"`
	Lon       float64 `mapstructure:"lon" yaml:"lon"`
	Freq      string  `mapstructure:"freq" yaml:"freq"`
	Tone      string  `mapstructure:"tone" yaml:"tone"`
	Power     int     `mapstructure:"power" yaml:"power"`
	Height    int     `mapstructure:"height" yaml:"height"`
	Gain      float64 `mapstructure:"gain" yaml:"gain"`
	Dir       string  `mapstructure:"dir" yaml:"dir"`
}

// Config is the whole-process configuration.
type Config struct {
	Port      string
	DBPath    string
	AstDBPath string
	AstDBURL  string
	AstDBUpdateHours int

	JWTSecret string
	Env       string
	TokenTTL  time.Duration
	AuthRateLimitRPM        int
	PublicStatsRateLimitRPM int
	AllowAnonDashboard      bool
	Title    string
	Subtitle string

	TickMS int // node controller loop cadence, nominally 20ms (spec §4.1)

	Nodes     map[string]NodeConfig
	Echolinks map[string]EcholinkConfig

	// FunctionTables holds the named function-table stanzas a NodeConfig's
	// functions/link_functions/phone_functions/dphone_functions/
	// alt_functions keys reference (viper key "function_tables"), each
	// mapping a digit-prefix selector to an "action,arg" string in the
	// classic app_rpt ini convention. internal/dtmf.LoadTable consumes
	// these to build a node's per-source tables.
	FunctionTables map[string]map[string]string
}

// Load reads configuration from an optional file path, then standard search
// locations, then environment variables, mirroring the teacher's precedence.
func Load(configPath ...string) Config {
	viper.SetDefault("port", "8080")
	viper.SetDefault("db_path", "data/nexus-core.db")
	viper.SetDefault("astdb_path", "data/astdb.txt")
	viper.SetDefault("astdb_url", "http://allmondb.allstarlink.org/")
	viper.SetDefault("astdb_update_hours", 24)
	viper.SetDefault("jwt_secret", "dev-secret-change-me")
	viper.SetDefault("app_env", "development")
	viper.SetDefault("token_ttl_seconds", 86400)
	viper.SetDefault("auth_rpm", 60)
	viper.SetDefault("public_stats_rpm", 120)
	viper.SetDefault("allow_anon_dashboard", true)
	viper.SetDefault("title", "Nexus Core")
	viper.SetDefault("subtitle", "")
	viper.SetDefault("tick_ms", 20)

	if len(configPath) > 0 && configPath[0] != "" {
		viper.SetConfigFile(configPath[0])
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("data")
		viper.AddConfigPath("$HOME/.nexus-core")
		viper.AddConfigPath("/etc/nexus-core")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("no config file found, using defaults and environment variables")
		} else {
			log.Printf("error reading config file: %v", err)
		}
	} else {
		log.Printf("using config file: %s", viper.ConfigFileUsed())
	}

	viper.SetEnvPrefix("")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := Config{
		Port:                    viper.GetString("port"),
		DBPath:                  viper.GetString("db_path"),
		AstDBPath:               viper.GetString("astdb_path"),
		AstDBURL:                viper.GetString("astdb_url"),
		AstDBUpdateHours:        viper.GetInt("astdb_update_hours"),
		JWTSecret:               viper.GetString("jwt_secret"),
		Env:                     viper.GetString("app_env"),
		TokenTTL:                time.Duration(viper.GetInt("token_ttl_seconds")) * time.Second,
		AuthRateLimitRPM:        viper.GetInt("auth_rpm"),
		PublicStatsRateLimitRPM: viper.GetInt("public_stats_rpm"),
		AllowAnonDashboard:      viper.GetBool("allow_anon_dashboard"),
		Title:                   viper.GetString("title"),
		Subtitle:                viper.GetString("subtitle"),
		TickMS:                  viper.GetInt("tick_ms"),
		Nodes:                   map[string]NodeConfig{},
		Echolinks:               map[string]EcholinkConfig{},
		FunctionTables:          map[string]map[string]string{},
	}

	var nodes map[string]NodeConfig
	if err := viper.UnmarshalKey("nodes", &nodes); err != nil {
		log.Printf("warning: failed to parse nodes config: %v", err)
	}
	for id, n := range nodes {
		applyNodeDefaults(&n)
		cfg.Nodes[id] = n
	}

	var echolinks map[string]EcholinkConfig
	if err := viper.UnmarshalKey("echolink", &echolinks); err != nil {
		log.Printf("warning: failed to parse echolink config: %v", err)
	}
	for id, e := range echolinks {
		applyEcholinkDefaults(&e)
		cfg.Echolinks[id] = e
	}

	var functionTables map[string]map[string]string
	if err := viper.UnmarshalKey("function_tables", &functionTables); err != nil {
		log.Printf("warning: failed to parse function_tables config: %v", err)
	}
	for name, entries := range functionTables {
		cfg.FunctionTables[name] = entries
	}

	if err := os.MkdirAll(dirOf(cfg.DBPath), 0o755); err != nil {
		log.Printf("warning: unable to create data dir: %v", err)
	}

	if len(cfg.Nodes) == 0 {
		log.Printf("WARNING: no nodes configured; add a 'nodes' map to config.yaml")
	}

	return cfg
}

func applyNodeDefaults(n *NodeConfig) {
	if n.HangTimeMS == 0 {
		n.HangTimeMS = 1000
	}
	if n.TotimeMS == 0 {
		n.TotimeMS = 180000
	}
	if n.Duplex == 0 {
		n.Duplex = 2
	}
	if n.FuncChar == "" {
		n.FuncChar = "*"
	}
	if n.EndChar == "" {
		n.EndChar = "#"
	}
	if n.LitzTimeMS == 0 {
		n.LitzTimeMS = 1000
	}
	if n.TelemDuckDB == 0 {
		n.TelemDuckDB = -12
	}
	if n.MaxRetries == 0 {
		n.MaxRetries = 5
	}
}

func applyEcholinkDefaults(e *EcholinkConfig) {
	if e.Port == 0 {
		e.Port = 5198
	}
	if e.MaxStns == 0 {
		e.MaxStns = 50
	}
	if e.RTCPTimeout == 0 {
		e.RTCPTimeout = 15
	}
	if len(e.Servers) == 0 {
		e.Servers = []string{"servers.echolink.org"}
	}
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// String renders a NodeConfig summary for logging (rpt dump / rpt show variables).
func (n NodeConfig) String() string {
	return fmt.Sprintf("duplex=%d totime=%dms idtime=%dms hangtime=%dms", n.Duplex, n.TotimeMS, n.IDTimeMS, n.HangTimeMS)
}
