package config

import (
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	EnvVarPrefix = "RIPGZIP"

	CommandDecompress = "decompress"
	CommandServe      = "serve"

	DefaultConfigFile         = "ripgzip.toml"
	DefaultLogLevel           = "info"
	DefaultNumWorkers         = 2
	DefaultBufferSize         = 64 * 1024
	DefaultCheckpointStore    = CheckpointStoreFile
	DefaultCheckpointFile     = "ripgzip.checkpoint.json"
	DefaultCheckpointInterval = duration(5 * time.Second)

	DefaultRedisAddress = "localhost:6379"
	DefaultRedisKey     = "ripgzip:checkpoint"

	DefaultListenAddress = ":8080"
	DefaultMaxBodySize   = 64 << 20
	DefaultMaxOutputSize = 256 << 20
	DefaultReadTimeout   = duration(30 * time.Second)

	MinNumWorkers         = 1
	MaxNumWorkers         = 64
	MinBufferSize         = 512
	MaxBufferSize         = 16 << 20
	MinCheckpointInterval = duration(1 * time.Millisecond)
	MaxCheckpointInterval = duration(1 * time.Hour)
	MaxRedisDB            = 15

	CheckpointStoreFile  = "file"
	CheckpointStoreRedis = "redis"
	CheckpointStoreNone  = "none"
)

var (
	// VERSION gets set during build
	VERSION = "0.0.0"

	validCheckpointStores = map[string]struct{}{
		CheckpointStoreFile:  {},
		CheckpointStoreRedis: {},
		CheckpointStoreNone:  {},
	}
)

type Config struct {
	CLI  *CLI
	TOML *TOML
}

type TOML struct {
	Config *TOMLConfig `toml:"config"`
	Redis  *TOMLRedis  `toml:"redis"`
	Server *TOMLServer `toml:"server"`
}

type TOMLConfig struct {
	LogLevel           string   `toml:"log_level"`
	NumWorkers         int      `toml:"num_workers"`
	BufferSize         int      `toml:"buffer_size"`
	CheckpointStore    string   `toml:"checkpoint_store"`
	CheckpointFile     string   `toml:"checkpoint_file"`
	CheckpointInterval duration `toml:"checkpoint_interval"`
}

type TOMLRedis struct {
	Address  string `toml:"address"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Key      string `toml:"key"`
}

type TOMLServer struct {
	ListenAddress string   `toml:"listen_address"`
	MaxBodySize   int64    `toml:"max_body_size"`
	MaxOutputSize int64    `toml:"max_output_size"`
	ReadTimeout   duration `toml:"read_timeout"`
}

type CLI struct {
	ConfigFile   string `kong:"name='config',help='Path to the TOML config file',default='ripgzip.toml',short='c'"`
	DisableColor bool   `kong:"help='Disable color output',short='C'"`

	Debug   bool             `kong:"help='Enable debug output',short='d'"`
	Quiet   bool             `kong:"help='Disable showing pre/post output',short='q'"`
	Version kong.VersionFlag `help:"Show version and exit" short:"v" env:"-"`

	Decompress DecompressCmd `kong:"cmd,default='withargs',help='Decompress gzip files (stdin to stdout when no files are given)'"`
	Serve      ServeCmd      `kong:"cmd,help='Run the HTTP decompression service'"`

	// Internal bits
	Ctx *kong.Context `kong:"-"`
}

type DecompressCmd struct {
	Files []string `kong:"arg,optional,help='Files to decompress'"`

	Stdout        bool   `kong:"help='Write decompressed data to stdout',short='O'"`
	Test          bool   `kong:"help='Verify the input without writing any output',short='t'"`
	Force         bool   `kong:"help='Overwrite existing output files',short='f'"`
	Delete        bool   `kong:"help='Remove source files after successful decompression',short='D'"`
	Suffix        string `kong:"help='Suffix of compressed files',default='.gz',short='S'"`
	DisableResume bool   `kong:"help='Disable resuming from checkpoint',short='R'"`
	DryRun        bool   `kong:"help='Enable dry-run mode',short='n'"`
}

type ServeCmd struct {
	Listen string `kong:"help='Address to listen on (overrides server.listen_address)',short='l'"`
}

// Command returns the name of the selected sub-command.
func (c *CLI) Command() string {
	if c.Ctx == nil {
		return CommandDecompress
	}

	fields := strings.Fields(c.Ctx.Command())
	if len(fields) == 0 {
		return CommandDecompress
	}

	return fields[0]
}

// WritesFiles reports whether decompress creates output files next to its
// inputs, which is the only mode where checkpoints apply.
func (d *DecompressCmd) WritesFiles() bool {
	return !d.Stdout && !d.Test && !d.DryRun
}

func NewConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds the config from CLI args, the environment and the TOML file the
// args point to.
func Load(args []string) (*Config, error) {
	// Attempt to load .env
	_ = godotenv.Load(".env")

	cli, err := readCLIArgs(args)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing CLI args")
	}

	tomlConfig, err := readTOML(cli.ConfigFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if cli.Serve.Listen != "" {
		tomlConfig.Server.ListenAddress = cli.Serve.Listen
	}

	cfg := &Config{
		CLI:  cli,
		TOML: tomlConfig,
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a config with every default applied, as if an empty TOML
// file and no flags were given.
func Default() *Config {
	t := &TOML{}

	// Only fails for a nil TOML.
	_ = setTOMLDefaults(t)

	return &Config{
		CLI: &CLI{
			ConfigFile: DefaultConfigFile,
			Decompress: DecompressCmd{Suffix: ".gz"},
		},
		TOML: t,
	}
}

func setTOMLDefaults(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	if t.Config == nil {
		t.Config = &TOMLConfig{}
	}

	if t.Redis == nil {
		t.Redis = &TOMLRedis{}
	}

	if t.Server == nil {
		t.Server = &TOMLServer{}
	}

	// Set defaults for [config]
	if t.Config.LogLevel == "" {
		t.Config.LogLevel = DefaultLogLevel
	}

	if t.Config.NumWorkers == 0 {
		t.Config.NumWorkers = DefaultNumWorkers
	}

	if t.Config.BufferSize == 0 {
		t.Config.BufferSize = DefaultBufferSize
	}

	if t.Config.CheckpointStore == "" {
		t.Config.CheckpointStore = DefaultCheckpointStore
	}

	if t.Config.CheckpointFile == "" {
		t.Config.CheckpointFile = DefaultCheckpointFile
	}

	if t.Config.CheckpointInterval == 0 {
		t.Config.CheckpointInterval = DefaultCheckpointInterval
	}

	// Set defaults for [redis]
	if t.Redis.Address == "" {
		t.Redis.Address = DefaultRedisAddress
	}

	if t.Redis.Key == "" {
		t.Redis.Key = DefaultRedisKey
	}

	// Set defaults for [server]
	if t.Server.ListenAddress == "" {
		t.Server.ListenAddress = DefaultListenAddress
	}

	if t.Server.MaxBodySize == 0 {
		t.Server.MaxBodySize = DefaultMaxBodySize
	}

	if t.Server.MaxOutputSize == 0 {
		t.Server.MaxOutputSize = DefaultMaxOutputSize
	}

	if t.Server.ReadTimeout == 0 {
		t.Server.ReadTimeout = DefaultReadTimeout
	}

	return nil
}

func Validate(c *Config) error {
	if c == nil {
		return errors.New("config cannot be nil")
	}

	if err := validateCLIArgs(c.CLI); err != nil {
		return errors.Wrap(err, "error validating CLI args")
	}

	if err := validateTOML(c.TOML); err != nil {
		return errors.Wrap(err, "error validating toml config")
	}

	return nil
}

func validateTOML(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	// Validate [config]
	if err := validateTOMLConfig(t.Config); err != nil {
		return errors.Wrap(err, "config error(s)")
	}

	// Validate [redis]
	if err := validateTOMLRedis(t.Redis); err != nil {
		return errors.Wrap(err, "redis error(s)")
	}

	// Validate [server]
	if err := validateTOMLServer(t.Server); err != nil {
		return errors.Wrap(err, "server error(s)")
	}

	return nil
}

func validateTOMLConfig(c *TOMLConfig) error {
	if c == nil {
		return errors.New("config cannot be empty")
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Errorf("config.log_level %q is invalid", c.LogLevel)
	}

	if c.NumWorkers < MinNumWorkers || c.NumWorkers > MaxNumWorkers {
		return errors.Errorf("config.num_workers must be between %d and %d", MinNumWorkers, MaxNumWorkers)
	}

	if c.BufferSize < MinBufferSize || c.BufferSize > MaxBufferSize {
		return errors.Errorf("config.buffer_size must be between %d and %d", MinBufferSize, MaxBufferSize)
	}

	if _, ok := validCheckpointStores[c.CheckpointStore]; !ok {
		return errors.Errorf("config.checkpoint_store %q is invalid", c.CheckpointStore)
	}

	if c.CheckpointStore == CheckpointStoreFile && c.CheckpointFile == "" {
		return errors.New("config.checkpoint_file cannot be empty")
	}

	if c.CheckpointInterval < MinCheckpointInterval || c.CheckpointInterval > MaxCheckpointInterval {
		return errors.Errorf("config.checkpoint_interval must be between %s and %s", MinCheckpointInterval, MaxCheckpointInterval)
	}

	return nil
}

func validateTOMLRedis(r *TOMLRedis) error {
	if r == nil {
		return errors.New("redis cannot be empty")
	}

	if r.Address == "" {
		return errors.New("redis.address cannot be empty")
	}

	if r.Key == "" {
		return errors.New("redis.key cannot be empty")
	}

	if r.DB < 0 || r.DB > MaxRedisDB {
		return errors.Errorf("redis.db must be between 0 and %d", MaxRedisDB)
	}

	return nil
}

func validateTOMLServer(s *TOMLServer) error {
	if s == nil {
		return errors.New("server cannot be empty")
	}

	if s.ListenAddress == "" {
		return errors.New("server.listen_address cannot be empty")
	}

	if s.MaxBodySize <= 0 {
		return errors.New("server.max_body_size must be positive")
	}

	if s.MaxOutputSize <= 0 {
		return errors.New("server.max_output_size must be positive")
	}

	if s.ReadTimeout <= 0 {
		return errors.New("server.read_timeout must be positive")
	}

	return nil
}

func newParser(cli *CLI) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("ripgzip"),
		kong.Description("Streaming gzip decompressor with a built-in DEFLATE decoder"),
		kong.UsageOnError(),
		kong.DefaultEnvars(EnvVarPrefix),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{
			"version": VERSION,
		})
}

func readCLIArgs(args []string) (*CLI, error) {
	cli := &CLI{}

	parser, err := newParser(cli)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create CLI parser")
	}

	cli.Ctx, err = parser.Parse(args)
	if err != nil {
		return nil, err
	}

	if err := validateCLIArgs(cli); err != nil {
		return nil, errors.Wrap(err, "error validating args")
	}

	return cli, nil
}

// readTOML loads the config file. A missing file means all defaults.
func readTOML(file string) (*TOML, error) {
	tomlConfig := &TOML{}

	data, err := os.ReadFile(file)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "error reading file")
	}

	if err == nil {
		if err := toml.Unmarshal(data, tomlConfig); err != nil {
			return nil, errors.Wrap(err, "error parsing TOML config")
		}
	}

	// Set defaults
	if err := setTOMLDefaults(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error setting TOML defaults")
	}

	// Validate loaded config
	if err := validateTOML(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error validating TOML config")
	}

	return tomlConfig, nil
}

func validateCLIArgs(cli *CLI) error {
	if cli == nil {
		return errors.New("config cannot be nil")
	}

	d := cli.Decompress

	if d.Suffix == "" {
		return errors.New("--suffix cannot be empty")
	}

	if d.Stdout && d.Test {
		return errors.New("--stdout and --test are mutually exclusive")
	}

	if d.Delete && !d.WritesFiles() {
		return errors.New("--delete requires writing output files")
	}

	return nil
}

// duration lets TOML values like "5s" decode into a time.Duration.
type duration time.Duration

func (d duration) String() string {
	return time.Duration(d).String()
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(dur)
	return nil
}
