package cmd

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hb-chen/mkbi/internal/config"
	"github.com/hb-chen/mkbi/pkg/logger"
)

var (
	cfgFile, logLevel, logPath string
	stderr, debug              bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mkbi",
	Short: "Turn natural-language requests into analysed, sandboxed scripts",
	Long: `mkbi drives a request through two model stages, an Interpreter that
drafts a solution and a Fabricator that turns the draft into a script, then
lints the script and runs it in a timeout-bounded process group.

Behaviour is selected per skill: executor, file extension, static analysis
tool and preset conversation histories, loaded from a directory of records.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env never overrides variables already set in the environment.
		if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		readErr := initConfig(cmd.Flags())

		path, level, dbg := logSettings()
		if err := initLogger(path, level, dbg, stderr); err != nil {
			return err
		}

		if readErr != nil {
			logger.Warnf("Config file not found: %v", readErr)
		} else {
			logger.Infof("Using config file: %s", config.Viper().ConfigFileUsed())
		}

		logger.Debugf("Starting mkbi %s...", cmd.Name())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./mkbi.yaml or ./configs/mkbi.yaml, env MKBI_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&stderr, "stderr", "e", false, "log to stderr")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR, FATAL, PANIC")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-path", "./log", "log file path")
}

// flagBindings maps config keys to the flags that override them.
var flagBindings = map[string]string{
	"log.level":         "log-level",
	"log.path":          "log-path",
	"log.debug":         "debug",
	"server.http.host":  "host",
	"server.http.port":  "port",
	"server.grpc.addr":  "addr-grpc",
	"skills.dir":        "dir",
	"execution.timeout": "timeout",
}

// initConfig reads in config file and ENV variables if set. It runs before
// the logger exists, so the read error is returned for the caller to log.
func initConfig(flags *pflag.FlagSet) error {
	config.Init()

	if cfgFile == "" {
		cfgFile = os.Getenv("MKBI_CONFIG")
	}
	if cfgFile != "" {
		config.Viper().SetConfigFile(cfgFile)
	} else {
		config.Viper().AddConfigPath(".")
		config.Viper().AddConfigPath("./configs")
		config.Viper().SetConfigType("yaml")
		config.Viper().SetConfigName("mkbi")
	}

	for key, name := range flagBindings {
		if f := flags.Lookup(name); f != nil && f.Changed {
			_ = config.Viper().BindPFlag(key, f)
		}
	}

	return config.Viper().ReadInConfig()
}

// logSettings resolves the log options: an explicit flag, then the config
// file, then the flag default.
func logSettings() (path, level string, dbg bool) {
	path, level, dbg = logPath, logLevel, debug

	v := config.Viper()
	if v.IsSet("log.path") {
		path = v.GetString("log.path")
	}
	if v.IsSet("log.level") {
		level = v.GetString("log.level")
	}
	if v.IsSet("log.debug") {
		dbg = v.GetBool("log.debug")
	}
	return path, level, dbg
}

const logCallerSkip = 2

func initLogger(path, level string, debug, e bool) error {
	writer := getLogWriter(path)
	if e {
		stderrWriter, _, err := zap.Open("stderr")
		if err != nil {
			return err
		}
		writer = stderrWriter
	}

	logLevel := zapcore.InfoLevel
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	if debug {
		logLevel = zapcore.DebugLevel
	}

	encoder := getLogEncoder(debug, e)
	core := zapcore.NewCore(encoder, writer, logLevel)
	zapLogger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(logCallerSkip))

	logger.ReplaceLogger(zapLogger)

	return nil
}

func getLogEncoder(debug, e bool) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	if debug && e {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeCaller = zapcore.FullCallerEncoder
	}

	return zapcore.NewConsoleEncoder(encoderConfig)
}

func getLogWriter(path string) zapcore.WriteSyncer {
	path = strings.TrimRight(path, "/")
	lumberJackLogger := &lumberjack.Logger{
		Filename:   path + "/mkbi.log",
		MaxSize:    10,   // megabytes
		MaxBackups: 10,   // number of backups
		MaxAge:     30,   // days
		Compress:   true, // compress old files
	}
	return zapcore.AddSync(lumberJackLogger)
}
