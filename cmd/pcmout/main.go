package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lisuiheng/pcmout/core"
	"github.com/lisuiheng/pcmout/logger"
	"github.com/spf13/viper"
)

func main() {
	// 定义命令行参数
	configPath := flag.String("c", "", "Path to config file (default searches ./config.yaml, ./config/config.yaml, /etc/pcmout/config.yaml)")
	backend := flag.String("backend", "", "Renderer backend override: sim, malgo, portaudio, oto")
	debug := flag.Bool("debug", false, "Enable debug logging to stdout")
	flag.Parse()

	// 加载配置
	cfg, err := loadConfig(viper.GetViper(), *configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Audio.Backend = *backend
	}
	if *debug {
		viper.Set("debug", true)
	}

	// 初始化日志
	if err := initLogger(cfg); err != nil {
		logger.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer logger.Logger().Info("Shutting down pcmout")

	player, err := core.NewPlayer(cfg, nil, logger.Logger())
	if err != nil {
		logger.Error("Failed to create player", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := player.Close(); err != nil {
			logger.Error("Failed to close player", "error", err)
		}
	}()

	// 设置信号处理
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		done <- player.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", "signal", sig)
		cancel()
		err = <-done
	case err = <-done:
	}

	if err != nil {
		logger.Error("Playback failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Playback completed", "chunks", player.GetStatus().Chunks)
}

// loadConfig 加载配置文件，找不到文件时使用默认值
func loadConfig(v *viper.Viper, configPath string) (core.Config, error) {
	v.SetConfigType("yaml")

	if configPath != "" {
		// 使用命令行指定的路径
		v.SetConfigFile(configPath)
	} else {
		// 默认多路径搜索
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pcmout")
	}

	setDefaults(v)
	v.SetEnvPrefix("PCMOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return core.Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg core.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return core.Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("audio.backend", "malgo")
	v.SetDefault("audio.sample_rate", 48000)
	v.SetDefault("audio.channels", 2)
	v.SetDefault("audio.frames", 1024)
	v.SetDefault("audio.buffers", 2)
	v.SetDefault("audio.formats", []string{"s16"})
	v.SetDefault("audio.output_rate", 48000)
	v.SetDefault("source.type", "tone")
	v.SetDefault("source.tone.frequency", 440.0)
	v.SetDefault("source.tone.amplitude", 0.3)
	v.SetDefault("source.tone.seconds", 3.0)
	v.SetDefault("source.stream.frame_duration", 20)
	v.SetDefault("source.stream.max_retries", 5)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.outputs", []string{"stdout"})
}

// initLogger 初始化日志系统
func initLogger(cfg core.Config) error {
	logCfg := logger.Config{
		Level:   cfg.Logging.Level,
		Outputs: cfg.Logging.Outputs,
	}

	// 调试模式覆盖配置
	if viper.GetBool("debug") {
		logCfg.Level = "debug"
		logCfg.Outputs = []string{"stdout"}
	}

	return logger.Init(logCfg)
}
