package main

import (
	"context"
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"syscall"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/gipps-calibration/ga"
	"github.com/tsinghua-fib-lab/gipps-calibration/server"
	"github.com/tsinghua-fib-lab/gipps-calibration/store"
	"github.com/tsinghua-fib-lab/gipps-calibration/task"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/input"
	"gopkg.in/yaml.v2"
)

var (
	// 运行模式：calibrate（批量标定）、extract（提取跟车片段）、serve（RPC服务）
	mode = flag.String("mode", "calibrate", "run mode (calibrate, extract, serve)")
	// 任务名，用于输出文件名
	job = flag.String("job", "job0", "the name of the calibration task")
	// serve模式监听地址
	listenAddr = flag.String("listen", ":51102", "RPC listening address (serve mode)")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 数据加载input的缓存地址，设置为空则禁用缓存功能
	// 缓存：将MongoDB中的片段根据数据库db和col序列化到本地文件系统，并总是先试图从文件系统中加载
	cacheDir = flag.String("cache", "data/", "input cache dir path (empty means disable cache)")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "gipps")
)

// loadConfig 读取配置文件或Base64编码的配置数据
func loadConfig(required bool) (c config.Config, ok bool) {
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else if required {
		log.Panic("config file or config data must be specified")
	} else {
		return c, false
	}
	if err := yaml.UnmarshalStrict(file, &c); err != nil {
		log.Panicf("config file load err: %v", err)
	}
	log.Infof("%+v", c)
	return c, true
}

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "serve":
		defaults := ga.DefaultConfig()
		if c, ok := loadConfig(false); ok {
			rc, err := config.NewRuntimeConfig(c)
			if err != nil {
				log.Panicf("invalid config: %v", err)
			}
			defaults = ga.Config(rc.Tests[0].GA)
		}
		if err := server.RunServer(*listenAddr, defaults); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	case "extract":
		c, _ := loadConfig(true)
		rc, err := config.NewRuntimeConfig(c)
		if err != nil {
			log.Panicf("invalid config: %v", err)
		}
		if _, err := task.Extract(ctx, rc.All); err != nil {
			log.Fatalf("extract failed: %v", err)
		}
	case "calibrate":
		c, _ := loadConfig(true)
		rc, err := config.NewRuntimeConfig(c)
		if err != nil {
			log.Panicf("invalid config: %v", err)
		}
		source, err := input.NewSource(rc.All.Input, *cacheDir)
		if err != nil {
			log.Panicf("invalid input: %v", err)
		}
		runStore, err := store.Open(rc.All.Output)
		if err != nil {
			log.Panicf("failed to open run store: %v", err)
		}
		t := task.NewContext(*job, rc, source, runStore)
		defer t.Close()
		if err := t.Init(ctx); err != nil {
			log.Panicf("failed to init: %v", err)
		}
		summaries, err := t.Run(ctx)
		if err != nil {
			log.Errorf("calibration finished with errors: %v", err)
		}
		if best, ok := task.BestRun(summaries); ok {
			log.Infof("Best run: test %d run %d, population score %.4f, best individual %v",
				best.Test, best.Run, best.BestPopulationScore, best.BestIndividual)
		}
	default:
		log.Panicf("mode must be one of calibrate, extract, serve; got %q", *mode)
	}
}
