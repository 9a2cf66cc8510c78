package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"as-market-maker/monitor/logschema"
)

// Logger 封装zap日志器，提供结构化日志功能
type Logger struct {
	*zap.Logger
	config Config
}

// Config 日志配置
type Config struct {
	Level      string   `yaml:"level"`      // debug, info, warn, error
	Outputs    []string `yaml:"outputs"`    // stdout, stderr, file
	OutputFile string   `yaml:"outputFile"` // 日志文件路径
	ErrorFile  string   `yaml:"errorFile"`  // 错误日志单独文件
	Format     string   `yaml:"format"`     // json 或 console
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Outputs: []string{"stdout"},
		Format:  "json",
	}
}

// New 创建新的Logger实例
func New(cfg Config) (*Logger, error) {
	// 解析日志级别
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	newEncoder := func() zapcore.Encoder {
		if cfg.Format == "console" {
			return zapcore.NewConsoleEncoder(encoderConfig)
		}
		return zapcore.NewJSONEncoder(encoderConfig)
	}

	cores := []zapcore.Core{}
	if contains(cfg.Outputs, "stdout") {
		cores = append(cores, zapcore.NewCore(newEncoder(), zapcore.AddSync(os.Stdout), level))
	}
	if contains(cfg.Outputs, "stderr") {
		cores = append(cores, zapcore.NewCore(newEncoder(), zapcore.AddSync(os.Stderr), level))
	}

	// 文件输出固定 JSON，方便采集
	if contains(cfg.Outputs, "file") && cfg.OutputFile != "" {
		fileWriter, err := openLogFile(cfg.OutputFile)
		if err != nil {
			return nil, fmt.Errorf("open log file failed: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(fileWriter),
			level,
		))
	}

	// 错误日志单独文件
	if cfg.ErrorFile != "" {
		errorWriter, err := openLogFile(cfg.ErrorFile)
		if err != nil {
			return nil, fmt.Errorf("open error log file failed: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(errorWriter),
			zapcore.ErrorLevel, // 只记录error及以上级别
		))
	}

	core := zapcore.NewTee(cores...)
	zapLogger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{
		Logger: zapLogger,
		config: cfg,
	}, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// Wrap 用已有的 zap.Logger 构造 Logger（测试里配合 observer 使用）。
func Wrap(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{Logger: z, config: DefaultConfig()}
}

// WithFields 添加字段返回新的logger
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return &Logger{
		Logger: l.Logger.With(zapFields...),
		config: l.config,
	}
}

// LogQuote 记录一次报价更新
func (l *Logger) LogQuote(symbol string, fields map[string]interface{}) {
	fields = withSymbol(fields, symbol)
	l.emit(zapcore.DebugLevel, logschema.EventQuoteUpdate, fields)
}

// LogFill 记录成交及成交后的仓位
func (l *Logger) LogFill(symbol, side string, qty, inventory float64) {
	l.emit(zapcore.InfoLevel, logschema.EventFill, map[string]interface{}{
		"symbol":    symbol,
		"side":      side,
		"qty":       qty,
		"inventory": inventory,
	})
}

// LogRisk 记录风控事件
func (l *Logger) LogRisk(symbol, state string, fields map[string]interface{}) {
	fields = withSymbol(fields, symbol)
	fields["state"] = state
	l.emit(zapcore.WarnLevel, logschema.EventRisk, fields)
}

// LogConfig 记录配置热加载
func (l *Logger) LogConfig(path string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["path"] = path
	l.emit(zapcore.InfoLevel, logschema.EventConfigReload, fields)
}

// LogBook 记录盘口快照
func (l *Logger) LogBook(symbol string, bid, ask float64) {
	if !l.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	l.emit(zapcore.DebugLevel, logschema.EventBookSnapshot, map[string]interface{}{
		"symbol": symbol,
		"bid":    bid,
		"ask":    ask,
	})
}

// LogError 记录错误并附带上下文
func (l *Logger) LogError(err error, context map[string]interface{}) {
	if context == nil {
		context = make(map[string]interface{})
	}
	context["error"] = err.Error()
	context["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	l.Error("error_event", toFields(context)...)
}

func (l *Logger) emit(level zapcore.Level, event string, fields map[string]interface{}) {
	if !l.Core().Enabled(level) {
		return
	}
	if err := logschema.Validate(event, fields); err != nil {
		l.Warn("log schema violation", zap.String("event", event), zap.Error(err))
	}
	fields["event"] = event
	fields["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	l.Log(level, event, toFields(fields)...)
}

// Close 关闭日志器
func (l *Logger) Close() error {
	return l.Sync()
}

func withSymbol(fields map[string]interface{}, symbol string) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["symbol"] = symbol
	return fields
}

func toFields(m map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(m))
	for k, v := range m {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
