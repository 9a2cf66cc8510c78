package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadFunc receives every reload attempt: a validated config, or the error
// that rejected the new file. Rejected files leave the running config untouched.
type ReloadFunc func(cfg AppConfig, err error)

// Watcher 基于 fsnotify 监听配置文件，变更后重新加载。
// 监听的是所在目录，编辑器先写临时文件再 rename 的方式也能捕获。
type Watcher struct {
	path       string
	cooldown   time.Duration
	log        *zap.Logger
	fs         *fsnotify.Watcher
	lastReload time.Time
}

// NewWatcher 创建监听器；cooldown 内的重复事件会被忽略。
func NewWatcher(path string, cooldown time.Duration, log *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{path: abs, cooldown: cooldown, log: log, fs: fw}, nil
}

// Run 阻塞直到 ctx 结束或 watcher 被关闭。
func (w *Watcher) Run(ctx context.Context, onReload ReloadFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			// 只处理写入和创建事件
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload(onReload)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			// 记录错误但继续监听
			w.log.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(onReload ReloadFunc) {
	now := time.Now()
	if w.cooldown > 0 && now.Sub(w.lastReload) < w.cooldown {
		return
	}
	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		w.log.Warn("config reload rejected", zap.String("path", w.path), zap.Error(err))
	} else {
		w.lastReload = now
	}
	if onReload != nil {
		onReload(cfg, err)
	}
}

// Close 停止监听。
func (w *Watcher) Close() error {
	return w.fs.Close()
}
