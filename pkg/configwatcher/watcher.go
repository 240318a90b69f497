package configwatcher

import (
	"context"
	"path/filepath"
	"time"

	"skillsnap_backend/internal/config"
	"skillsnap_backend/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type ReloadFunc func(cfg *config.Config)

// Watcher 在配置文件写入稳定后重新加载
type Watcher struct {
	path     string
	debounce time.Duration
	load     func(dir string) (*config.Config, error)
}

func New(configFile string) *Watcher {
	return &Watcher{
		path:     configFile,
		debounce: time.Second,
		load:     config.LoadConfig,
	}
}

// Run 阻塞直到 ctx 结束。监听父目录，编辑器以重命名方式替换文件时也能收到事件
func (w *Watcher) Run(ctx context.Context, reload ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(absPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				// 防抖处理
				timer.Reset(w.debounce)
			}
		case <-timer.C:
			// 重新加载配置
			newCfg, err := w.load(dir)
			if err != nil {
				logger.Log.Error("Failed to reload config", zap.Error(err))
				continue
			}
			logger.Log.Info("Config reloaded", zap.String("path", absPath))
			reload(newCfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}
