package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"skillsnap_backend/internal/config"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(file, []byte("grading:\n  pass_threshold: 70\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w := New(file)
	w.debounce = 20 * time.Millisecond
	loads := make(chan string, 4)
	w.load = func(d string) (*config.Config, error) {
		select {
		case loads <- d:
		default:
		}
		return &config.Config{Grading: config.GradingConfig{PassThreshold: 80}}, nil
	}

	got := make(chan *config.Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(cfg *config.Config) {
			select {
			case got <- cfg:
			default:
			}
		})
	}()

	// 等待 watcher 就绪后再写入
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-got:
			if cfg.Grading.PassThreshold != 80 {
				t.Fatalf("threshold = %d", cfg.Grading.PassThreshold)
			}
			absDir, _ := filepath.Abs(dir)
			if d := <-loads; d != absDir {
				t.Fatalf("loaded from %q, want %q", d, absDir)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Run returned %v", err)
			}
			return
		case <-tick.C:
			os.WriteFile(file, []byte("grading:\n  pass_threshold: 80\n"), 0644)
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, config.FileName)
	os.WriteFile(file, []byte("{}"), 0644)

	w := New(file)
	w.debounce = 10 * time.Millisecond
	w.load = func(string) (*config.Config, error) { return &config.Config{}, nil }

	reloaded := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, func(*config.Config) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	for i := 0; i < 5; i++ {
		os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0644)
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-reloaded:
		t.Fatal("unexpected reload for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing", config.FileName))
	if err := w.Run(context.Background(), func(*config.Config) {}); err == nil {
		t.Fatal("expected error watching a missing directory")
	}
}
