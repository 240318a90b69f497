package service

import (
	"sync/atomic"

	"skillsnap_backend/internal/config"
)

// GradingPolicy 可随配置热更新的评分参数
type GradingPolicy struct {
	PassThreshold     int
	DefaultLanguageID int
	CompareOutput     bool
}

func PolicyFromConfig(cfg config.GradingConfig) GradingPolicy {
	return GradingPolicy{
		PassThreshold:     cfg.PassThreshold,
		DefaultLanguageID: cfg.DefaultLanguageID,
		CompareOutput:     cfg.CompareOutput,
	}
}

// PolicyStore 整体原子替换；一次评分只读取一次
type PolicyStore struct {
	current atomic.Pointer[GradingPolicy]
}

func NewPolicyStore(p GradingPolicy) *PolicyStore {
	s := &PolicyStore{}
	s.Store(p)
	return s
}

func (s *PolicyStore) Load() GradingPolicy {
	return *s.current.Load()
}

func (s *PolicyStore) Store(p GradingPolicy) {
	s.current.Store(&p)
}
