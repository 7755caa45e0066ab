package pcie

import (
	"sync"
	"time"
)

// RescanScheduler 一次性的延迟重扫任务
//
// Schedule 装载一个单发定时器；到点后恰好调用一次 run。
// Cancel 是同步的 join 语义：返回之后 run 保证不会再被本任务调起，
// 如果 run 正在跑，Cancel 会阻塞到它跑完——卸载的时候绝不能
// 让 worker 还抱着拓扑锁没退出来。失败的 run 不会被重新调度。
type RescanScheduler struct {
	mu  sync.Mutex
	run func()
	log Sink

	timer       *time.Timer
	done        chan struct{} // fire 退出时关闭
	scheduled   bool
	canceled    bool
	fireWillRun bool // 第一次 Cancel 时定格：定时器是否已经触发
}

func NewRescanScheduler(run func(), sink Sink) *RescanScheduler {
	if sink == nil {
		sink = logutilSink{}
	}
	return &RescanScheduler{run: run, log: sink}
}

// Schedule 装载定时器；重复调用只有第一次生效（一次性任务）
func (s *RescanScheduler) Schedule(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduled {
		return
	}
	s.scheduled = true
	s.done = make(chan struct{})
	s.log.Infof("计划 %v 后重扫", delay)
	s.timer = time.AfterFunc(delay, s.fire)
}

// fire 在定时器的 goroutine 上执行
func (s *RescanScheduler) fire() {
	// 无论取消与否都要关 done，Cancel 在上面等着
	defer close(s.done)

	s.mu.Lock()
	canceled := s.canceled
	s.mu.Unlock()
	if canceled {
		return
	}

	s.run()
	s.log.Infof("重扫任务结束")
}

// Cancel 幂等；阻塞到在途的 run 完成
func (s *RescanScheduler) Cancel() {
	s.mu.Lock()
	if !s.scheduled {
		s.mu.Unlock()
		return
	}
	if !s.canceled {
		s.canceled = true
		// Stop 返回 false 说明 fire 已经（或正在）跑起来了
		s.fireWillRun = !s.timer.Stop()
		if !s.fireWillRun {
			s.log.Infof("重扫任务已取消")
		}
	}
	fireWillRun := s.fireWillRun
	done := s.done
	s.mu.Unlock()

	if fireWillRun {
		// join：等 fire 退出，而不是打断它
		<-done
	}
}

// Done 返回任务完成通道；fire 退出时关闭
// 从未 Schedule 过返回 nil（对 nil 通道 select 永远不就绪）
func (s *RescanScheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
