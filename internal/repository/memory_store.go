package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rkobroo/Ownrkoapi/internal/models"
)

type memoryEntry struct {
	job *models.DownloadJob
	seq uint64
}

// MemoryStore 进程内任务存储
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*memoryEntry
	seq  uint64
	now  func() time.Time
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*memoryEntry),
		now:  time.Now,
	}
}

// Create 创建 pending 状态的任务
func (s *MemoryStore) Create(_ context.Context, req *models.CreateJobRequest) (*models.DownloadJob, error) {
	r := *req
	r.Normalize()

	now := s.now().UTC()
	job := &models.DownloadJob{
		ID:        uuid.NewString(),
		URL:       r.URL,
		Format:    r.Format,
		Quality:   r.Quality,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.seq++
	s.jobs[job.ID] = &memoryEntry{job: job, seq: s.seq}
	s.mu.Unlock()

	return job.Clone(), nil
}

// Get 获取任务快照
func (s *MemoryStore) Get(_ context.Context, id string) (*models.DownloadJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return entry.job.Clone(), nil
}

// List 创建时间倒序, 同一时刻按插入顺序倒序
func (s *MemoryStore) List(_ context.Context) ([]*models.DownloadJob, error) {
	type snapshot struct {
		job *models.DownloadJob
		seq uint64
	}

	s.mu.RLock()
	snaps := make([]snapshot, 0, len(s.jobs))
	for _, e := range s.jobs {
		snaps = append(snaps, snapshot{job: e.job.Clone(), seq: e.seq})
	}
	s.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		a, b := snaps[i], snaps[j]
		if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
			return a.job.CreatedAt.After(b.job.CreatedAt)
		}
		return a.seq > b.seq
	})

	jobs := make([]*models.DownloadJob, len(snaps))
	for i, sn := range snaps {
		jobs[i] = sn.job
	}
	return jobs, nil
}

// Update 原子地替换记录
func (s *MemoryStore) Update(_ context.Context, id string, update *models.JobUpdate) (*models.DownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}

	next := entry.job.Clone()
	update.Apply(next)
	next.UpdatedAt = s.now().UTC()
	entry.job = next

	return next.Clone(), nil
}

// Delete 删除任务
func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	delete(s.jobs, id)
	return true, nil
}

// Ping 内存存储始终可用
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close 无资源需要释放
func (s *MemoryStore) Close() error { return nil }
