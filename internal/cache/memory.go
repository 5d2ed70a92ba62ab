package cache

import (
	"strings"
	"sync"
	"time"

	"loto-bot/internal/logger"
)

// MemoryItem 内存缓存项
type MemoryItem struct {
	Value     interface{}
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired 检查是否过期
func (item *MemoryItem) IsExpired(now time.Time) bool {
	return now.After(item.ExpiresAt)
}

// MemoryCache 带过期时间与容量上限的内存缓存
// 缓存的值按只读共享，调用方不得修改
type MemoryCache struct {
	mutex   sync.RWMutex
	items   map[string]*MemoryItem
	maxSize int
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache 创建新的内存缓存，按 cleanupInterval 定期清理过期项
func NewMemoryCache(maxSize int, cleanupInterval time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items:   make(map[string]*MemoryItem),
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go cache.startCleanup(cleanupInterval)
	}

	logger.Debugf("Memory cache initialized (max %d items)", maxSize)
	return cache
}

// Set 设置缓存值，容量已满时淘汰最旧的项
func (m *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	now := m.now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.items[key]; !exists && m.maxSize > 0 && len(m.items) >= m.maxSize {
		m.evictOldestLocked()
	}

	m.items[key] = &MemoryItem{
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	logger.Debugf("Memory cache set: %s", key)
}

// Get 获取缓存值，不存在或已过期时返回 false
func (m *MemoryCache) Get(key string) (interface{}, bool) {
	m.mutex.RLock()
	item, exists := m.items[key]
	m.mutex.RUnlock()

	if !exists {
		return nil, false
	}

	if item.IsExpired(m.now()) {
		m.Delete(key)
		return nil, false
	}

	logger.Debugf("Memory cache hit: %s", key)
	return item.Value, true
}

// Delete 删除缓存
func (m *MemoryCache) Delete(key string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.items, key)
}

// DeletePrefix 删除指定前缀的所有缓存，返回删除数量
func (m *MemoryCache) DeletePrefix(prefix string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	count := 0
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
			count++
		}
	}

	if count > 0 {
		logger.Debugf("Memory cache deleted by prefix: %s, count: %d", prefix, count)
	}
	return count
}

// Clear 清空所有缓存
func (m *MemoryCache) Clear() {
	m.mutex.Lock()
	m.items = make(map[string]*MemoryItem)
	m.mutex.Unlock()
	logger.Debug("Memory cache cleared")
}

// Size 获取缓存大小
func (m *MemoryCache) Size() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.items)
}

// Stats 获取缓存统计信息
func (m *MemoryCache) Stats() map[string]interface{} {
	now := m.now()

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var valid, expired int
	for _, item := range m.items {
		if item.IsExpired(now) {
			expired++
		} else {
			valid++
		}
	}

	return map[string]interface{}{
		"total_size":    len(m.items),
		"valid_items":   valid,
		"expired_items": expired,
		"max_size":      m.maxSize,
	}
}

// Close 停止清理协程
func (m *MemoryCache) Close() {
	m.once.Do(func() { close(m.stop) })
}

// startCleanup 启动定期清理过期缓存
func (m *MemoryCache) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired()
		case <-m.stop:
			return
		}
	}
}

// cleanupExpired 清理过期的缓存项
func (m *MemoryCache) cleanupExpired() int {
	now := m.now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	count := 0
	for key, item := range m.items {
		if item.IsExpired(now) {
			delete(m.items, key)
			count++
		}
	}

	if count > 0 {
		logger.Debugf("Memory cache cleanup: removed %d expired items", count)
	}
	return count
}

// evictOldestLocked 淘汰最旧的缓存项，调用方需持有写锁
func (m *MemoryCache) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range m.items {
		if oldestKey == "" || item.CreatedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.CreatedAt
		}
	}

	if oldestKey != "" {
		delete(m.items, oldestKey)
		logger.Debugf("Memory cache evicted oldest: %s", oldestKey)
	}
}
