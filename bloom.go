package perfcache

// remember 將寫入過的鍵加入布隆過濾器
func (c *Cache[V]) remember(key string) {
	c.filterMu.Lock()
	c.filter.AddString(key)
	c.filterMu.Unlock()
}

// classifyMiss 依布隆過濾器判斷未命中是否為冷未命中。誤判只會把冷未命中算成熱未命中。
func (c *Cache[V]) classifyMiss(key string) {
	c.filterMu.Lock()
	seen := c.filter.TestString(key)
	c.filterMu.Unlock()

	if seen {
		c.warmMisses.Inc()
		return
	}
	c.coldMisses.Inc()
}

// MissBreakdown 回傳冷、熱未命中的次數
func (c *Cache[V]) MissBreakdown() MissBreakdown {
	return MissBreakdown{
		Cold: c.coldMisses.Load(),
		Warm: c.warmMisses.Load(),
	}
}

// ResetMissBreakdown clears the miss counters and forgets every remembered key.
func (c *Cache[V]) ResetMissBreakdown() {
	c.filterMu.Lock()
	c.filter.ClearAll()
	c.filterMu.Unlock()

	c.coldMisses.Store(0)
	c.warmMisses.Store(0)
}
