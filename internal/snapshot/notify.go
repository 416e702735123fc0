package snapshot

type subCh = chan string // carries the new resolve token

// Subscribe registers a listener notified each time a resolution becomes
// live. It returns the channel and an unsubscribe func.
func (c *Cache) Subscribe() (<-chan string, func()) {
	ch := make(subCh, 1)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()

	unsub := func() {
		c.subMu.Lock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
		c.subMu.Unlock()
	}
	return ch, unsub
}

// publishUpdate notifies all listeners (non-blocking).
func (c *Cache) publishUpdate(token string) {
	c.subMu.Lock()
	for ch := range c.subs {
		select {
		case ch <- token:
		default: // slow listener, it already has a pending notification
		}
	}
	c.subMu.Unlock()
}
