// Package authcache es el cache corto de resoluciones de identidad.
//
// Política de evicción: FIFO por orden de inserción, NO LRU. Es deliberado:
// preserva el comportamiento documentado del sistema original y los callers
// no deben depender de evicción por recencia. No "mejorar" a LRU.
package authcache

import (
	"container/list"
	"sync"
	"time"

	"github.com/qaaqit/qaaq-auth/internal/config"
	"github.com/qaaqit/qaaq-auth/internal/domain/types"
	"github.com/qaaqit/qaaq-auth/internal/observability/logger"
)

// Options configura el cache.
type Options struct {
	// TTL de cada entrada. Default 30s.
	TTL time.Duration
	// Capacity máxima de entradas. Al insertarse la Capacity+1, se evicta
	// la más vieja por inserción. Default 1000.
	Capacity int
	// SweepGap intervalo del barrido periódico. Default 60s.
	SweepGap time.Duration
}

type entry struct {
	key        string
	identity   types.ResolvedIdentity
	insertedAt time.Time
}

// Cache mapea session key → identidad resuelta. Thread-safe, best-effort:
// ninguna operación bloquea al caller más allá del mutex interno.
type Cache struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // frente = más viejo; elementos son *entry

	ttl      time.Duration
	capacity int
	sweepGap time.Duration

	stop chan struct{}
	wg   sync.WaitGroup

	// now es inyectable para tests de TTL
	now func() time.Time

	// disabled se lee EN VIVO para que el toggle no requiera restart
	disabled func() bool
}

// New crea el cache. No arranca el sweeper: llamar StartSweeper.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 1000
	}
	if opts.SweepGap <= 0 {
		opts.SweepGap = 60 * time.Second
	}
	return &Cache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		ttl:      opts.TTL,
		capacity: opts.Capacity,
		sweepGap: opts.SweepGap,
		stop:     make(chan struct{}),
		now:      time.Now,
		disabled: config.CacheDisabled,
	}
}

// Get retorna la identidad cacheada para key.
// Retorna ausente si: el cache está deshabilitado por env, la key no existe,
// o la entrada superó el TTL (en ese caso se borra en el acto: evicción lazy).
func (c *Cache) Get(key string) (types.ResolvedIdentity, bool) {
	if c.disabled() {
		return types.ResolvedIdentity{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return types.ResolvedIdentity{}, false
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.removeLocked(el)
		return types.ResolvedIdentity{}, false
	}
	return e.identity, true
}

// Set inserta o sobreescribe. No-op si el cache está deshabilitado.
// Si el store está lleno, evicta la entrada más vieja por inserción.
func (c *Cache) Set(key string, id types.ResolvedIdentity) {
	if c.disabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		// sobreescritura cuenta como inserción nueva para el orden FIFO
		c.removeLocked(el)
	}
	for len(c.items) >= c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}
	e := &entry{key: key, identity: id, insertedAt: c.now()}
	c.items[key] = c.order.PushBack(e)
}

// Invalidate borra una entrada puntual.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
}

// Clear vacía el cache completo.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Len retorna la cantidad de entradas vivas (incluye staleness no barrida).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.items, e.key)
}

// StartSweeper arranca el barrido periódico en una goroutine.
// Si al momento del barrido el cache está deshabilitado por env, limpia TODO
// el store: apagar el feature surte efecto inmediato, no solo para lookups
// nuevos.
func (c *Cache) StartSweeper() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		t := time.NewTicker(c.sweepGap)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.sweep()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop detiene el sweeper. Llamar una sola vez, en el shutdown del proceso.
func (c *Cache) Stop() {
	close(c.stop)
	c.wg.Wait()
}

func (c *Cache) sweep() {
	if c.disabled() {
		n := c.Len()
		c.Clear()
		if n > 0 {
			logger.Named("authcache").Info("cache deshabilitado por env, store limpiado",
				logger.Count(n))
		}
		return
	}

	c.mu.Lock()
	var stale []*list.Element
	now := c.now()
	for el := c.order.Front(); el != nil; el = el.Next() {
		if now.Sub(el.Value.(*entry).insertedAt) > c.ttl {
			stale = append(stale, el)
		}
	}
	for _, el := range stale {
		c.removeLocked(el)
	}
	c.mu.Unlock()

	if len(stale) > 0 {
		logger.Named("authcache").Debug("sweep", logger.Count(len(stale)))
	}
}
