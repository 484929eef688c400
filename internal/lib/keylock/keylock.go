// Package keylock выдаёт мьютекс на строковый ключ. Запись о ключе живёт,
// пока её кто-то держит или ждёт.
package keylock

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Locker — набор мьютексов по ключам.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func New() *Locker {
	return &Locker{locks: make(map[string]*lockEntry)}
}

// Lock захватывает мьютекс key и возвращает функцию освобождения.
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len возвращает число ключей, которые сейчас удерживаются или ожидаются.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
