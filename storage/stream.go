package storage

import (
	"context"
	"sync"
)

// Stream ist ein Broadcast-Kanal, der den jeweils letzten Wert hält.
// Neue Abonnenten bekommen sofort den letzten Wert, danach jede Änderung.
// Die Zustellung ist zusammengefasst: wer langsam liest, sieht den neuesten
// Wert und keinen Rückstau.
type Stream[T any] struct {
	mu     sync.Mutex
	latest T
	subs   map[*Subscription[T]]struct{}
}

// Subscription ist ein einzelner Abonnent eines Streams.
type Subscription[T any] struct {
	stream *Stream[T]
	ch     chan T
	once   sync.Once
}

// NewStream erstellt einen Stream mit Startwert.
func NewStream[T any](initial T) *Stream[T] {
	return &Stream[T]{
		latest: initial,
		subs:   make(map[*Subscription[T]]struct{}),
	}
}

// Publish ersetzt den letzten Wert und verteilt ihn an alle Abonnenten.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = v
	for sub := range s.subs {
		sub.offer(v)
	}
}

// Latest gibt den zuletzt veröffentlichten Wert zurück.
func (s *Stream[T]) Latest() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Subscribe registriert einen neuen Abonnenten. Der aktuelle Wert liegt bereits im Kanal.
func (s *Stream[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{stream: s, ch: make(chan T, 1)}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ch <- s.latest
	s.subs[sub] = struct{}{}
	return sub
}

// offer legt v in den Puffer und verdrängt einen noch ungelesenen Wert.
// Nur unter s.mu aufrufen: Publish ist der einzige Sender.
func (sub *Subscription[T]) offer(v T) {
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- v
}

// C liefert den Empfangskanal. Er wird bei Close geschlossen.
func (sub *Subscription[T]) C() <-chan T {
	return sub.ch
}

// Close meldet den Abonnenten ab. Mehrfacher Aufruf ist erlaubt.
func (sub *Subscription[T]) Close() {
	sub.once.Do(func() {
		sub.stream.mu.Lock()
		delete(sub.stream.subs, sub)
		close(sub.ch)
		sub.stream.mu.Unlock()
	})
}

// Derive erzeugt einen Stream, dessen Werte fn(v) jedes Werts von src sind.
// Die Ableitung läuft, bis ctx beendet wird.
func Derive[T, U any](ctx context.Context, src *Stream[T], fn func(T) U) *Stream[U] {
	sub := src.Subscribe()
	first := <-sub.C()
	out := NewStream(fn(first))
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-sub.C():
				if !ok {
					return
				}
				out.Publish(fn(v))
			}
		}
	}()
	return out
}
