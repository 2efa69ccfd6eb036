package events

import (
	"sync"

	"github.com/ethereum/go-ethereum/event"
)

// Buffered values per subscriber before Send blocks.
const subscriberBuffer = 16

type Callback[T any] func(data T)

type Subscription[T any] struct {
	s event.Subscription
	c chan T
	w *sync.WaitGroup
}

// Wrapper of go-ethereum/event.FeedOf that provides easier Subscribe and
// Unsubscribe calls. Callbacks of one subscriber run in order on their own
// goroutine.
type FeedOf[T any] struct {
	mtx  sync.Mutex
	feed event.FeedOf[T]

	subscriptions map[string]*Subscription[T]
}

func (e *FeedOf[T]) Send(data T) (sent int) {
	return e.feed.Send(data)
}

// Subscribe registers callback under id, replacing a previous subscription
// with the same id.
func (e *FeedOf[T]) Subscribe(id string, callback Callback[T]) {
	e.Unsubscribe(id).Wait()

	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.subscriptions == nil {
		e.subscriptions = make(map[string]*Subscription[T])
	}
	sub := &Subscription[T]{c: make(chan T, subscriberBuffer), w: &sync.WaitGroup{}}
	sub.s = e.feed.Subscribe(sub.c)
	sub.w.Add(1)
	go func() {
		defer sub.w.Done()
		for {
			select {
			case t := <-sub.c:
				callback(t)
			case <-sub.s.Err():
				// Deliver what was sent before unsubscribing.
				for {
					select {
					case t := <-sub.c:
						callback(t)
					default:
						return
					}
				}
			}
		}
	}()
	e.subscriptions[id] = sub
}

// Unsubscribe removes the subscription registered under id. The returned
// WaitGroup is done once its callback goroutine exited.
func (e *FeedOf[T]) Unsubscribe(id string) *sync.WaitGroup {
	e.mtx.Lock()
	sub, ok := e.subscriptions[id]
	if ok {
		delete(e.subscriptions, id)
	}
	e.mtx.Unlock()
	if ok {
		sub.s.Unsubscribe()
		return sub.w
	}
	return &sync.WaitGroup{}
}

// Close removes every subscription.
func (e *FeedOf[T]) Close() {
	e.mtx.Lock()
	subs := e.subscriptions
	e.subscriptions = nil
	e.mtx.Unlock()
	for _, sub := range subs {
		sub.s.Unsubscribe()
	}
}

func (e *FeedOf[T]) Len() int {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return len(e.subscriptions)
}
