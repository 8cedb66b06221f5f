package booking

import (
	"context"
	"sync"
)

// Topic names one live result set.
type Topic string

const (
	TopicAppointments    Topic = "appointments"
	TopicAppointmentsAll Topic = "appointments_all"
	TopicGuests          Topic = "guests"
	TopicPhotographers   Topic = "photographers"
	TopicOccasions       Topic = "occasions"
	TopicTimeSlots       Topic = "time_slots"
)

// Topics lists every topic a subscriber can watch.
func Topics() []Topic {
	return []Topic{TopicAppointments, TopicAppointmentsAll, TopicGuests, TopicPhotographers, TopicOccasions, TopicTimeSlots}
}

// ParseTopic maps raw input onto a known topic.
func ParseTopic(value string) (Topic, bool) {
	for _, topic := range Topics() {
		if string(topic) == value {
			return topic, true
		}
	}
	return "", false
}

// Snapshot is the full current content of one topic. Only the field matching Topic is populated.
type Snapshot struct {
	Topic         Topic
	Appointments  []Appointment
	Guests        []Guest
	Photographers []Photographer
	Occasions     []Occasion
	TimeSlots     []TimeSlot
}

// Feed is a registry of snapshot subscribers keyed by topic.
type Feed struct {
	mu          sync.RWMutex
	subscribers map[Topic]map[int64]*feedSubscriber
	nextID      int64
	bufferSize  int
}

type feedSubscriber struct {
	id     int64
	stream chan Snapshot
}

func NewFeed() *Feed {
	return &Feed{
		subscribers: make(map[Topic]map[int64]*feedSubscriber),
		bufferSize:  4,
	}
}

// Subscribe registers a listener for topic until ctx ends or the returned cleanup runs.
func (f *Feed) Subscribe(ctx context.Context, topic Topic) (<-chan Snapshot, func()) {
	return f.subscribe(ctx, topic, nil)
}

func (f *Feed) subscribe(ctx context.Context, topic Topic, initial *Snapshot) (<-chan Snapshot, func()) {
	if topic == "" {
		ch := make(chan Snapshot)
		close(ch)
		return ch, func() {}
	}
	subscriber := &feedSubscriber{
		id:     f.nextSequence(),
		stream: make(chan Snapshot, f.bufferSize),
	}
	if initial != nil {
		subscriber.stream <- *initial
	}
	f.registerSubscriber(topic, subscriber)
	cleanup := func() {
		f.unregisterSubscriber(topic, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// HasSubscribers reports whether anyone listens on topic.
func (f *Feed) HasSubscribers(topic Topic) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[topic]) > 0
}

// Publish delivers snapshot to every subscriber of its topic.
// A full subscriber loses its oldest pending snapshot, never the newest.
func (f *Feed) Publish(snapshot Snapshot) {
	if snapshot.Topic == "" {
		return
	}
	f.mu.RLock()
	subscribers := f.subscribers[snapshot.Topic]
	if len(subscribers) == 0 {
		f.mu.RUnlock()
		return
	}
	copies := make([]*feedSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	f.mu.RUnlock()
	for _, subscriber := range copies {
		deliver(subscriber.stream, snapshot)
	}
}

func deliver(stream chan Snapshot, snapshot Snapshot) {
	select {
	case stream <- snapshot:
		return
	default:
	}
	select {
	case <-stream:
	default:
	}
	select {
	case stream <- snapshot:
	default:
	}
}

func (f *Feed) nextSequence() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID
}

func (f *Feed) registerSubscriber(topic Topic, subscriber *feedSubscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subscribers[topic]; !ok {
		f.subscribers[topic] = make(map[int64]*feedSubscriber)
	}
	f.subscribers[topic][subscriber.id] = subscriber
}

func (f *Feed) unregisterSubscriber(topic Topic, subscriberID int64) {
	f.mu.Lock()
	subscribers := f.subscribers[topic]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(f.subscribers, topic)
		}
	}
	f.mu.Unlock()
}
