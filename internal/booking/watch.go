package booking

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Watch subscribes to topic and immediately queues its current snapshot.
// Every committed mutation touching the topic delivers a fresh full snapshot afterwards.
func (s *Service) Watch(ctx context.Context, topic Topic) (<-chan Snapshot, func(), error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snapshot, err := s.Snapshot(ctx, topic)
	if err != nil {
		return nil, nil, err
	}
	stream, cleanup := s.feed.subscribe(ctx, topic, &snapshot)
	return stream, cleanup, nil
}

// Snapshot loads the full current content of topic.
func (s *Service) Snapshot(ctx context.Context, topic Topic) (Snapshot, error) {
	snapshot := Snapshot{Topic: topic}
	var err error
	switch topic {
	case TopicAppointments:
		snapshot.Appointments, err = s.ListAppointments(ctx)
	case TopicAppointmentsAll:
		snapshot.Appointments, err = s.ListAppointmentsIncludingDeleted(ctx)
	case TopicGuests:
		snapshot.Guests, err = s.ListGuests(ctx)
	case TopicPhotographers:
		snapshot.Photographers, err = s.ListPhotographers(ctx)
	case TopicOccasions:
		snapshot.Occasions, err = s.ListOccasions(ctx)
	case TopicTimeSlots:
		snapshot.TimeSlots, err = s.ListTimeSlots(ctx)
	default:
		err = newServiceError(opSnapshot, "unknown_topic", fmt.Errorf("unknown topic %q", topic))
	}
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

// publish runs after a committed mutation while writeMu is held.
func (s *Service) publish(ctx context.Context, topics ...Topic) {
	for _, topic := range topics {
		if !s.feed.HasSubscribers(topic) {
			continue
		}
		snapshot, err := s.Snapshot(context.WithoutCancel(ctx), topic)
		if err != nil {
			s.logger.Warn("snapshot publish skipped", zap.String("topic", string(topic)), zap.Error(err))
			continue
		}
		s.feed.Publish(snapshot)
	}
}
