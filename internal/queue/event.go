package queue

import (
	"sync"

	"github.com/telegrab/telegrab/pkg/logger"
)

var eventLog = logger.Get("EventBus")

type (
	EventType string

	// QueueEvent is the wire shape broadcast for every queue mutation.
	// Type discriminates which of the optional fields are populated.
	QueueEvent struct {
		Type     EventType `json:"type"`
		Task     *Task     `json:"task,omitempty"`
		TaskID   string    `json:"taskId,omitempty"`
		Progress *float64  `json:"progress,omitempty"`
	}

	// EventBus fans queue events out to any number of subscribers. A
	// publish never blocks: when a subscriber's buffer is full the
	// oldest buffered event for that subscriber is discarded to make
	// room. Subscribers that want every event must keep up.
	EventBus struct {
		mutex       sync.RWMutex
		subscribers map[int]chan QueueEvent
		nextID      int
		bufferSize  int
	}
)

const (
	TaskAddedEvent    EventType = "TaskAdded"
	TaskUpdatedEvent  EventType = "TaskUpdated"
	TaskRemovedEvent  EventType = "TaskRemoved"
	TaskProgressEvent EventType = "TaskProgress"
	QueueClearedEvent EventType = "QueueCleared"
)

const DefaultEventBufferSize = 1024

func NewEventBus() *EventBus {
	return NewEventBusWithBuffer(DefaultEventBufferSize)
}

func NewEventBusWithBuffer(bufferSize int) *EventBus {
	if bufferSize < 1 {
		bufferSize = 1
	}

	return &EventBus{
		subscribers: make(map[int]chan QueueEvent),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new subscriber and returns its delivery channel
// along with a cancel function. The channel is never closed by the bus;
// after cancelling, the subscriber simply stops receiving new events.
func (bus *EventBus) Subscribe() (<-chan QueueEvent, func()) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	id := bus.nextID
	bus.nextID++

	channel := make(chan QueueEvent, bus.bufferSize)
	bus.subscribers[id] = channel

	return channel, func() {
		bus.mutex.Lock()
		defer bus.mutex.Unlock()
		delete(bus.subscribers, id)
	}
}

// Publish delivers the event to every current subscriber. Slow
// subscribers lose their oldest buffered event rather than delaying
// the publisher.
func (bus *EventBus) Publish(event QueueEvent) {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()

	for id, channel := range bus.subscribers {
		select {
		case channel <- event:
			continue
		default:
		}

		// Buffer full; evict the oldest entry and retry once. The
		// second send can only fail if a concurrent publisher refilled
		// the slot, in which case this event is the one dropped.
		select {
		case <-channel:
		default:
		}

		select {
		case channel <- event:
		default:
			eventLog.Warnf("Subscriber %d buffer full, dropped %s event\n", id, event.Type)
		}

		eventLog.Verbosef("Subscriber %d lagging, evicted oldest event to deliver %s\n", id, event.Type)
	}
}

// SubscriberCount reports how many subscribers are currently attached.
func (bus *EventBus) SubscriberCount() int {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()

	return len(bus.subscribers)
}

func taskAdded(task Task) QueueEvent {
	return QueueEvent{Type: TaskAddedEvent, Task: &task, TaskID: task.ID}
}

func taskUpdated(task Task) QueueEvent {
	return QueueEvent{Type: TaskUpdatedEvent, Task: &task, TaskID: task.ID}
}

// TaskRemoved builds the event a worker publishes once a task has been
// finalised and is no longer live.
func TaskRemoved(taskID string) QueueEvent {
	return QueueEvent{Type: TaskRemovedEvent, TaskID: taskID}
}

func taskProgress(taskID string, progress float64) QueueEvent {
	return QueueEvent{Type: TaskProgressEvent, TaskID: taskID, Progress: &progress}
}

func queueCleared() QueueEvent {
	return QueueEvent{Type: QueueClearedEvent}
}
