package realtime

import (
	"hash/fnv"
	"sync"
)

const registryShards = 16

// TopicForAuction names the subscription group for one auction's watchers.
func TopicForAuction(auctionID string) string {
	return "auction:" + auctionID
}

// Registry tracks live connections grouped by topic. Topics are spread
// over a fixed set of shards so a connect/disconnect storm on one group
// cannot stall lookups on others. Groups are created on first subscribe
// and discarded on last unsubscribe; the registry never owns connection
// lifetime.
type Registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu     sync.RWMutex
	groups map[string]map[string]Conn // topic -> connID -> conn
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].groups = make(map[string]map[string]Conn)
	}
	return r
}

func (r *Registry) shard(topic string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(topic))
	return &r.shards[h.Sum32()%registryShards]
}

// Subscribe adds the connection to the topic's group.
func (r *Registry) Subscribe(conn Conn, topic string) {
	s := r.shard(topic)
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[topic]
	if !ok {
		group = make(map[string]Conn)
		s.groups[topic] = group
	}
	group[conn.ID()] = conn
}

// Unsubscribe removes the connection from the topic's group, dropping
// the group once its last member leaves.
func (r *Registry) Unsubscribe(conn Conn, topic string) {
	s := r.shard(topic)
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[topic]
	if !ok {
		return
	}
	delete(group, conn.ID())
	if len(group) == 0 {
		delete(s.groups, topic)
	}
}

// UnsubscribeAll removes the connection from every group. Invoked on
// disconnect.
func (r *Registry) UnsubscribeAll(conn Conn) {
	id := conn.ID()
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for topic, group := range s.groups {
			delete(group, id)
			if len(group) == 0 {
				delete(s.groups, topic)
			}
		}
		s.mu.Unlock()
	}
}

// Members returns a snapshot of the topic's current subscribers.
func (r *Registry) Members(topic string) []Conn {
	s := r.shard(topic)
	s.mu.RLock()
	defer s.mu.RUnlock()

	group := s.groups[topic]
	members := make([]Conn, 0, len(group))
	for _, conn := range group {
		members = append(members, conn)
	}
	return members
}

// MemberCount returns the number of subscribers on the topic.
func (r *Registry) MemberCount(topic string) int {
	s := r.shard(topic)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups[topic])
}
