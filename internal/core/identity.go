package core

import "sort"

// FriendSet is an immutable set of user ids.
type FriendSet map[int64]struct{}

// NewFriendSet builds a set from ids, ignoring duplicates.
func NewFriendSet(ids []int64) FriendSet {
	s := make(FriendSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set. A nil set contains nothing.
func (s FriendSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members in ascending order.
func (s FriendSet) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Identity is a verified user. Friends is captured once at admission and is not
// refreshed for the lifetime of the session.
type Identity struct {
	ID       int64
	Username string
	Email    string
	Avatar   string
	Friends  FriendSet
}
