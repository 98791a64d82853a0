package library

import "time"

// membership owns the Member records. Members are immutable once added.
type membership struct {
	members map[MemberID]*Member
	nextID  MemberID
}

func newMembership() *membership {
	return &membership{members: make(map[MemberID]*Member)}
}

func (m *membership) add(name, email string, now time.Time) MemberID {
	id := m.nextID
	m.nextID++
	m.members[id] = &Member{ID: id, Name: name, Email: email, JoinDate: now}
	return id
}

func (m *membership) get(id MemberID) (*Member, bool) {
	mem, ok := m.members[id]
	return mem, ok
}

func (m *membership) len() int { return len(m.members) }

func (m *membership) list() []Member {
	out := make([]Member, 0, len(m.members))
	for id := MemberID(0); id < m.nextID; id++ {
		if mem, ok := m.members[id]; ok {
			out = append(out, *mem)
		}
	}
	return out
}

func (m *membership) restore(members []Member, nextID MemberID) error {
	m.members = make(map[MemberID]*Member, len(members))
	for i := range members {
		mem := members[i]
		if mem.ID < 0 || mem.ID >= nextID {
			return errInvalidID("member", int64(mem.ID), int64(nextID))
		}
		if _, dup := m.members[mem.ID]; dup {
			return errDuplicateID("member", int64(mem.ID))
		}
		m.members[mem.ID] = &mem
	}
	m.nextID = nextID
	return nil
}
