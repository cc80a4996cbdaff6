package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// RoomBackend is the room and user half of the chat API.
type RoomBackend interface {
	ListRooms(ctx context.Context) ([]Room, error)
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error)
	ListUsers(ctx context.Context) ([]User, error)
	AddMember(ctx context.Context, roomID, userID uuid.UUID) (*Room, error)
	RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error
}

// Directory resolves rooms for the session user and decides who may read or
// write them. Open and private rooms follow the same rule: members only.
type Directory struct {
	session *Session
	backend RoomBackend

	mu    sync.RWMutex
	rooms map[uuid.UUID]Room
}

func NewDirectory(session *Session, backend RoomBackend) *Directory {
	return &Directory{
		session: session,
		backend: backend,
		rooms:   make(map[uuid.UUID]Room),
	}
}

// ListRooms returns the rooms the session user belongs to and refreshes the cache.
func (d *Directory) ListRooms(ctx context.Context) ([]Room, error) {
	rooms, err := d.backend.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	userID := d.session.User().ID

	visible := make([]Room, 0, len(rooms))
	fresh := make(map[uuid.UUID]Room, len(rooms))
	for _, r := range rooms {
		if !r.HasMember(userID) {
			continue
		}
		visible = append(visible, r)
		fresh[r.ID] = r
	}

	d.mu.Lock()
	d.rooms = fresh
	d.mu.Unlock()
	return visible, nil
}

// Room looks a room up in the cache, reloading the listing on a miss. A room
// the user is not a member of is reported as an AuthorizationError.
func (d *Directory) Room(ctx context.Context, id uuid.UUID) (Room, error) {
	d.mu.RLock()
	r, ok := d.rooms[id]
	d.mu.RUnlock()
	if ok {
		return r, nil
	}

	if _, err := d.ListRooms(ctx); err != nil {
		return Room{}, err
	}

	d.mu.RLock()
	r, ok = d.rooms[id]
	d.mu.RUnlock()
	if !ok {
		return Room{}, &AuthorizationError{UserID: d.session.User().ID, RoomID: id, Action: "read"}
	}
	return r, nil
}

func (d *Directory) CanRead(userID uuid.UUID, room Room) bool {
	return room.HasMember(userID)
}

func (d *Directory) CanWrite(userID uuid.UUID, room Room) bool {
	return room.HasMember(userID)
}

// CreateRoom validates locally before calling the API: the name must not be
// blank and at least one member besides the owner is required.
func (d *Directory) CreateRoom(ctx context.Context, name string, isPrivate bool, memberIDs []uuid.UUID) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "room name is required"}
	}

	owner := d.session.User().ID
	seen := make(map[uuid.UUID]struct{}, len(memberIDs))
	members := make([]uuid.UUID, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id == owner || id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) == 0 {
		return nil, &ValidationError{Field: "memberIds", Reason: "select at least one member"}
	}

	room, err := d.backend.CreateRoom(ctx, CreateRoomRequest{
		Name:      name,
		IsPrivate: isPrivate,
		MemberIDs: members,
	})
	if err != nil {
		return nil, err
	}
	d.remember(*room)
	return room, nil
}

// Users lists candidate members for a new room.
func (d *Directory) Users(ctx context.Context) ([]User, error) {
	return d.backend.ListUsers(ctx)
}

// AddMember is reserved for the room owner.
func (d *Directory) AddMember(ctx context.Context, roomID, userID uuid.UUID) (*Room, error) {
	room, err := d.ownedRoom(ctx, roomID, "add members to")
	if err != nil {
		return nil, err
	}
	if room.HasMember(userID) {
		return &room, nil
	}
	updated, err := d.backend.AddMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	d.remember(*updated)
	return updated, nil
}

// RemoveMember is reserved for the room owner, who can never be removed.
func (d *Directory) RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error {
	room, err := d.ownedRoom(ctx, roomID, "remove members from")
	if err != nil {
		return err
	}
	if userID == room.Owner.ID {
		return &ValidationError{Field: "userId", Reason: "the room owner cannot be removed"}
	}
	if err := d.backend.RemoveMember(ctx, roomID, userID); err != nil {
		return err
	}

	members := make([]User, 0, len(room.Members))
	for _, m := range room.Members {
		if m.ID != userID {
			members = append(members, m)
		}
	}
	room.Members = members
	d.remember(room)
	return nil
}

func (d *Directory) ownedRoom(ctx context.Context, roomID uuid.UUID, action string) (Room, error) {
	room, err := d.Room(ctx, roomID)
	if err != nil {
		return Room{}, err
	}
	userID := d.session.User().ID
	if room.Owner.ID != userID {
		return Room{}, &AuthorizationError{UserID: userID, RoomID: roomID, Action: action}
	}
	return room, nil
}

func (d *Directory) remember(r Room) {
	d.mu.Lock()
	d.rooms[r.ID] = r
	d.mu.Unlock()
}
