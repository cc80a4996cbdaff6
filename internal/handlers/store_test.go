package handlers

import (
	"cmp"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/thereayou/taskchat/internal/database"
	"github.com/thereayou/taskchat/internal/models"
	"github.com/thereayou/taskchat/internal/storage"
)

// memStore is an in-memory services.ChatStore.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	rooms    map[uuid.UUID]*memRoom
	messages []models.Message
	nextID   int64
	saveErr  error
}

type memRoom struct {
	room    models.Room
	members []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{users: map[uuid.UUID]models.User{}, rooms: map[uuid.UUID]*memRoom{}}
}

func (s *memStore) SaveUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *memStore) GetUser(id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &u, nil
}

func (s *memStore) FindUserByEmail(email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memStore) ListUsers(excludeID uuid.UUID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if u.ID != excludeID {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b models.User) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *memStore) UpdateLastSeen(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return database.ErrNotFound
	}
	return nil
}

func (s *memStore) CreateRoom(room *models.Room, memberIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room.ID = uuid.New()
	r := &memRoom{room: *room, members: []uuid.UUID{room.OwnerID}}
	for _, id := range memberIDs {
		if _, ok := s.users[id]; ok && !slices.Contains(r.members, id) {
			r.members = append(r.members, id)
		}
	}
	s.rooms[room.ID] = r
	return nil
}

func (s *memStore) loadLocked(r *memRoom) models.Room {
	out := r.room
	out.Owner = s.users[r.room.OwnerID]
	out.Members = nil
	for _, id := range r.members {
		out.Members = append(out.Members, s.users[id])
	}
	return out
}

func (s *memStore) GetRoom(id uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := s.loadLocked(r)
	return &out, nil
}

func (s *memStore) GetUserRooms(userID uuid.UUID) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Room
	for _, r := range s.rooms {
		if slices.Contains(r.members, userID) {
			out = append(out, s.loadLocked(r))
		}
	}
	return out, nil
}

func (s *memStore) AddUserToRoom(userID, roomID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return database.ErrNotFound
	}
	r.members = append(r.members, userID)
	return nil
}

func (s *memStore) RemoveUserFromRoom(userID, roomID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return database.ErrNotFound
	}
	r.members = slices.DeleteFunc(r.members, func(id uuid.UUID) bool { return id == userID })
	return nil
}

func (s *memStore) SaveMessage(m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.nextID++
	m.ID = s.nextID
	s.messages = append(s.messages, *m)
	return nil
}

func (s *memStore) GetMessage(id int64) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			m.Sender = s.users[m.SenderID]
			return &m, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memStore) GetRoomMessages(roomID uuid.UUID, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.RoomID == roomID {
			m.Sender = s.users[m.SenderID]
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b models.Message) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type savedFile struct {
	name string
	body string
}

// memAttachments records uploads and reports a fixed content type.
type memAttachments struct {
	mu    sync.Mutex
	files []savedFile
}

func (a *memAttachments) Save(name string, r io.Reader) (storage.Ref, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return storage.Ref{}, err
	}
	if len(b) == 0 {
		return storage.Ref{}, storage.ErrEmptyUpload
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files = append(a.files, savedFile{name: name, body: string(b)})
	return storage.Ref{Path: "/api/uploads/" + name, ContentType: "application/pdf"}, nil
}

func (a *memAttachments) Delete(ref storage.Ref) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, f := range a.files {
		if "/api/uploads/"+f.name == ref.Path {
			a.files = append(a.files[:i], a.files[i+1:]...)
			return nil
		}
	}
	return nil
}
