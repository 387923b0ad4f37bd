package attendance

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Manager owns the current session and its attendance log. All methods are
// safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	idGenerator func() string
	now         func() time.Time

	current *Session
	records []Record
}

// NewManager constructs a Manager. A nil idGenerator falls back to the
// creation timestamp in nanoseconds and a nil now to time.Now.
func NewManager(idGenerator func() string, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = func() string { return strconv.FormatInt(now().UnixNano(), 10) }
	}
	return &Manager{idGenerator: idGenerator, now: now}
}

// Now returns the manager's notion of the current instant.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Create starts a new session anchored at origin. The previous session, its
// device set and its log are discarded.
func (m *Manager) Create(origin Location) (Session, error) {
	if !origin.valid() {
		return Session{}, fmt.Errorf("%w: origin coordinates must be numeric", ErrInvalidInput)
	}

	now := m.now()
	session := &Session{
		ID:          m.idGenerator(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(SessionWindow),
		Origin:      origin,
		usedDevices: make(map[string]struct{}),
	}

	m.mu.Lock()
	m.current = session
	m.records = nil
	snapshot := session.snapshot()
	m.mu.Unlock()

	return snapshot, nil
}

// Current returns a snapshot of the active session, if one was ever created.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return Session{}, false
	}
	return m.current.snapshot(), true
}

// Submit validates sub against the current session and, when accepted, marks
// the device as used and appends the record. Both effects happen under the
// same lock as the checks.
func (m *Manager) Submit(sub Submission) (Record, Decision, error) {
	if !sub.Location.valid() {
		return Record{}, Decision{}, fmt.Errorf("%w: submission coordinates must be numeric", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	decision := Validate(m.current, sub, now)
	if err := decision.Err(); err != nil {
		return Record{}, decision, err
	}

	record := Record{
		SessionID:   m.current.ID,
		Name:        sub.Name,
		RollNumber:  sub.RollNumber,
		SubmittedAt: now,
		DeviceID:    sub.DeviceID,
		Distance:    decision.Distance,
	}
	m.current.usedDevices[sub.DeviceID] = struct{}{}
	m.records = append(m.records, record)

	return record, decision, nil
}

// Records returns a copy of the log in acceptance order.
func (m *Manager) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRecords(m.records)
}

// Export returns the session and its records when policy allows it at the
// manager's current time.
func (m *Manager) Export(policy ExportPolicy) (Session, []Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return Session{}, nil, ErrNoSession
	}
	if !policy.Allows(*m.current, m.now()) {
		return Session{}, nil, ErrSessionStillActive
	}
	return m.current.snapshot(), cloneRecords(m.records), nil
}

func cloneRecords(records []Record) []Record {
	if len(records) == 0 {
		return nil
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}
