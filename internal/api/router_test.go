package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/harshdhankhar11/ArogyaSetu-Care-backend/internal/appointment"
	"github.com/harshdhankhar11/ArogyaSetu-Care-backend/internal/user"
)

// In-memory stores shared by the user and appointment fakes so that doctor
// candidates come from registered users, as they do in Postgres.

type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
	appts map[uuid.UUID]*appointment.Appointment
	seq   int
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[uuid.UUID]*user.User),
		appts: make(map[uuid.UUID]*appointment.Appointment),
	}
}

type memUserRepo struct{ s *memStore }

func (r memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r memUserRepo) Create(_ context.Context, u *user.User) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return nil, user.ErrEmailTaken
		}
	}
	cp := *u
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.s.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

type memApptRepo struct{ s *memStore }

func (r memApptRepo) FindDoctorsByDepartment(_ context.Context, department string) ([]appointment.DoctorRef, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	norm := strings.ToLower(strings.TrimSpace(department))
	var refs []appointment.DoctorRef
	for _, u := range r.s.users {
		if u.Role == user.RoleDoctor && strings.ToLower(strings.TrimSpace(u.Department)) == norm && norm != "" {
			refs = append(refs, appointment.DoctorRef{ID: u.ID, Name: u.Name})
		}
	}
	return refs, nil
}

func (r memApptRepo) FindGeneralistDoctors(_ context.Context) ([]appointment.DoctorRef, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var refs []appointment.DoctorRef
	for _, u := range r.s.users {
		if u.Role == user.RoleDoctor && strings.TrimSpace(u.Department) == "" {
			refs = append(refs, appointment.DoctorRef{ID: u.ID, Name: u.Name})
		}
	}
	return refs, nil
}

func (r memApptRepo) HasActiveAppointment(_ context.Context, doctor appointment.DoctorRef, date, timeSlot string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.appts {
		if a.Date == date && a.TimeSlot == timeSlot &&
			(a.Status == appointment.StatusPending || a.Status == appointment.StatusApproved) &&
			doctor.Matches(a.DoctorID, a.DoctorName) {
			return true, nil
		}
	}
	return false, nil
}

func (r memApptRepo) CreatePending(_ context.Context, appt *appointment.Appointment) (*appointment.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *appt
	cp.ID = uuid.New()
	cp.Status = appointment.StatusPending
	r.s.seq++
	cp.CreatedAt = time.Unix(int64(r.s.seq), 0)
	cp.UpdatedAt = cp.CreatedAt
	r.s.appts[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r memApptRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memApptRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to appointment.Status) (*appointment.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appts[id]
	if !ok || a.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (r memApptRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]appointment.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []appointment.Appointment
	for _, a := range r.s.appts {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r memApptRepo) ListByDoctor(_ context.Context, doctor appointment.DoctorRef) ([]appointment.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []appointment.Appointment
	for _, a := range r.s.appts {
		if doctor.Matches(a.DoctorID, a.DoctorName) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r memApptRepo) CountByDoctor(_ context.Context, doctor appointment.DoctorRef) (int64, error) {
	appts, _ := r.ListByDoctor(context.Background(), doctor)
	return int64(len(appts)), nil
}

func (r memApptRepo) CountByDoctorAndStatus(_ context.Context, doctor appointment.DoctorRef, status appointment.Status) (int64, error) {
	appts, _ := r.ListByDoctor(context.Background(), doctor)
	var n int64
	for _, a := range appts {
		if a.Status == status {
			n++
		}
	}
	return n, nil
}

func (r memApptRepo) InsertEvent(_ context.Context, _ appointment.EventLog) error {
	return nil
}

type noopLocker struct{}

func (noopLocker) WithBookingLock(ctx context.Context, _ uuid.UUID, _, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := newMemStore()
	users := user.NewService(memUserRepo{store}, "test-secret", time.Hour)
	appts := appointment.NewService(memApptRepo{store}, noopLocker{}, rand.New(rand.NewSource(1)))

	router := NewRouter(RouterConfig{
		Users:        users,
		Appointments: appts,
		Env:          "test",
		Version:      "test",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func register(t *testing.T, srv *httptest.Server, name, email, role, department string) {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", RegisterRequest{
		Name: name, Email: email, Password: "secret", Role: role, Department: department,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, resp.StatusCode, body)
	}
}

func login(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", LoginRequest{
		Email: email, Password: "secret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, resp.StatusCode, body)
	}
	var out LoginResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return out.Token
}

func TestRouter_AuthRequired(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{"no token", http.MethodGet, "/api/appointments", ""},
		{"garbage token", http.MethodGet, "/api/appointments", "garbage"},
		{"stats no token", http.MethodGet, "/api/appointments/stats/doctor", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, tt.method, srv.URL+tt.path, tt.token, nil)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
		})
	}
}

func TestRouter_RoleGates(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "Asha", "asha@example.com", "patient", "")
	register(t, srv, "Dr. Rao", "rao@example.com", "doctor", "Cardiology")

	patientToken := login(t, srv, "asha@example.com")
	doctorToken := login(t, srv, "rao@example.com")

	t.Run("doctor cannot book", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/appointments", doctorToken, CreateAppointmentRequest{
			Department: "Cardiology", Date: "2024-05-01", TimeSlot: "10:00",
		})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("patient cannot read stats", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/appointments/stats/doctor", patientToken, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("patient cannot update status", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/appointments/"+uuid.NewString(), patientToken, UpdateStatusRequest{Status: "approved"})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})
}

func TestRouter_BookingFlow(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "Asha", "asha@example.com", "patient", "")
	register(t, srv, "Dr. Rao", "rao@example.com", "doctor", "Cardiology")
	register(t, srv, "Dr. Mehta", "mehta@example.com", "doctor", "Dermatology")

	patientToken := login(t, srv, "asha@example.com")
	doctorToken := login(t, srv, "rao@example.com")
	otherDoctorToken := login(t, srv, "mehta@example.com")

	t.Run("unknown department with no generalists", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/appointments", patientToken, CreateAppointmentRequest{
			Department: "Astrology", Date: "2024-05-01", TimeSlot: "10:00",
		})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("missing field", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/appointments", patientToken, CreateAppointmentRequest{
			Department: "Cardiology", TimeSlot: "10:00",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	var booked AppointmentResponse

	t.Run("book succeeds", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/appointments", patientToken, CreateAppointmentRequest{
			Department: "Cardiology", Date: "2024-05-01", TimeSlot: "10:00",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d body %s", resp.StatusCode, body)
		}
		if err := json.Unmarshal(body, &booked); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if booked.Status != "pending" || booked.DoctorName != "Dr. Rao" {
			t.Errorf("unexpected booking %+v", booked)
		}
	})

	t.Run("slot exhausts with single doctor", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/appointments", patientToken, CreateAppointmentRequest{
			Department: "Cardiology", Date: "2024-05-01", TimeSlot: "10:00",
		})
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409, got %d", resp.StatusCode)
		}
	})

	t.Run("patient sees own booking", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/appointments", patientToken, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var out AppointmentListResponse
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		if len(out.Appointments) != 1 || out.Appointments[0].ID != booked.ID {
			t.Errorf("expected the one booking, got %+v", out.Appointments)
		}
	})

	t.Run("other doctor cannot update status", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/appointments/"+booked.ID.String(), otherDoctorToken, UpdateStatusRequest{Status: "approved"})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("invalid status value", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/appointments/"+booked.ID.String(), doctorToken, UpdateStatusRequest{Status: "cancelled"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("assigned doctor approves", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/appointments/"+booked.ID.String(), doctorToken, UpdateStatusRequest{Status: "approved"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body %s", resp.StatusCode, body)
		}
		var out AppointmentResponse
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if out.Status != "approved" {
			t.Errorf("expected approved, got %s", out.Status)
		}
	})

	t.Run("re-transition conflicts", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/appointments/"+booked.ID.String(), doctorToken, UpdateStatusRequest{Status: "rejected"})
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("expected 409, got %d", resp.StatusCode)
		}
	})

	t.Run("doctor stats", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/appointments/stats/doctor", doctorToken, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var out StatsResponse
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decode stats: %v", err)
		}
		want := StatsResponse{Total: 1, Pending: 0, Approved: 1, Rejected: 0}
		if out != want {
			t.Errorf("stats = %+v, want %+v", out, want)
		}
	})

	t.Run("unknown appointment id", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/appointments/"+uuid.NewString(), doctorToken, UpdateStatusRequest{Status: "approved"})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("malformed appointment id", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/appointments/not-a-uuid", doctorToken, UpdateStatusRequest{Status: "approved"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestRouter_RegisterValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		req  RegisterRequest
		want int
	}{
		{"doctor needs department", RegisterRequest{Name: "D", Email: "d@x.y", Password: "pw", Role: "doctor"}, http.StatusBadRequest},
		{"missing password", RegisterRequest{Name: "A", Email: "a@x.y"}, http.StatusBadRequest},
		{"ok patient", RegisterRequest{Name: "A", Email: "a@x.y", Password: "pw"}, http.StatusCreated},
		{"duplicate email", RegisterRequest{Name: "A", Email: "a@x.y", Password: "pw"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", tt.req)
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d body %s", tt.want, resp.StatusCode, body)
			}
		})
	}
}

func TestRequestIDMiddleware_Propagates(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/login", bytes.NewReader([]byte("{}")))
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected request id echoed, got %q", got)
	}
}
