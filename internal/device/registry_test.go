package device

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
)

// MockRepository is an in-memory Repository for registry tests.
type MockRepository struct {
	mu      sync.Mutex
	devices map[string]*Device

	createErr error
	listCalls int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{devices: make(map[string]*Device)}
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[id]; ok {
		return d.DeepCopy(), nil
	}
	return nil, ErrDeviceNotFound
}

func (m *MockRepository) List(_ context.Context) ([]Device, error) {
	return m.collect(func(*Device) bool { return true }), nil
}

func (m *MockRepository) ListByRoom(_ context.Context, roomID int64) ([]Device, error) {
	return m.collect(func(d *Device) bool { return d.InRoom(roomID) }), nil
}

func (m *MockRepository) ListByOwner(_ context.Context, ownerID string) ([]Device, error) {
	return m.collect(func(d *Device) bool { return d.OwnerID == ownerID }), nil
}

func (m *MockRepository) Create(_ context.Context, d *Device) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[d.ID]; ok {
		return ErrDeviceExists
	}
	m.devices[d.ID] = d.DeepCopy()
	return nil
}

func (m *MockRepository) UpdateObservedState(_ context.Context, id string, state ObservedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	if state.IsOn != nil {
		d.IsOn = *state.IsOn
	}
	if state.Value != nil {
		d.Value = clonePtr(state.Value)
	}
	return nil
}

func (m *MockRepository) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	d.IsActive = active
	return nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

func (m *MockRepository) collect(keep func(*Device) bool) []Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := []Device{}
	for _, d := range m.devices {
		if keep(d) {
			out = append(out, *d.DeepCopy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeRooms struct {
	ensured []int64
	err     error
}

func (f *fakeRooms) EnsureRoom(_ context.Context, roomID int64) error {
	f.ensured = append(f.ensured, roomID)
	return f.err
}

func testDevice(id string) *Device {
	return &Device{
		ID:         id,
		Name:       "Device " + id,
		Credential: "secret-" + id,
		OwnerID:    "usr-owner",
		Kind:       KindFan,
		IsActive:   true,
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestRegistry_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMockRepository())

	d := testDevice("fan-1")
	if err := reg.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	got, err := reg.GetDevice(ctx, "fan-1")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if got.Name != d.Name || got.Kind != KindFan {
		t.Errorf("GetDevice() = %+v, want name %q kind fan", got, d.Name)
	}
}

func TestRegistry_CreateGeneratesCredential(t *testing.T) {
	reg := NewRegistry(NewMockRepository())

	d := testDevice("light-1")
	d.Credential = ""
	if err := reg.CreateDevice(context.Background(), d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if len(d.Credential) != credentialBytes*2 {
		t.Errorf("generated credential length = %d, want %d", len(d.Credential), credentialBytes*2)
	}
}

func TestRegistry_CreateValidates(t *testing.T) {
	reg := NewRegistry(NewMockRepository())

	d := testDevice("bad/id")
	err := reg.CreateDevice(context.Background(), d)
	if !errors.Is(err, ErrInvalidDevice) {
		t.Fatalf("CreateDevice() error = %v, want ErrInvalidDevice", err)
	}
}

func TestRegistry_CreateEnsuresRoom(t *testing.T) {
	rooms := &fakeRooms{}
	reg := NewRegistry(NewMockRepository())
	reg.SetRooms(rooms)

	d := testDevice("ac-1")
	d.Kind = KindAC
	d.RoomID = int64Ptr(7)
	if err := reg.CreateDevice(context.Background(), d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if len(rooms.ensured) != 1 || rooms.ensured[0] != 7 {
		t.Errorf("ensured rooms = %v, want [7]", rooms.ensured)
	}
}

func TestRegistry_CreateRoomFailure(t *testing.T) {
	repo := NewMockRepository()
	reg := NewRegistry(repo)
	reg.SetRooms(&fakeRooms{err: errors.New("disk full")})

	d := testDevice("ac-2")
	d.RoomID = int64Ptr(3)
	if err := reg.CreateDevice(context.Background(), d); err == nil {
		t.Fatal("CreateDevice() expected error when room cannot be ensured")
	}
	if _, err := repo.GetByID(context.Background(), "ac-2"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("device persisted despite room failure: %v", err)
	}
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMockRepository())

	d := testDevice("fan-2")
	d.RoomID = int64Ptr(1)
	if err := reg.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	got, _ := reg.GetDevice(ctx, "fan-2")
	*got.RoomID = 99
	got.Name = "mutated"

	again, _ := reg.GetDevice(ctx, "fan-2")
	if *again.RoomID != 1 || again.Name == "mutated" {
		t.Errorf("cache was mutated through returned device: %+v", again)
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	reg := NewRegistry(NewMockRepository())
	if _, err := reg.GetDevice(context.Background(), "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	reg := NewRegistry(repo)

	a := testDevice("a")
	a.RoomID = int64Ptr(1)
	b := testDevice("b")
	b.RoomID = int64Ptr(2)
	c := testDevice("c")
	c.OwnerID = "usr-other"
	c.RoomID = int64Ptr(1)
	for _, d := range []*Device{c, a, b} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	tests := []struct {
		name string
		list func() ([]Device, error)
		want []string
	}{
		{"all", func() ([]Device, error) { return reg.ListDevices(ctx) }, []string{"a", "b", "c"}},
		{"room 1", func() ([]Device, error) { return reg.ListByRoom(ctx, 1) }, []string{"a", "c"}},
		{"room 9", func() ([]Device, error) { return reg.ListByRoom(ctx, 9) }, []string{}},
		{"owner", func() ([]Device, error) { return reg.ListByOwner(ctx, "usr-owner") }, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.list()
			if err != nil {
				t.Fatalf("list error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d devices, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("device[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestRegistry_ListBeforeRefreshUsesRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	if err := repo.Create(ctx, testDevice("x")); err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry(repo)

	got, err := reg.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(got) != 1 || repo.listCalls != 1 {
		t.Errorf("got %d devices with %d repo calls, want 1 and 1", len(got), repo.listCalls)
	}
}

func TestRegistry_RefreshDevice(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	reg := NewRegistry(repo)
	if err := reg.CreateDevice(ctx, testDevice("fan-3")); err != nil {
		t.Fatal(err)
	}

	on := true
	v := 3.0
	if err := repo.UpdateObservedState(ctx, "fan-3", ObservedState{IsOn: &on, Value: &v}); err != nil {
		t.Fatal(err)
	}

	stale, _ := reg.GetDevice(ctx, "fan-3")
	if stale.IsOn {
		t.Fatal("cache should still hold the pre-update state")
	}

	if err := reg.RefreshDevice(ctx, "fan-3"); err != nil {
		t.Fatalf("RefreshDevice() error = %v", err)
	}
	fresh, _ := reg.GetDevice(ctx, "fan-3")
	if !fresh.IsOn || fresh.Value == nil || *fresh.Value != 3 {
		t.Errorf("after refresh = %+v, want on with value 3", fresh)
	}

	_ = repo.Delete(ctx, "fan-3")
	if err := reg.RefreshDevice(ctx, "fan-3"); err != nil {
		t.Fatalf("RefreshDevice() on deleted device error = %v", err)
	}
	if _, err := reg.GetDevice(ctx, "fan-3"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("deleted device still served: %v", err)
	}
}

func TestRegistry_DeleteAndStats(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMockRepository())
	for _, id := range []string{"l1", "l2"} {
		d := testDevice(id)
		d.Kind = KindLight
		if err := reg.CreateDevice(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	if err := reg.SetActive(ctx, "l2", false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	stats := reg.GetStats()
	if stats.Total != 2 || stats.Inactive != 1 || stats.ByKind[KindLight] != 2 {
		t.Errorf("GetStats() = %+v", stats)
	}

	if err := reg.DeleteDevice(ctx, "l1"); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	if got := reg.GetStats().Total; got != 1 {
		t.Errorf("Total after delete = %d, want 1", got)
	}
	if err := reg.DeleteDevice(ctx, "l1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second DeleteDevice() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMockRepository())
	if err := reg.CreateDevice(ctx, testDevice("shared")); err != nil {
		t.Fatal(err)
	}
	_ = reg.RefreshCache(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = reg.GetDevice(ctx, "shared")
		}()
		go func() {
			defer wg.Done()
			_ = reg.RefreshDevice(ctx, "shared")
		}()
	}
	wg.Wait()
}
