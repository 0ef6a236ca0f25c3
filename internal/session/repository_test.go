package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func num(v float64) *float64 { return &v }

func TestInMemoryRepository_EnsureSession(t *testing.T) {
	repo := NewInMemoryRepository()

	snap := repo.EnsureSession("s1")
	if snap.SessionID != "s1" || snap.Status != StatusStop || snap.Volume != DefaultVolume {
		t.Errorf("new session defaults: got %+v", snap)
	}
	if snap.URL != "" || snap.Action != "" || snap.Value != nil {
		t.Errorf("new session should be empty: got %+v", snap)
	}

	repo.UpdateURL("s1", "https://example.com/a")
	if got := repo.EnsureSession("s1"); got.URL != "https://example.com/a" {
		t.Errorf("EnsureSession must not reset an existing session, got %+v", got)
	}
}

func TestInMemoryRepository_GetStatus_does_not_create(t *testing.T) {
	repo := NewInMemoryRepository()

	if _, err := repo.GetStatus("ghost"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("GetStatus unknown: expected ErrUnknownSession, got %v", err)
	}
	if repo.Len() != 0 {
		t.Errorf("GetStatus created a session, Len=%d", repo.Len())
	}
}

func TestInMemoryRepository_UpdateURL(t *testing.T) {
	repo := NewInMemoryRepository()

	repo.UpdateURL("s1", "https://example.com/a")
	snap := repo.UpdateURL("s1", "https://example.com/b")
	if snap.URL != "https://example.com/b" {
		t.Errorf("last write should win, got %q", snap.URL)
	}

	got, err := repo.GetStatus("s1")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if got.URL != "https://example.com/b" {
		t.Errorf("GetStatus URL: got %q", got.URL)
	}
}

func TestInMemoryRepository_ApplyControl_status(t *testing.T) {
	repo := NewInMemoryRepository()

	tests := []struct {
		action Action
		want   Status
	}{
		{ActionPlay, StatusPlay},
		{ActionPause, StatusPause},
		{ActionPlay, StatusPlay},
		{ActionStop, StatusStop},
	}
	for _, tt := range tests {
		res, snap := repo.ApplyControl("s1", tt.action, nil)
		if !res.Accepted {
			t.Errorf("%s: expected accepted", tt.action)
		}
		if snap.Status != tt.want || snap.Action != tt.action {
			t.Errorf("%s: got status %q action %q", tt.action, snap.Status, snap.Action)
		}
	}
}

func TestInMemoryRepository_ApplyControl_volume(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.ApplyControl("s1", ActionPlay, nil)

	res, snap := repo.ApplyControl("s1", ActionVolume, num(42.6))
	if !res.Accepted {
		t.Fatal("volume should be accepted")
	}
	if snap.Volume != 43 {
		t.Errorf("volume: expected 43, got %d", snap.Volume)
	}
	if snap.Status != StatusPlay {
		t.Errorf("volume must not change status, got %q", snap.Status)
	}
	if snap.Value == nil || *snap.Value != 42.6 {
		t.Errorf("value: got %v", snap.Value)
	}
}

func TestInMemoryRepository_ApplyControl_skip(t *testing.T) {
	repo := NewInMemoryRepository()

	t.Run("first_skip_is_forward", func(t *testing.T) {
		res, snap := repo.ApplyControl("s1", ActionSkip, num(5))
		if !res.Accepted || res.Direction != DirectionForward {
			t.Fatalf("first skip: got %+v", res)
		}
		if snap.Action != ActionSkip || snap.Value == nil || *snap.Value != 5 {
			t.Errorf("first skip state: got %+v", snap)
		}
	})

	t.Run("repeated_value_ignored", func(t *testing.T) {
		before, _ := repo.GetStatus("s1")
		res, snap := repo.ApplyControl("s1", ActionSkip, num(5))
		if res.Accepted {
			t.Fatalf("repeated skip should be ignored, got %+v", res)
		}
		if !snap.UpdatedAt.Equal(before.UpdatedAt) {
			t.Error("ignored skip must not touch the session")
		}
	})

	t.Run("greater_value_forward", func(t *testing.T) {
		res, _ := repo.ApplyControl("s1", ActionSkip, num(6))
		if !res.Accepted || res.Direction != DirectionForward {
			t.Errorf("skip 6: got %+v", res)
		}
	})

	t.Run("smaller_value_backward", func(t *testing.T) {
		res, _ := repo.ApplyControl("s1", ActionSkip, num(3))
		if !res.Accepted || res.Direction != DirectionBackward {
			t.Errorf("skip 3: got %+v", res)
		}
	})

	t.Run("repeated_after_backward_ignored", func(t *testing.T) {
		res, _ := repo.ApplyControl("s1", ActionSkip, num(3))
		if res.Accepted {
			t.Errorf("repeated skip 3 should be ignored, got %+v", res)
		}
	})

	t.Run("other_actions_keep_skip_bookkeeping", func(t *testing.T) {
		repo.ApplyControl("s1", ActionPause, nil)
		res, _ := repo.ApplyControl("s1", ActionSkip, num(3))
		if res.Accepted {
			t.Errorf("skip 3 after pause should still be ignored, got %+v", res)
		}
	})

	t.Run("sessions_are_independent", func(t *testing.T) {
		res, _ := repo.ApplyControl("s2", ActionSkip, num(3))
		if !res.Accepted || res.Direction != DirectionForward {
			t.Errorf("skip on fresh session: got %+v", res)
		}
	})
}

func TestInMemoryRepository_Evict(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.EnsureSession("old")
	cutoff := time.Now().UTC().Add(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	repo.EnsureSession("new")

	evicted := repo.Evict(cutoff)
	if len(evicted) != 1 || evicted[0] != "old" {
		t.Fatalf("Evict: got %v", evicted)
	}
	if _, err := repo.GetStatus("old"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("evicted session still readable: %v", err)
	}
	if _, err := repo.GetStatus("new"); err != nil {
		t.Errorf("fresh session evicted: %v", err)
	}
	if repo.Len() != 1 {
		t.Errorf("Len: expected 1, got %d", repo.Len())
	}
}

func TestInMemoryRepository_concurrent(t *testing.T) {
	repo := NewInMemoryRepository()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := ID(fmt.Sprintf("s%d", i%5))
			repo.UpdateURL(id, fmt.Sprintf("https://example.com/%d", i))
			repo.ApplyControl(id, ActionSkip, num(float64(i)))
			repo.ApplyControl(id, ActionVolume, num(float64(i)))
			_, _ = repo.GetStatus(id)
		}(i)
	}
	wg.Wait()

	if repo.Len() != 5 {
		t.Errorf("Len: expected 5, got %d", repo.Len())
	}
}

func TestInMemoryRepository_Version(t *testing.T) {
	repo := NewInMemoryRepository()

	created := repo.EnsureSession("s1")
	if created.Version == 0 {
		t.Fatalf("new session has no version: %+v", created)
	}
	if again := repo.EnsureSession("s1"); again.Version != created.Version {
		t.Errorf("EnsureSession on existing session changed version %d -> %d", created.Version, again.Version)
	}

	_, played := repo.ApplyControl("s1", ActionPlay, nil)
	urled := repo.UpdateURL("s1", "https://example.com/a")
	if !(created.Version < played.Version && played.Version < urled.Version) {
		t.Errorf("versions must increase: %d, %d, %d", created.Version, played.Version, urled.Version)
	}

	_, first := repo.ApplyControl("s1", ActionSkip, num(5))
	res, repeated := repo.ApplyControl("s1", ActionSkip, num(5))
	if res.Accepted || repeated.Version != first.Version {
		t.Errorf("ignored skip bumped version %d -> %d", first.Version, repeated.Version)
	}

	// Recreating an evicted session never reuses a version.
	repo.Evict(time.Now().UTC().Add(time.Hour))
	if recreated := repo.EnsureSession("s1"); recreated.Version <= repeated.Version {
		t.Errorf("recreated session version %d not above %d", recreated.Version, repeated.Version)
	}
}
