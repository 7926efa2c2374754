package presence

import "testing"

func TestFilterMatches(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		gender  string
		country string
		want    bool
	}{
		{"empty filter matches anything", Filter{}, "female", "US", true},
		{"any values match anything", Filter{Gender: Any, Country: Any}, "male", "DE", true},
		{"gender match", Filter{Gender: "female"}, "female", "US", true},
		{"gender mismatch", Filter{Gender: "female"}, "male", "US", false},
		{"country match", Filter{Country: "US"}, "male", "US", true},
		{"country mismatch", Filter{Country: "US"}, "male", "DE", false},
		{"both constrained both match", Filter{Gender: "male", Country: "DE"}, "male", "DE", true},
		{"both constrained one mismatch", Filter{Gender: "male", Country: "DE"}, "male", "US", false},
		{"filter against undeclared attribute", Filter{Gender: "female"}, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.gender, tt.country); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.gender, tt.country, got, tt.want)
			}
		})
	}
}

func TestPrivileged(t *testing.T) {
	tests := []struct {
		tier string
		want bool
	}{
		{TierAnonymous, false},
		{TierFree, false},
		{TierStarter, false},
		{TierCasual, false},
		{TierPremium, true},
		{TierAdmin, true},
	}

	for _, tt := range tests {
		c := &Client{Tier: tt.tier}
		if got := c.Privileged(); got != tt.want {
			t.Errorf("Privileged() for tier %q = %v, want %v", tt.tier, got, tt.want)
		}
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()

	c := r.Register("conn-1")
	if c == nil {
		t.Fatal("Register returned nil")
	}
	if c.Tier != TierAnonymous {
		t.Errorf("fresh record tier = %q, want %q", c.Tier, TierAnonymous)
	}
	if c.Searching || c.PartnerID != "" || c.UserID != "" {
		t.Errorf("fresh record not idle: %+v", c)
	}

	if got := r.Get("conn-1"); got != c {
		t.Error("Get did not return the registered record")
	}
	if got := r.Get("unknown"); got != nil {
		t.Error("Get for unknown conn should be nil")
	}
	if n := r.Count(); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestAttachUser(t *testing.T) {
	r := NewRegistry()
	r.Register("conn-1")

	prev := r.AttachUser("conn-1", "user-9")
	if prev != nil {
		t.Errorf("first attach returned prev=%+v, want nil", prev)
	}
	if got := r.GetByUser("user-9"); got == nil || got.ConnID != "conn-1" {
		t.Fatalf("GetByUser after attach = %+v", got)
	}

	// Re-attaching the same conn is not a conflict.
	if prev := r.AttachUser("conn-1", "user-9"); prev != nil {
		t.Errorf("re-attach returned prev=%+v, want nil", prev)
	}
}

func TestAttachUser_ReturnsPreviousRecord(t *testing.T) {
	r := NewRegistry()
	old := r.Register("conn-old")
	r.AttachUser("conn-old", "user-9")
	old.PartnerID = "conn-p"
	old.Room = "room-1"

	r.Register("conn-new")
	prev := r.AttachUser("conn-new", "user-9")
	if prev == nil {
		t.Fatal("expected previous record for re-used user id")
	}
	if prev.ConnID != "conn-old" {
		t.Errorf("prev.ConnID = %q, want conn-old", prev.ConnID)
	}

	// The user id now maps to the new connection.
	if got := r.GetByUser("user-9"); got == nil || got.ConnID != "conn-new" {
		t.Fatalf("GetByUser after re-attach = %+v", got)
	}
}

func TestMigrate(t *testing.T) {
	r := NewRegistry()
	old := r.Register("conn-old")
	old.Tier = TierPremium
	old.Gender = "female"
	old.Country = "US"
	old.Filter = Filter{Gender: "male"}
	old.PartnerID = "conn-p"
	old.Room = "room-1"

	r.Register("conn-new")
	c := r.Migrate("conn-new", old)
	if c == nil {
		t.Fatal("Migrate returned nil")
	}

	if c.Tier != TierPremium || c.Gender != "female" || c.Country != "US" {
		t.Errorf("attributes not migrated: %+v", c)
	}
	if c.Filter.Gender != "male" {
		t.Errorf("filter not migrated: %+v", c.Filter)
	}
	if c.PartnerID != "conn-p" || c.Room != "room-1" {
		t.Errorf("pairing not migrated: %+v", c)
	}

	// Old record is gone.
	if got := r.Get("conn-old"); got != nil {
		t.Error("old record still present after Migrate")
	}
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	r.Register("conn-1")
	r.AttachUser("conn-1", "user-9")

	removed := r.Remove("conn-1")
	if removed == nil {
		t.Fatal("Remove returned nil for known conn")
	}
	if r.Get("conn-1") != nil {
		t.Error("record still present after Remove")
	}
	if r.GetByUser("user-9") != nil {
		t.Error("user mapping still present after Remove")
	}

	if r.Remove("conn-1") != nil {
		t.Error("second Remove should return nil")
	}
}

func TestRemove_KeepsNewerUserMapping(t *testing.T) {
	r := NewRegistry()
	r.Register("conn-old")
	r.AttachUser("conn-old", "user-9")

	// The user reconnects; the mapping moves to the new connection.
	r.Register("conn-new")
	r.AttachUser("conn-new", "user-9")

	// Removing the stale connection must not clobber the new mapping.
	r.Remove("conn-old")
	if got := r.GetByUser("user-9"); got == nil || got.ConnID != "conn-new" {
		t.Fatalf("user mapping lost after removing stale conn: %+v", got)
	}
}
